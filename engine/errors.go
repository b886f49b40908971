package engine

import "errors"

// ErrStopped is returned by Do once the engine was stopped.
var ErrStopped = errors.New("engine: stopped")
