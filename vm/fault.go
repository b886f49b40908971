package vm

import (
	"errors"
	"fmt"
)

// ErrUnknownOpcode faults a step in strict mode.
var ErrUnknownOpcode = errors.New("unknown opcode")

// Fault is a logic error raised while stepping a thread. The thread is
// finished; the tick goes on. Faults are reported, never returned by Tick.
type Fault struct {
	Thread ThreadID
	Target string
	Opcode string
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm: thread %d on %q: %s: %v", f.Thread, f.Target, f.Opcode, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// PanicError wraps a value recovered from a panicking opcode.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (r *Runtime) fault(th *Thread, op string, err error) {
	f := &Fault{Thread: th.ID, Target: th.target.Name, Opcode: op, Err: err}
	th.finish()
	log.Errorf("%v", f)
	if r.onFault != nil {
		r.onFault(f)
	}
}
