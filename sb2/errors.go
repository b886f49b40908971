package sb2

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMisplacedDefinition is wrapped by the DecodeError returned when a
	// procedure definition appears anywhere but at the head of a top-level
	// script.
	ErrMisplacedDefinition = errors.New("procedure definition is only allowed as the first block of a top-level script")

	// ErrNullArgument is wrapped when a block argument is JSON null.
	ErrNullArgument = errors.New("null argument")
)

// DecodeError reports a malformed block array or project structure.
// Index is the position of the offending element within its array.
type DecodeError struct {
	Opcode   string
	Index    int
	Expected string
	Err      error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("sb2: decode")
	if e.Opcode != "" {
		fmt.Fprintf(&b, " %q", e.Opcode)
	}
	if e.Expected != "" {
		fmt.Fprintf(&b, ": expected %s at element %d", e.Expected, e.Index)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }
