package sb2

import (
	"fmt"
)

// DecodeBlock decodes one block array, taking its shape from the arity
// table.
func DecodeBlock(raw []any) (Block, error) {
	op, err := opcodeOf(raw)
	if err != nil {
		return nil, err
	}
	return DecodeBlockAs(raw, ArityOf(op))
}

// DecodeBlockAs decodes one block array with a caller-supplied arity.
func DecodeBlockAs(raw []any, a Arity) (Block, error) {
	switch a {
	case ArityOneBranch:
		return DecodeOneBranch(raw)
	case ArityTwoBranch:
		return DecodeTwoBranch(raw)
	case ArityDefinition:
		return DecodeProcedureDefinition(raw)
	}
	return DecodeLeaf(raw)
}

// DecodeLeaf decodes [op, args...]. Every trailing element is an argument.
func DecodeLeaf(raw []any) (*Leaf, error) {
	op, err := opcodeOf(raw)
	if err != nil {
		return nil, err
	}
	args := make([]Argument, 0, len(raw)-1)
	for i, elem := range raw[1:] {
		arg, err := decodeArgument(op, i+1, elem)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &Leaf{Op: op, Args: args}, nil
}

// DecodeOneBranch decodes [op, args..., branch].
func DecodeOneBranch(raw []any) (*OneBranch, error) {
	op, err := opcodeOf(raw)
	if err != nil {
		return nil, err
	}
	args, window, err := splitBranches(op, raw, 1)
	if err != nil {
		return nil, err
	}
	branch, bare, err := decodeBranch(op, len(raw)-1, window[0])
	if err != nil {
		return nil, err
	}
	return &OneBranch{Op: op, Args: args, Branch: branch, bare: bare}, nil
}

// DecodeTwoBranch decodes [op, args..., branchA, branchB].
func DecodeTwoBranch(raw []any) (*TwoBranch, error) {
	op, err := opcodeOf(raw)
	if err != nil {
		return nil, err
	}
	args, window, err := splitBranches(op, raw, 2)
	if err != nil {
		return nil, err
	}
	a, bareA, err := decodeBranch(op, len(raw)-2, window[0])
	if err != nil {
		return nil, err
	}
	b, bareB, err := decodeBranch(op, len(raw)-1, window[1])
	if err != nil {
		return nil, err
	}
	return &TwoBranch{Op: op, Args: args, BranchA: a, BranchB: b, bareA: bareA, bareB: bareB}, nil
}

// splitBranches walks raw[1:] keeping the last n unconsumed elements in a
// window. The window is seeded with exactly n elements; each element read
// after that pushes the oldest window entry out as a confirmed argument.
// Whatever the window holds at the end are the branches.
func splitBranches(op string, raw []any, n int) ([]Argument, []any, error) {
	window := make([]any, 0, n)
	var args []Argument
	for i, elem := range raw[1:] {
		if len(window) < n {
			window = append(window, elem)
			continue
		}
		pos := i + 1 - n
		arg, err := decodeArgument(op, pos, window[0])
		if err != nil {
			return nil, nil, err
		}
		args = append(args, arg)
		copy(window, window[1:])
		window[n-1] = elem
	}
	if len(window) < n {
		return nil, nil, &DecodeError{
			Opcode:   op,
			Index:    len(raw),
			Expected: branchName(len(window), n),
		}
	}
	if args == nil {
		args = []Argument{}
	}
	return args, window, nil
}

func branchName(k, n int) string {
	if n == 1 {
		return "branch"
	}
	if k == 0 {
		return "first branch"
	}
	return "second branch"
}

// DecodeProcedureDefinition decodes
// [procDef, spec, [parameter names], [default arguments], runWithoutScreenRefresh].
func DecodeProcedureDefinition(raw []any) (*ProcedureDefinition, error) {
	op, err := opcodeOf(raw)
	if err != nil {
		return nil, err
	}
	if op != DefinitionOpcode {
		return nil, &DecodeError{Opcode: op, Index: 0, Expected: fmt.Sprintf("opcode %q", DefinitionOpcode)}
	}
	fail := func(i int, what string) (*ProcedureDefinition, error) {
		return nil, &DecodeError{Opcode: op, Index: i, Expected: what}
	}
	if len(raw) != 5 {
		return fail(len(raw), "exactly 5 elements")
	}

	spec, ok := raw[1].(string)
	if !ok {
		return fail(1, "spec string")
	}

	rawNames, ok := raw[2].([]any)
	if !ok {
		return fail(2, "parameter name list")
	}
	names := make([]string, len(rawNames))
	for i, n := range rawNames {
		if names[i], ok = n.(string); !ok {
			return fail(2, fmt.Sprintf("parameter name string at %d", i))
		}
	}

	rawDefaults, ok := raw[3].([]any)
	if !ok {
		return fail(3, "default argument list")
	}
	defaults := make([]Value, len(rawDefaults))
	for i, d := range rawDefaults {
		if defaults[i], ok = valueOf(d); !ok {
			return fail(3, fmt.Sprintf("default argument literal at %d", i))
		}
	}

	warp, ok := raw[4].(bool)
	if !ok {
		return fail(4, "run-without-screen-refresh flag")
	}

	return &ProcedureDefinition{
		Spec:                    spec,
		ParameterNames:          names,
		DefaultArguments:        defaults,
		RunWithoutScreenRefresh: warp,
	}, nil
}

// DecodeScript decodes a sequence of block arrays. Only a top-level
// script may start with a procedure definition.
func DecodeScript(raw []any, topLevel bool) (Script, error) {
	script := make(Script, 0, len(raw))
	for i, elem := range raw {
		arr, ok := elem.([]any)
		if !ok {
			return nil, &DecodeError{Index: i, Expected: "block array"}
		}
		b, err := DecodeBlock(arr)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if _, def := b.(*ProcedureDefinition); def && (!topLevel || i > 0) {
			return nil, &DecodeError{
				Opcode:   DefinitionOpcode,
				Index:    i,
				Expected: "a non-definition block",
				Err:      ErrMisplacedDefinition,
			}
		}
		script = append(script, b)
	}
	return script, nil
}

func opcodeOf(raw []any) (string, error) {
	if len(raw) == 0 {
		return "", &DecodeError{Index: 0, Expected: "opcode"}
	}
	op, ok := raw[0].(string)
	if !ok {
		return "", &DecodeError{Index: 0, Expected: "opcode string"}
	}
	return op, nil
}

func decodeArgument(op string, pos int, elem any) (Argument, error) {
	switch t := elem.(type) {
	case nil:
		return nil, &DecodeError{Opcode: op, Index: pos, Expected: "argument", Err: ErrNullArgument}
	case []any:
		b, err := DecodeBlock(t)
		if err != nil {
			return nil, fmt.Errorf("sb2: argument %d of %q: %w", pos, op, err)
		}
		if _, def := b.(*ProcedureDefinition); def {
			return nil, &DecodeError{Opcode: op, Index: pos, Expected: "reporter block", Err: ErrMisplacedDefinition}
		}
		return &Expression{Block: b}, nil
	}
	v, ok := valueOf(elem)
	if !ok {
		return nil, &DecodeError{Opcode: op, Index: pos, Expected: "argument", Err: fmt.Errorf("unsupported element type %T", elem)}
	}
	return &Literal{Value: v}, nil
}

// decodeBranch decodes a branch element. A branch whose first element is
// an opcode string is a single block written without its enclosing script
// array; bare reports that form.
func decodeBranch(op string, pos int, elem any) (Script, bool, error) {
	switch t := elem.(type) {
	case nil:
		return nil, false, nil
	case []any:
		if len(t) > 0 {
			if _, ok := t[0].(string); ok {
				b, err := DecodeBlock(t)
				if err != nil {
					return nil, false, fmt.Errorf("sb2: branch at element %d of %q: %w", pos, op, err)
				}
				if _, def := b.(*ProcedureDefinition); def {
					return nil, false, &DecodeError{Opcode: op, Index: pos, Expected: "a non-definition block", Err: ErrMisplacedDefinition}
				}
				return Script{b}, true, nil
			}
		}
		s, err := DecodeScript(t, false)
		if err != nil {
			return nil, false, fmt.Errorf("sb2: branch at element %d of %q: %w", pos, op, err)
		}
		return s, false, nil
	}
	return nil, false, &DecodeError{Opcode: op, Index: pos, Expected: "branch (array of blocks or null)"}
}
