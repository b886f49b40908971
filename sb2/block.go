package sb2

import (
	"github.com/goccy/go-json"
)

// Block is one node of a legacy block tree. The set of implementations is
// closed: *Leaf, *OneBranch, *TwoBranch and *ProcedureDefinition.
type Block interface {
	Opcode() string
	encode() []any
}

// Script is a sequence of blocks. A nil Script is an absent branch
// (JSON null); an empty non-nil Script is an explicit [].
type Script []Block

// Argument is a block input: a *Literal or an *Expression.
type Argument interface {
	encodeArg() any
}

// Literal is a constant argument.
type Literal struct {
	Value Value
}

// Expression is a nested reporter block evaluated at run time.
type Expression struct {
	Block Block
}

func (l *Literal) encodeArg() any    { return l.Value.Interface() }
func (e *Expression) encodeArg() any { return e.Block.encode() }

// Leaf is a block without branches.
type Leaf struct {
	Op   string
	Args []Argument
}

// OneBranch is a block with a single nested script, e.g. a loop.
type OneBranch struct {
	Op     string
	Args   []Argument
	Branch Script

	bare bool // Branch was written as a single block array
}

// TwoBranch is a block with two nested scripts, e.g. if/else.
type TwoBranch struct {
	Op      string
	Args    []Argument
	BranchA Script
	BranchB Script

	bareA, bareB bool
}

// ProcedureDefinition introduces a custom block. It may only appear as the
// first block of a top-level script; the rest of that script is its body.
type ProcedureDefinition struct {
	Spec                    string
	ParameterNames          []string
	DefaultArguments        []Value
	RunWithoutScreenRefresh bool
}

func (b *Leaf) Opcode() string                { return b.Op }
func (b *OneBranch) Opcode() string           { return b.Op }
func (b *TwoBranch) Opcode() string           { return b.Op }
func (b *ProcedureDefinition) Opcode() string { return DefinitionOpcode }

func (b *Leaf) encode() []any {
	return appendArgs(make([]any, 0, 1+len(b.Args)), b.Op, b.Args)
}

func (b *OneBranch) encode() []any {
	out := appendArgs(make([]any, 0, 2+len(b.Args)), b.Op, b.Args)
	return append(out, encodeBranch(b.Branch, b.bare))
}

func (b *TwoBranch) encode() []any {
	out := appendArgs(make([]any, 0, 3+len(b.Args)), b.Op, b.Args)
	return append(out, encodeBranch(b.BranchA, b.bareA), encodeBranch(b.BranchB, b.bareB))
}

func (b *ProcedureDefinition) encode() []any {
	names := make([]any, len(b.ParameterNames))
	for i, n := range b.ParameterNames {
		names[i] = n
	}
	defaults := make([]any, len(b.DefaultArguments))
	for i, v := range b.DefaultArguments {
		defaults[i] = v.Interface()
	}
	return []any{DefinitionOpcode, b.Spec, names, defaults, b.RunWithoutScreenRefresh}
}

func appendArgs(out []any, op string, args []Argument) []any {
	out = append(out, op)
	for _, a := range args {
		out = append(out, a.encodeArg())
	}
	return out
}

// EncodeBlock is the inverse of DecodeBlock.
func EncodeBlock(b Block) []any {
	return b.encode()
}

// EncodeScript returns nil for a nil script, otherwise an array of block
// arrays.
func EncodeScript(s Script) any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, b := range s {
		out[i] = b.encode()
	}
	return out
}

// encodeBranch writes a one-block branch in the shorthand form it was read
// in.
func encodeBranch(s Script, bare bool) any {
	if bare && len(s) == 1 {
		return s[0].encode()
	}
	return EncodeScript(s)
}

func (b *Leaf) MarshalJSON() ([]byte, error)                { return json.Marshal(b.encode()) }
func (b *OneBranch) MarshalJSON() ([]byte, error)           { return json.Marshal(b.encode()) }
func (b *TwoBranch) MarshalJSON() ([]byte, error)           { return json.Marshal(b.encode()) }
func (b *ProcedureDefinition) MarshalJSON() ([]byte, error) { return json.Marshal(b.encode()) }
