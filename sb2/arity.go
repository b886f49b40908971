package sb2

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Arity is the shape class of a block opcode.
type Arity int

const (
	ArityLeaf Arity = iota
	ArityOneBranch
	ArityTwoBranch
	ArityDefinition
)

func (a Arity) String() string {
	switch a {
	case ArityLeaf:
		return "leaf"
	case ArityOneBranch:
		return "one-branch"
	case ArityTwoBranch:
		return "two-branch"
	case ArityDefinition:
		return "definition"
	}
	return fmt.Sprintf("Arity(%d)", int(a))
}

// Branches returns how many trailing elements the arity reserves for
// nested scripts.
func (a Arity) Branches() int {
	switch a {
	case ArityOneBranch:
		return 1
	case ArityTwoBranch:
		return 2
	}
	return 0
}

//go:embed opcodes.toml
var opcodeData []byte

type arityFile struct {
	Definition struct {
		Opcode string `toml:"opcode"`
	} `toml:"definition"`
	One struct {
		Opcodes []string `toml:"opcodes"`
	} `toml:"one"`
	Two struct {
		Opcodes []string `toml:"opcodes"`
	} `toml:"two"`
}

// DefinitionOpcode is the reserved opcode of procedure definitions.
var DefinitionOpcode string

var arities map[string]Arity

func init() {
	table, def, err := parseArityTable(opcodeData)
	if err != nil {
		panic(fmt.Sprintf("sb2: bad embedded opcode table: %v", err))
	}
	arities = table
	DefinitionOpcode = def
}

func parseArityTable(data []byte) (map[string]Arity, string, error) {
	var f arityFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, "", err
	}
	if f.Definition.Opcode == "" {
		return nil, "", fmt.Errorf("missing [definition] opcode")
	}

	table := make(map[string]Arity, len(f.One.Opcodes)+len(f.Two.Opcodes)+1)
	add := func(op string, a Arity) error {
		if prev, ok := table[op]; ok {
			return fmt.Errorf("opcode %q listed as both %s and %s", op, prev, a)
		}
		table[op] = a
		return nil
	}
	if err := add(f.Definition.Opcode, ArityDefinition); err != nil {
		return nil, "", err
	}
	for _, op := range f.One.Opcodes {
		if err := add(op, ArityOneBranch); err != nil {
			return nil, "", err
		}
	}
	for _, op := range f.Two.Opcodes {
		if err := add(op, ArityTwoBranch); err != nil {
			return nil, "", err
		}
	}
	return table, f.Definition.Opcode, nil
}

// ArityOf returns the arity class of opcode. Opcodes missing from the
// table are leaves.
func ArityOf(opcode string) Arity {
	return arities[opcode]
}
