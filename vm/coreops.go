package vm

import (
	"fmt"
	"sync"

	"github.com/chazu/sbvm/program"
)

// CommandFunc executes a command block for one step.
type CommandFunc func(ctx *StepContext, b *program.Block) error

// ReporterFunc evaluates a reporter block.
type ReporterFunc func(ctx *StepContext, b *program.Block) (program.Value, error)

// CoreOps is the default Executor: control flow, data, operators and
// basic motion and looks. Unknown opcodes are skipped and logged once,
// or fault in strict mode. Register extends it.
type CoreOps struct {
	strict    bool
	commands  map[string]CommandFunc
	reporters map[string]ReporterFunc
	warned    sync.Map
}

// NewCoreOps returns the default opcode set.
func NewCoreOps(strict bool) *CoreOps {
	c := &CoreOps{
		strict:    strict,
		commands:  make(map[string]CommandFunc),
		reporters: make(map[string]ReporterFunc),
	}
	registerControl(c)
	registerData(c)
	registerOperators(c)
	registerMotion(c)
	return c
}

// Register adds or replaces a command opcode.
func (c *CoreOps) Register(opcode string, fn CommandFunc) { c.commands[opcode] = fn }

// RegisterReporter adds or replaces a reporter opcode.
func (c *CoreOps) RegisterReporter(opcode string, fn ReporterFunc) { c.reporters[opcode] = fn }

// Knows reports whether opcode is registered as a command or reporter.
func (c *CoreOps) Knows(opcode string) bool {
	_, cmd := c.commands[opcode]
	_, rep := c.reporters[opcode]
	return cmd || rep
}

// Execute implements Executor.
func (c *CoreOps) Execute(ctx *StepContext, b *program.Block) error {
	if fn, ok := c.commands[b.Opcode]; ok {
		return fn(ctx, b)
	}
	if fn, ok := c.reporters[b.Opcode]; ok {
		// a reporter dropped into a script runs for its side effects
		_, err := fn(ctx, b)
		return err
	}
	return c.unknown(b.Opcode)
}

// Report implements Executor.
func (c *CoreOps) Report(ctx *StepContext, b *program.Block) (program.Value, error) {
	if fn, ok := c.reporters[b.Opcode]; ok {
		return fn(ctx, b)
	}
	return program.Value{}, c.unknown(b.Opcode)
}

func (c *CoreOps) unknown(op string) error {
	if c.strict {
		return fmt.Errorf("%w %q", ErrUnknownOpcode, op)
	}
	if _, seen := c.warned.LoadOrStore(op, true); !seen {
		log.Warningf("skipping unknown opcode %q", op)
	}
	return nil
}
