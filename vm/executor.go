package vm

import (
	"errors"
	"time"

	"github.com/chazu/sbvm/program"
)

// Executor gives opcodes their meaning. Execute runs a command block for
// one step; Report evaluates a reporter block used as an argument.
type Executor interface {
	Execute(ctx *StepContext, b *program.Block) error
	Report(ctx *StepContext, b *program.Block) (program.Value, error)
}

type outcome uint8

const (
	outNext outcome = iota
	outBranch
	outLoop
	outWait
	outYield
	outCall
	outStop
)

// StepContext is what an opcode sees while its block is being stepped.
// It is only valid during the Execute or Report call it was passed to.
type StepContext struct {
	rt     *Runtime
	thread *Thread
	block  *program.Block

	state   any
	outcome outcome
	branch  int
	call    *procCall
	redraw  bool
	err     error
}

func (c *StepContext) reset(rt *Runtime, th *Thread, b *program.Block, state any) {
	*c = StepContext{rt: rt, thread: th, block: b, state: state}
}

// Runtime returns the runtime being ticked.
func (c *StepContext) Runtime() *Runtime { return c.rt }

// Thread returns the thread being stepped.
func (c *StepContext) Thread() *Thread { return c.thread }

// Target returns the target the thread runs on.
func (c *StepContext) Target() *Target { return c.thread.target }

// Block returns the block being executed or reported.
func (c *StepContext) Block() *program.Block { return c.block }

// Now returns the runtime clock.
func (c *StepContext) Now() time.Time { return c.rt.clock() }

// NumArgs returns the argument count of the current block.
func (c *StepContext) NumArgs() int { return len(c.block.Arguments) }

// Arg evaluates argument i of the current block. Reporter arguments are
// evaluated through the executor; a missing argument is the empty string.
// The first evaluation error faults the step once the opcode returns.
func (c *StepContext) Arg(i int) program.Value {
	if i < 0 || i >= len(c.block.Arguments) {
		return program.Value{}
	}
	a := c.block.Arguments[i]
	if !a.IsExpression() {
		return a.Literal
	}
	saved := c.block
	c.block = a.Expression
	v, err := c.rt.exec.Report(c, a.Expression)
	c.block = saved
	if err != nil && c.err == nil {
		c.err = err
	}
	return v
}

// State returns the state stored by the current block on an earlier step,
// while it waited or looped.
func (c *StepContext) State() any { return c.state }

// SetState stores per-block state. It survives only Wait and Loop.
func (c *StepContext) SetState(v any) { c.state = v }

// EnterBranch runs branch i once and then continues after the block.
func (c *StepContext) EnterBranch(i int) {
	c.outcome = outBranch
	c.branch = i
}

// Loop runs branch i and then executes the block again. The end of each
// iteration is a yield point; a missing or empty branch yields at once.
func (c *StepContext) Loop(i int) {
	c.outcome = outLoop
	c.branch = i
}

// Wait retries the block on the next tick.
func (c *StepContext) Wait() { c.outcome = outWait }

// Yield continues after the block but ends the thread's turn as a yield.
func (c *StepContext) Yield() { c.outcome = outYield }

// Stop finishes the thread.
func (c *StepContext) Stop() { c.outcome = outStop }

// StopAll stops every thread and deletes every clone. The current thread
// finishes too.
func (c *StepContext) StopAll() {
	c.rt.StopAll()
	c.outcome = outStop
}

// StopOthers finishes every other thread of the current target.
func (c *StepContext) StopOthers() {
	for _, th := range c.rt.threads {
		if th != c.thread && th.target == c.thread.target {
			th.finish()
		}
	}
}

// Broadcast queues a message for the next hat pass and returns its
// sequence number.
func (c *StepContext) Broadcast(name string) uint64 {
	return c.rt.Broadcast(name)
}

// BroadcastDone reports whether the broadcast was dispatched and every
// thread it started has finished.
func (c *StepContext) BroadcastDone(seq uint64) bool {
	return c.rt.broadcastDone(seq)
}

// RequestRedraw asks the scheduler to end the step pass after the current
// round. Ignored in turbo mode and inside warp procedures.
func (c *StepContext) RequestRedraw() { c.redraw = true }

// ErrNoProcedure is returned by Call for an undefined custom block.
var ErrNoProcedure = errors.New("no such procedure")

// Call runs the custom block spec of the current sprite with args, then
// continues after the block. Missing args take the declared defaults.
func (c *StepContext) Call(spec string, args []program.Value) error {
	sp := c.rt.Sprite(c.thread.target.sprite)
	if sp == nil {
		return ErrNoProcedure
	}
	def, ok := sp.Procedure(spec)
	if !ok {
		return ErrNoProcedure
	}
	params := make(map[string]program.Value, len(def.ParameterNames))
	for i, name := range def.ParameterNames {
		switch {
		case i < len(args):
			params[name] = args[i]
		case i < len(def.DefaultArguments):
			params[name] = def.DefaultArguments[i]
		default:
			params[name] = program.Value{}
		}
	}
	c.call = &procCall{def: def, params: params}
	c.outcome = outCall
	return nil
}

// Param returns a parameter of the innermost procedure call. Outside a
// procedure, or for an unknown name, it is the empty string.
func (c *StepContext) Param(name string) program.Value {
	v, _ := c.thread.param(name)
	return v
}

// Variable resolves a variable on the target, falling back to the stage.
func (c *StepContext) Variable(name string) (*program.Variable, bool) {
	return c.rt.variable(c.thread.target, name)
}

// List resolves a list on the target, falling back to the stage.
func (c *StepContext) List(name string) (*program.List, bool) {
	return c.rt.list(c.thread.target, name)
}
