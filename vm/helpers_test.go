package vm

import (
	"fmt"
	"testing"
	"time"

	"github.com/chazu/sbvm/program"
)

// stepCost is what every executed block costs on the fake clock.
const stepCost = time.Millisecond

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// timedOps charges every executed block to the fake clock.
type timedOps struct {
	*CoreOps
	clock *fakeClock
}

func (o *timedOps) Execute(ctx *StepContext, b *program.Block) error {
	o.clock.Advance(stepCost)
	return o.CoreOps.Execute(ctx, b)
}

type harness struct {
	t      *testing.T
	clock  *fakeClock
	ops    *CoreOps
	faults []*Fault
	opts   []Option
}

func newHarness(t *testing.T, opts ...Option) *harness {
	h := &harness{
		t:     t,
		clock: &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		ops:   NewCoreOps(true),
	}
	h.opts = append([]Option{
		WithClock(h.clock.Now),
		WithExecutor(&timedOps{CoreOps: h.ops, clock: h.clock}),
		WithBudget(10 * time.Millisecond),
		WithFaultHandler(func(f *Fault) { h.faults = append(h.faults, f) }),
	}, opts...)
	return h
}

// install runs p with a plain stage in front of sprites.
func (h *harness) install(sprites ...*program.Sprite) *Runtime {
	return h.installWithStage(stage(), sprites...)
}

func (h *harness) installWithStage(st *program.Sprite, sprites ...*program.Sprite) *Runtime {
	p := &program.Program{Sprites: append([]*program.Sprite{st}, sprites...)}
	return Install(p, h.opts...)
}

func (h *harness) tick(rt *Runtime) TickStats {
	return rt.Tick(h.clock.Now())
}

// blk builds a block. Scripts become branches, blocks become reporter
// arguments and anything else a literal.
func blk(op string, args ...any) program.Block {
	b := program.Block{Opcode: op}
	for _, a := range args {
		switch a := a.(type) {
		case program.Script:
			b.Branches = append(b.Branches, a)
		case program.Block:
			b.Arguments = append(b.Arguments, program.Expr(&a))
		case program.Value:
			b.Arguments = append(b.Arguments, program.Lit(a))
		case string:
			b.Arguments = append(b.Arguments, program.Lit(program.String(a)))
		case int:
			b.Arguments = append(b.Arguments, program.Lit(program.Number(float64(a))))
		case float64:
			b.Arguments = append(b.Arguments, program.Lit(program.Number(a)))
		case bool:
			b.Arguments = append(b.Arguments, program.Lit(program.Bool(a)))
		default:
			panic(fmt.Sprintf("blk: unsupported argument %T", a))
		}
	}
	return b
}

func script(blocks ...program.Block) program.Script { return blocks }

func item(blocks ...program.Block) program.TopLevelItem {
	return program.TopLevelItem{Script: blocks}
}

func define(def program.ProcedureDefinition) program.TopLevelItem {
	return program.TopLevelItem{Definition: &def}
}

func stage(items ...program.TopLevelItem) *program.Sprite {
	return &program.Sprite{Name: "Stage", IsStage: true, Scale: 100, Direction: 90, Visible: true, Scripts: items}
}

// sprite returns a hidden sprite so that motion does not request redraws.
func sprite(name string, items ...program.TopLevelItem) *program.Sprite {
	return &program.Sprite{Name: name, Scale: 100, Direction: 90, Scripts: items}
}

func greenFlag(blocks ...program.Block) program.TopLevelItem {
	return item(append([]program.Block{blk("whenGreenFlag")}, blocks...)...)
}

func target(t *testing.T, rt *Runtime, name string) *Target {
	t.Helper()
	tg, ok := rt.TargetByName(name)
	if !ok {
		t.Fatalf("no target %q", name)
	}
	return tg
}

func varOf(t *testing.T, rt *Runtime, name, variable string) program.Value {
	t.Helper()
	v, ok := target(t, rt, name).Variables[variable]
	if !ok {
		return program.Value{}
	}
	return v.Value
}
