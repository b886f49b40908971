package vm

import (
	"math"
	"strings"
	"time"

	"github.com/chazu/sbvm/program"
)

func registerControl(c *CoreOps) {
	c.Register("doForever", func(ctx *StepContext, b *program.Block) error {
		ctx.Loop(0)
		return nil
	})
	c.Register("doRepeat", func(ctx *StepContext, b *program.Block) error {
		left, ok := ctx.State().(int)
		if !ok {
			left = int(math.Round(ctx.Arg(0).Number()))
		}
		if left <= 0 {
			return nil
		}
		ctx.SetState(left - 1)
		ctx.Loop(0)
		return nil
	})
	c.Register("doUntil", func(ctx *StepContext, b *program.Block) error {
		if !ctx.Arg(0).Bool() {
			ctx.Loop(0)
		}
		return nil
	})
	c.Register("doWhile", func(ctx *StepContext, b *program.Block) error {
		if ctx.Arg(0).Bool() {
			ctx.Loop(0)
		}
		return nil
	})
	c.Register("doForeverIf", func(ctx *StepContext, b *program.Block) error {
		if ctx.Arg(0).Bool() {
			ctx.Loop(0)
		} else {
			ctx.Loop(-1) // no body: yield and test again
		}
		return nil
	})
	c.Register("doIf", func(ctx *StepContext, b *program.Block) error {
		if ctx.Arg(0).Bool() {
			ctx.EnterBranch(0)
		}
		return nil
	})
	c.Register("doIfElse", func(ctx *StepContext, b *program.Block) error {
		if ctx.Arg(0).Bool() {
			ctx.EnterBranch(0)
		} else {
			ctx.EnterBranch(1)
		}
		return nil
	})
	c.Register("doWaitUntil", func(ctx *StepContext, b *program.Block) error {
		if !ctx.Arg(0).Bool() {
			ctx.Wait()
		}
		return nil
	})
	c.Register("wait:elapsed:from:", func(ctx *StepContext, b *program.Block) error {
		deadline, ok := ctx.State().(time.Time)
		if !ok {
			secs := ctx.Arg(0).Number()
			ctx.SetState(ctx.Now().Add(time.Duration(secs * float64(time.Second))))
			ctx.Wait()
			return nil
		}
		if ctx.Now().Before(deadline) {
			ctx.Wait()
		}
		return nil
	})
	c.Register("stopScripts", func(ctx *StepContext, b *program.Block) error {
		switch strings.ToLower(ctx.Arg(0).String()) {
		case "all":
			ctx.StopAll()
		case "other scripts in sprite", "other scripts in stage":
			ctx.StopOthers()
		default:
			ctx.Stop()
		}
		return nil
	})
	c.Register("broadcast:", func(ctx *StepContext, b *program.Block) error {
		ctx.Broadcast(ctx.Arg(0).String())
		return nil
	})
	c.Register("doBroadcastAndWait", func(ctx *StepContext, b *program.Block) error {
		seq, ok := ctx.State().(uint64)
		if !ok {
			ctx.SetState(ctx.Broadcast(ctx.Arg(0).String()))
			ctx.Wait()
			return nil
		}
		if !ctx.BroadcastDone(seq) {
			ctx.Wait()
		}
		return nil
	})
	c.Register("createCloneOf", func(ctx *StepContext, b *program.Block) error {
		rt := ctx.Runtime()
		src := ctx.Target()
		if name := ctx.Arg(0).String(); name != "_myself_" {
			t, ok := rt.TargetByName(name)
			if !ok {
				return nil
			}
			src = t
		}
		if src.IsStage {
			return nil
		}
		if _, err := rt.Clone(src); err != nil {
			log.Debugf("createCloneOf %q: %v", src.Name, err)
		}
		return nil
	})
	c.Register("deleteClone", func(ctx *StepContext, b *program.Block) error {
		t := ctx.Target()
		if !t.IsClone {
			return nil
		}
		ctx.Stop()
		return ctx.Runtime().DeleteClone(t)
	})
	c.Register("call", func(ctx *StepContext, b *program.Block) error {
		spec := ctx.Arg(0).String()
		var args []program.Value
		for i := 1; i < ctx.NumArgs(); i++ {
			args = append(args, ctx.Arg(i))
		}
		if err := ctx.Call(spec, args); err != nil {
			log.Debugf("call %q: %v", spec, err)
		}
		return nil
	})
}
