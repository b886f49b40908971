package vm

import (
	"math"

	"github.com/chazu/sbvm/program"
)

// motion wraps a command that moves or changes the look of a sprite. The
// stage ignores it; a visible target requests a redraw.
func motion(fn func(ctx *StepContext, t *Target)) CommandFunc {
	return func(ctx *StepContext, b *program.Block) error {
		t := ctx.Target()
		if t.IsStage {
			return nil
		}
		wasVisible := t.Visible
		fn(ctx, t)
		if wasVisible || t.Visible {
			ctx.RequestRedraw()
		}
		return nil
	}
}

func registerMotion(c *CoreOps) {
	c.Register("forward:", motion(func(ctx *StepContext, t *Target) {
		t.MoveSteps(ctx.Arg(0).Number())
	}))
	c.Register("turnRight:", motion(func(ctx *StepContext, t *Target) {
		t.SetDirection(t.Direction + ctx.Arg(0).Number())
	}))
	c.Register("turnLeft:", motion(func(ctx *StepContext, t *Target) {
		t.SetDirection(t.Direction - ctx.Arg(0).Number())
	}))
	c.Register("heading:", motion(func(ctx *StepContext, t *Target) {
		t.SetDirection(ctx.Arg(0).Number())
	}))
	c.Register("gotoX:y:", motion(func(ctx *StepContext, t *Target) {
		t.X, t.Y = ctx.Arg(0).Number(), ctx.Arg(1).Number()
	}))
	c.Register("changeXposBy:", motion(func(ctx *StepContext, t *Target) {
		t.X += ctx.Arg(0).Number()
	}))
	c.Register("changeYposBy:", motion(func(ctx *StepContext, t *Target) {
		t.Y += ctx.Arg(0).Number()
	}))
	c.Register("xpos:", motion(func(ctx *StepContext, t *Target) {
		t.X = ctx.Arg(0).Number()
	}))
	c.Register("ypos:", motion(func(ctx *StepContext, t *Target) {
		t.Y = ctx.Arg(0).Number()
	}))
	c.Register("show", motion(func(ctx *StepContext, t *Target) {
		t.Visible = true
	}))
	c.Register("hide", motion(func(ctx *StepContext, t *Target) {
		t.Visible = false
	}))
	c.Register("setSizeTo:", motion(func(ctx *StepContext, t *Target) {
		t.Scale = math.Max(0, ctx.Arg(0).Number())
	}))
	c.Register("changeSizeBy:", motion(func(ctx *StepContext, t *Target) {
		t.Scale = math.Max(0, t.Scale+ctx.Arg(0).Number())
	}))
	c.Register("lookLike:", func(ctx *StepContext, b *program.Block) error {
		t := ctx.Target()
		sp := ctx.Runtime().Sprite(t.sprite)
		n := len(sp.Costumes)
		if n == 0 {
			return nil
		}
		arg := ctx.Arg(0)
		if i, ok := sp.CostumeIndex(arg.String()); ok {
			t.CostumeIndex = i
		} else if arg.Kind() == program.KindNumber || arg.Number() != 0 {
			i := int(math.Round(arg.Number())) - 1
			t.CostumeIndex = ((i % n) + n) % n
		}
		if t.Visible {
			ctx.RequestRedraw()
		}
		return nil
	})
	c.Register("nextCostume", func(ctx *StepContext, b *program.Block) error {
		t := ctx.Target()
		if n := len(ctx.Runtime().Sprite(t.sprite).Costumes); n > 0 {
			t.CostumeIndex = (t.CostumeIndex + 1) % n
		}
		if t.Visible {
			ctx.RequestRedraw()
		}
		return nil
	})

	c.RegisterReporter("xpos", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(ctx.Target().X), nil
	})
	c.RegisterReporter("ypos", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(ctx.Target().Y), nil
	})
	c.RegisterReporter("heading", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(ctx.Target().Direction), nil
	})
	c.RegisterReporter("scale", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(ctx.Target().Scale), nil
	})
	c.RegisterReporter("costumeIndex", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(float64(ctx.Target().CostumeIndex + 1)), nil
	})
}
