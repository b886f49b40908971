package vm

import (
	"math"
	"strings"

	"github.com/chazu/sbvm/program"
)

func registerOperators(c *CoreOps) {
	arith := func(op func(a, b float64) float64) ReporterFunc {
		return func(ctx *StepContext, b *program.Block) (program.Value, error) {
			return program.Number(op(ctx.Arg(0).Number(), ctx.Arg(1).Number())), nil
		}
	}
	c.RegisterReporter("+", arith(func(a, b float64) float64 { return a + b }))
	c.RegisterReporter("-", arith(func(a, b float64) float64 { return a - b }))
	c.RegisterReporter("*", arith(func(a, b float64) float64 { return a * b }))
	c.RegisterReporter("/", arith(func(a, b float64) float64 { return a / b }))
	c.RegisterReporter("%", arith(func(a, b float64) float64 {
		// the result takes the sign of the divisor
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m
	}))

	compare := func(want func(int) bool) ReporterFunc {
		return func(ctx *StepContext, b *program.Block) (program.Value, error) {
			return program.Bool(want(program.Compare(ctx.Arg(0), ctx.Arg(1)))), nil
		}
	}
	c.RegisterReporter("<", compare(func(n int) bool { return n < 0 }))
	c.RegisterReporter(">", compare(func(n int) bool { return n > 0 }))
	c.RegisterReporter("=", compare(func(n int) bool { return n == 0 }))

	c.RegisterReporter("&", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Bool(ctx.Arg(0).Bool() && ctx.Arg(1).Bool()), nil
	})
	c.RegisterReporter("|", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Bool(ctx.Arg(0).Bool() || ctx.Arg(1).Bool()), nil
	})
	c.RegisterReporter("not", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Bool(!ctx.Arg(0).Bool()), nil
	})

	c.RegisterReporter("concatenate:with:", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.String(ctx.Arg(0).String() + ctx.Arg(1).String()), nil
	})
	c.RegisterReporter("stringLength:", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(float64(len([]rune(ctx.Arg(0).String())))), nil
	})
	c.RegisterReporter("rounded", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return program.Number(math.Round(ctx.Arg(0).Number())), nil
	})
	c.RegisterReporter("computeFunction:of:", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		x := ctx.Arg(1).Number()
		var r float64
		switch strings.ToLower(ctx.Arg(0).String()) {
		case "abs":
			r = math.Abs(x)
		case "floor":
			r = math.Floor(x)
		case "ceiling":
			r = math.Ceil(x)
		case "sqrt":
			r = math.Sqrt(x)
		case "sin":
			r = math.Sin(x * math.Pi / 180)
		case "cos":
			r = math.Cos(x * math.Pi / 180)
		default:
			r = 0
		}
		return program.Number(r), nil
	})

	c.RegisterReporter("getParam", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		return ctx.Param(ctx.Arg(0).String()), nil
	})
}
