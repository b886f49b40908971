package vm

import (
	"math"
	"strings"

	"github.com/chazu/sbvm/program"
)

func registerData(c *CoreOps) {
	c.Register("setVar:to:", func(ctx *StepContext, b *program.Block) error {
		variable(ctx, ctx.Arg(0).String()).Value = ctx.Arg(1)
		return nil
	})
	c.Register("changeVar:by:", func(ctx *StepContext, b *program.Block) error {
		v := variable(ctx, ctx.Arg(0).String())
		v.Value = program.Number(v.Value.Number() + ctx.Arg(1).Number())
		return nil
	})
	c.RegisterReporter("readVariable", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		if v, ok := ctx.Variable(ctx.Arg(0).String()); ok {
			return v.Value, nil
		}
		return program.Value{}, nil
	})

	c.Register("append:toList:", func(ctx *StepContext, b *program.Block) error {
		l := list(ctx, ctx.Arg(1).String())
		l.Values = append(l.Values, ctx.Arg(0))
		return nil
	})
	c.Register("deleteLine:ofList:", func(ctx *StepContext, b *program.Block) error {
		l := list(ctx, ctx.Arg(1).String())
		if strings.EqualFold(ctx.Arg(0).String(), "all") {
			l.Values = nil
			return nil
		}
		if i, ok := lineIndex(ctx.Arg(0), len(l.Values)); ok {
			l.Values = append(l.Values[:i], l.Values[i+1:]...)
		}
		return nil
	})
	c.Register("insert:at:ofList:", func(ctx *StepContext, b *program.Block) error {
		l := list(ctx, ctx.Arg(2).String())
		item := ctx.Arg(0)
		i, ok := lineIndex(ctx.Arg(1), len(l.Values)+1)
		if !ok {
			return nil
		}
		l.Values = append(l.Values, program.Value{})
		copy(l.Values[i+1:], l.Values[i:])
		l.Values[i] = item
		return nil
	})
	c.Register("setLine:ofList:to:", func(ctx *StepContext, b *program.Block) error {
		l := list(ctx, ctx.Arg(1).String())
		if i, ok := lineIndex(ctx.Arg(0), len(l.Values)); ok {
			l.Values[i] = ctx.Arg(2)
		}
		return nil
	})
	c.RegisterReporter("getLine:ofList:", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		l, ok := ctx.List(ctx.Arg(1).String())
		if !ok {
			return program.Value{}, nil
		}
		if i, ok := lineIndex(ctx.Arg(0), len(l.Values)); ok {
			return l.Values[i], nil
		}
		return program.Value{}, nil
	})
	c.RegisterReporter("lineCountOfList:", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		l, ok := ctx.List(ctx.Arg(0).String())
		if !ok {
			return program.Number(0), nil
		}
		return program.Number(float64(len(l.Values))), nil
	})
	c.RegisterReporter("list:contains:", func(ctx *StepContext, b *program.Block) (program.Value, error) {
		l, ok := ctx.List(ctx.Arg(0).String())
		if !ok {
			return program.Bool(false), nil
		}
		item := ctx.Arg(1)
		for _, v := range l.Values {
			if program.Equal(v, item) {
				return program.Bool(true), nil
			}
		}
		return program.Bool(false), nil
	})
}

// variable resolves a variable, creating it on the target when missing.
func variable(ctx *StepContext, name string) *program.Variable {
	if v, ok := ctx.Variable(name); ok {
		return v
	}
	v := &program.Variable{Value: program.Number(0)}
	ctx.Target().Variables[name] = v
	return v
}

// list resolves a list, creating it on the target when missing.
func list(ctx *StepContext, name string) *program.List {
	if l, ok := ctx.List(name); ok {
		return l
	}
	l := &program.List{}
	ctx.Target().Lists[name] = l
	return l
}

// lineIndex maps a 1-based line argument, or "last", to a slice index
// within n items.
func lineIndex(arg program.Value, n int) (int, bool) {
	if n == 0 {
		return 0, false
	}
	if arg.Kind() == program.KindString {
		switch strings.ToLower(arg.String()) {
		case "last":
			return n - 1, true
		case "first":
			return 0, true
		}
	}
	i := int(math.Floor(arg.Number())) - 1
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
