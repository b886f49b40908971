package vm

import (
	"errors"
	"time"

	"github.com/chazu/sbvm/program"
)

var errStackOverflow = errors.New("procedure call stack overflow")

// Tick runs one tick anchored at now: the hat pass, then round-robin
// rounds of one block step per runnable thread until the work budget is
// spent or no thread can step. The budget is polled after every step, so
// a tick overruns by at most one step. Tick never fails: faulting threads
// are finished and reported.
func (r *Runtime) Tick(now time.Time) TickStats {
	stats := TickStats{Generation: r.generation, Anchor: now}
	r.redraw = false

	for _, th := range r.threads {
		if th.state == ThreadWaiting {
			th.state = ThreadRunning
		}
	}
	r.reap()
	stats.HatsStarted = r.hatPass()

	for !r.overBudget(now) {
		round := r.round()
		if len(round) == 0 {
			break
		}
		stepped := 0
		for _, th := range round {
			if !th.runnable() {
				// stopped by an earlier step of this round
				continue
			}
			if r.overBudget(now) {
				stats.OverBudget = true
				break
			}
			if r.step(th) {
				stats.Faults++
			}
			stepped++
			r.lastStepped = th.ID
		}
		stats.Steps += stepped
		if stepped == 0 || stats.OverBudget {
			break
		}
		stats.Rounds++
		if r.redraw && !r.turbo {
			break
		}
	}
	if !stats.OverBudget && r.overBudget(now) && len(r.round()) > 0 {
		stats.OverBudget = true
	}

	r.reap()
	stats.Redraw = r.redraw
	stats.Threads = len(r.threads)
	stats.Elapsed = r.clock().Sub(now)
	return stats
}

func (r *Runtime) overBudget(anchor time.Time) bool {
	return r.clock().Sub(anchor) > r.budget
}

// round returns the runnable threads in creation order, rotated to start
// after the thread stepped last.
func (r *Runtime) round() []*Thread {
	var runnable []*Thread
	start := -1
	for _, th := range r.threads {
		if !th.runnable() {
			continue
		}
		if start < 0 && th.ID > r.lastStepped {
			start = len(runnable)
		}
		runnable = append(runnable, th)
	}
	if start <= 0 {
		return runnable
	}
	return append(runnable[start:], runnable[:start]...)
}

// step executes the block under the thread's program counter and reports
// whether it faulted.
func (r *Runtime) step(th *Thread) (faulted bool) {
	th.state = ThreadRunning
	f := th.top()
	if f == nil {
		th.finish()
		return false
	}
	b := &f.script[f.pc]
	th.steps++
	if r.profiler != nil {
		r.profiler.RecordStep(b.Opcode)
	}

	ctx := &r.ctx
	ctx.reset(r, th, b, f.state)
	if err := r.execute(ctx, b); err != nil {
		if r.profiler != nil {
			r.profiler.RecordFault(b.Opcode)
		}
		r.fault(th, b.Opcode, err)
		return true
	}
	if th.state == ThreadFinished {
		// stopped from inside the step, e.g. its clone was deleted
		return false
	}
	warp := th.warp()
	if ctx.redraw && !warp {
		r.redraw = true
	}

	yielded := false
	switch ctx.outcome {
	case outNext:
		f.pc++
		f.state = nil
	case outBranch:
		f.pc++
		f.state = nil
		if br := branch(b, ctx.branch); len(br) > 0 {
			th.frames = append(th.frames, &frame{script: br})
		}
	case outLoop:
		f.state = ctx.state
		if br := branch(b, ctx.branch); len(br) > 0 {
			th.frames = append(th.frames, &frame{script: br, loop: true})
		} else {
			yielded = true
		}
	case outWait:
		f.state = ctx.state
		th.state = ThreadWaiting
		return false
	case outYield:
		f.pc++
		f.state = nil
		yielded = true
	case outCall:
		f.pc++
		f.state = nil
		if len(th.frames) >= maxFrames {
			r.fault(th, b.Opcode, errStackOverflow)
			return true
		}
		if body := ctx.call.def.Body; len(body) > 0 {
			th.frames = append(th.frames, &frame{script: body, proc: ctx.call})
		}
	case outStop:
		th.finish()
		return false
	}

	if th.unwind() {
		yielded = true
	}
	switch {
	case len(th.frames) == 0:
		th.finish()
	case yielded && !warp:
		th.state = ThreadYielded
	}
	return false
}

// execute runs one block through the executor, turning panics and
// argument errors into faults.
func (r *Runtime) execute(ctx *StepContext, b *program.Block) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	if err = r.exec.Execute(ctx, b); err != nil {
		return err
	}
	return ctx.err
}

func branch(b *program.Block, i int) program.Script {
	if i < 0 || i >= len(b.Branches) {
		return nil
	}
	return b.Branches[i]
}
