package vm

import (
	"fmt"

	"github.com/chazu/sbvm/program"
)

// ThreadID identifies a thread. IDs increase in creation order.
type ThreadID uint64

// ThreadState is the scheduling state of a thread.
type ThreadState uint8

const (
	// ThreadIdle threads were started by the hat pass and not stepped yet.
	ThreadIdle ThreadState = iota
	// ThreadRunning threads are mid-script and runnable.
	ThreadRunning
	// ThreadYielded threads finished a loop iteration; runnable again this tick.
	ThreadYielded
	// ThreadWaiting threads retry their current block on the next tick.
	ThreadWaiting
	// ThreadFinished threads are removed at the end of the tick.
	ThreadFinished
)

func (s ThreadState) String() string {
	switch s {
	case ThreadIdle:
		return "idle"
	case ThreadRunning:
		return "running"
	case ThreadYielded:
		return "yielded"
	case ThreadWaiting:
		return "waiting"
	case ThreadFinished:
		return "finished"
	}
	return fmt.Sprintf("ThreadState(%d)", uint8(s))
}

// maxFrames bounds procedure recursion.
const maxFrames = 1024

// frame is one script being executed. Loop frames return control to the
// block that pushed them; other frames continue after it.
type frame struct {
	script program.Script
	pc     int
	loop   bool
	state  any // per-block state of script[pc]
	proc   *procCall
}

type procCall struct {
	def    *program.ProcedureDefinition
	params map[string]program.Value
}

// Thread is one in-progress execution of a script body.
type Thread struct {
	ID ThreadID

	target *Target
	script int
	frames []*frame
	state  ThreadState
	steps  int
}

func newThread(id ThreadID, t *Target, script int, body program.Script) *Thread {
	return &Thread{
		ID:     id,
		target: t,
		script: script,
		frames: []*frame{{script: body}},
	}
}

// Target returns the target the thread runs on.
func (th *Thread) Target() *Target { return th.target }

// Script returns the index of the top-level script the thread runs.
func (th *Thread) Script() int { return th.script }

// State returns the scheduling state.
func (th *Thread) State() ThreadState { return th.state }

// Steps returns the number of block steps executed.
func (th *Thread) Steps() int { return th.steps }

// Depth returns the frame stack depth.
func (th *Thread) Depth() int { return len(th.frames) }

func (th *Thread) runnable() bool {
	switch th.state {
	case ThreadIdle, ThreadRunning, ThreadYielded:
		return true
	}
	return false
}

func (th *Thread) alive() bool { return th.state != ThreadFinished }

func (th *Thread) finish() {
	th.state = ThreadFinished
	th.frames = nil
}

func (th *Thread) top() *frame {
	if len(th.frames) == 0 {
		return nil
	}
	return th.frames[len(th.frames)-1]
}

// warp reports whether the thread is inside a procedure that runs
// without screen refresh.
func (th *Thread) warp() bool {
	for _, f := range th.frames {
		if f.proc != nil && f.proc.def.RunWithoutScreenRefresh {
			return true
		}
	}
	return false
}

// param resolves a procedure parameter from the innermost procedure frame.
func (th *Thread) param(name string) (program.Value, bool) {
	for i := len(th.frames) - 1; i >= 0; i-- {
		if p := th.frames[i].proc; p != nil {
			v, ok := p.params[name]
			return v, ok
		}
	}
	return program.Value{}, false
}

// unwind pops completed frames. It reports whether a loop iteration
// ended, which is a yield point.
func (th *Thread) unwind() (loopEnded bool) {
	for len(th.frames) > 0 {
		f := th.top()
		if f.pc < len(f.script) {
			return loopEnded
		}
		th.frames = th.frames[:len(th.frames)-1]
		if f.loop {
			// the loop block is re-executed; it still owns the parent pc
			return true
		}
	}
	return loopEnded
}
