package vm

import (
	"time"

	"github.com/google/uuid"
)

// TickStats describes one tick.
type TickStats struct {
	Generation uuid.UUID
	Anchor     time.Time
	Elapsed    time.Duration

	HatsStarted int
	Rounds      int
	Steps       int
	Faults      int
	Threads     int // live after the tick

	// OverBudget is set when stepping stopped because the budget ran out
	// while threads were still runnable.
	OverBudget bool
	// Redraw is set when a step requested a redraw.
	Redraw bool
}

// Overrun returns how far the tick ran past budget, or zero.
func (s TickStats) Overrun(budget time.Duration) time.Duration {
	if s.Elapsed <= budget {
		return 0
	}
	return s.Elapsed - budget
}
