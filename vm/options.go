package vm

import "time"

// Option configures a Runtime at install time.
type Option func(*Runtime)

// WithExecutor replaces the default CoreOps executor.
func WithExecutor(e Executor) Option {
	return func(r *Runtime) { r.exec = e }
}

// WithBudget sets the per-tick work budget. Non-positive values keep the
// default.
func WithBudget(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.budget = d
		}
	}
}

// WithClock sets the clock the budget is measured against.
func WithClock(clock func() time.Time) Option {
	return func(r *Runtime) { r.clock = clock }
}

// WithTurbo disables ending the step pass on redraw requests.
func WithTurbo(on bool) Option {
	return func(r *Runtime) { r.turbo = on }
}

// WithFaultHandler receives every fault that terminated a thread.
func WithFaultHandler(fn func(*Fault)) Option {
	return func(r *Runtime) { r.onFault = fn }
}

// WithHats adds or replaces hat opcodes. A nil Hat removes the opcode.
func WithHats(hats map[string]Hat) Option {
	return func(r *Runtime) {
		for op, h := range hats {
			if h == nil {
				delete(r.hats, op)
				continue
			}
			r.hats[op] = h
		}
	}
}

// WithMaxClones limits the number of live clones. Zero means no clones.
func WithMaxClones(n int) Option {
	return func(r *Runtime) { r.maxClones = n }
}

// WithProfiler counts executed opcodes into p.
func WithProfiler(p *Profiler) Option {
	return func(r *Runtime) { r.profiler = p }
}
