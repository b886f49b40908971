package vm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Profiler counts executed opcodes across ticks and runtimes, and flags
// opcodes whose count crosses HotThreshold. It may be read from other
// goroutines while a runtime records into it.
type Profiler struct {
	opcodes sync.Map // string -> *OpcodeProfile

	// HotThreshold is the execution count at which an opcode is hot.
	HotThreshold uint64

	// OnHot is called once per opcode when it becomes hot.
	OnHot func(opcode string, profile *OpcodeProfile)

	steps    uint64
	hotCount uint64
}

// OpcodeProfile holds the counters of one opcode.
type OpcodeProfile struct {
	Executions uint64 // atomic
	Faults     uint64 // atomic
	hot        atomic.Bool
}

// IsHot reports whether the opcode crossed the hot threshold.
func (p *OpcodeProfile) IsHot() bool { return p.hot.Load() }

// NewProfiler returns a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 10000}
}

func (p *Profiler) profile(op string) *OpcodeProfile {
	val, _ := p.opcodes.LoadOrStore(op, &OpcodeProfile{})
	return val.(*OpcodeProfile)
}

// RecordStep counts one executed block. It reports whether this step made
// the opcode hot.
func (p *Profiler) RecordStep(op string) bool {
	atomic.AddUint64(&p.steps, 1)
	prof := p.profile(op)
	n := atomic.AddUint64(&prof.Executions, 1)
	if p.HotThreshold == 0 || n < p.HotThreshold || !prof.hot.CompareAndSwap(false, true) {
		return false
	}
	atomic.AddUint64(&p.hotCount, 1)
	if p.OnHot != nil {
		p.OnHot(op, prof)
	}
	return true
}

// RecordFault counts a fault raised by op.
func (p *Profiler) RecordFault(op string) {
	atomic.AddUint64(&p.profile(op).Faults, 1)
}

// Get returns the profile of op, or nil if it never ran.
func (p *Profiler) Get(op string) *OpcodeProfile {
	if val, ok := p.opcodes.Load(op); ok {
		return val.(*OpcodeProfile)
	}
	return nil
}

// ProfilerStats holds aggregate statistics.
type ProfilerStats struct {
	Opcodes    int
	HotOpcodes int
	Steps      uint64
	Faults     uint64
}

// Stats returns aggregate statistics.
func (p *Profiler) Stats() ProfilerStats {
	s := ProfilerStats{
		Steps:      atomic.LoadUint64(&p.steps),
		HotOpcodes: int(atomic.LoadUint64(&p.hotCount)),
	}
	p.opcodes.Range(func(_, value any) bool {
		s.Opcodes++
		s.Faults += atomic.LoadUint64(&value.(*OpcodeProfile).Faults)
		return true
	})
	return s
}

// OpcodeCount pairs an opcode with its execution count.
type OpcodeCount struct {
	Opcode string
	Count  uint64
}

// Top returns the n most executed opcodes, most frequent first. A negative
// n returns all of them.
func (p *Profiler) Top(n int) []OpcodeCount {
	var all []OpcodeCount
	p.opcodes.Range(func(key, value any) bool {
		all = append(all, OpcodeCount{key.(string), atomic.LoadUint64(&value.(*OpcodeProfile).Executions)})
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Opcode < all[j].Opcode
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Reset clears all counters.
func (p *Profiler) Reset() {
	p.opcodes.Range(func(key, _ any) bool {
		p.opcodes.Delete(key)
		return true
	})
	atomic.StoreUint64(&p.steps, 0)
	atomic.StoreUint64(&p.hotCount, 0)
}
