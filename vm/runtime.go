package vm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/sbvm/program"
)

var log = commonlog.GetLogger("sbvm.vm")

const (
	// TickPeriod is the fixed tick period.
	TickPeriod = time.Second / 30
	// WorkBudget is the share of a tick given to script execution. The
	// remaining quarter is left to rendering and asset work.
	WorkBudget = TickPeriod * 3 / 4
	// DefaultMaxClones is the live clone limit.
	DefaultMaxClones = 300
)

var (
	ErrNotClone      = errors.New("target is not a clone")
	ErrCloneLimit    = errors.New("clone limit reached")
	ErrTargetDeleted = errors.New("target deleted")
)

// Runtime is the running state of one installed program: one generation.
// It is replaced wholesale when a new program is installed.
type Runtime struct {
	generation uuid.UUID
	program    *program.Program

	arena   arena
	targets []*Target // stage first
	threads []*Thread // creation order
	live    map[threadKey]*Thread

	events     []Event
	seq        uint64
	dispatched uint64
	waiters    map[uint64][]*Thread

	nextTarget  TargetID
	nextThread  ThreadID
	lastStepped ThreadID
	clones      int

	exec      Executor
	hats      map[string]Hat
	budget    time.Duration
	clock     func() time.Time
	turbo     bool
	maxClones int
	onFault   func(*Fault)
	profiler  *Profiler

	ctx    StepContext
	redraw bool
}

// Install spawns one target per sprite of p, stage first, under a fresh
// generation. p is not modified.
func Install(p *program.Program, opts ...Option) *Runtime {
	r := &Runtime{
		generation: uuid.New(),
		program:    p,
		live:       make(map[threadKey]*Thread),
		waiters:    make(map[uint64][]*Thread),
		hats:       DefaultHats(),
		budget:     WorkBudget,
		clock:      time.Now,
		maxClones:  DefaultMaxClones,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = NewCoreOps(false)
	}

	for _, s := range p.Sprites {
		ref := r.arena.add(newSprite(s))
		r.arena.retain(ref)
		r.nextTarget++
		r.targets = append(r.targets, spawnTarget(r.nextTarget, ref, s))
	}
	log.Infof("installed generation %s with %d target(s)", r.generation, len(r.targets))
	return r
}

// Generation identifies this runtime.
func (r *Runtime) Generation() uuid.UUID { return r.generation }

// Program returns the installed program.
func (r *Runtime) Program() *program.Program { return r.program }

// Budget returns the work budget per tick.
func (r *Runtime) Budget() time.Duration { return r.budget }

// Targets returns the live targets, stage first.
func (r *Runtime) Targets() []*Target { return r.targets }

// Stage returns the stage target, or nil for an empty program.
func (r *Runtime) Stage() *Target {
	if len(r.targets) == 0 || !r.targets[0].IsStage {
		return nil
	}
	return r.targets[0]
}

// Target returns the live target with the given id.
func (r *Runtime) Target(id TargetID) (*Target, bool) {
	for _, t := range r.targets {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// TargetByName returns the original (non-clone) target of a sprite.
func (r *Runtime) TargetByName(name string) (*Target, bool) {
	for _, t := range r.targets {
		if !t.IsClone && t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Threads returns the live threads in creation order.
func (r *Runtime) Threads() []*Thread {
	out := make([]*Thread, 0, len(r.threads))
	for _, th := range r.threads {
		if th.alive() {
			out = append(out, th)
		}
	}
	return out
}

// Sprite returns the sprite behind ref, or nil once it was freed.
func (r *Runtime) Sprite(ref SpriteRef) *Sprite { return r.arena.get(ref) }

// SpriteRefs returns the number of targets holding ref.
func (r *Runtime) SpriteRefs(ref SpriteRef) int { return r.arena.count(ref) }

// GreenFlag stops everything and queues the green flag event.
func (r *Runtime) GreenFlag() {
	r.StopAll()
	r.enqueue(Event{Kind: EventGreenFlag})
}

// Broadcast queues a message and returns its sequence number.
func (r *Runtime) Broadcast(name string) uint64 {
	r.seq++
	r.enqueue(Event{Kind: EventBroadcast, Name: name, Seq: r.seq})
	return r.seq
}

// PressKey queues a key press.
func (r *Runtime) PressKey(key string) { r.enqueue(Event{Kind: EventKey, Name: key}) }

// Click queues a click on a target.
func (r *Runtime) Click(id TargetID) { r.enqueue(Event{Kind: EventClick, Target: id}) }

func (r *Runtime) enqueue(ev Event) {
	log.Debugf("queued %s event %q", ev.Kind, ev.Name)
	r.events = append(r.events, ev)
}

// StopAll finishes every thread and deletes every clone.
func (r *Runtime) StopAll() {
	for _, th := range r.threads {
		th.finish()
	}
	for i := len(r.targets) - 1; i >= 0; i-- {
		if t := r.targets[i]; t.IsClone {
			_ = r.DeleteClone(t)
		}
	}
}

// Clone creates a clone of t sharing its sprite, and queues its
// whenCloned event.
func (r *Runtime) Clone(t *Target) (*Target, error) {
	if t.deleted {
		return nil, ErrTargetDeleted
	}
	if t.IsStage {
		return nil, fmt.Errorf("vm: cannot clone the stage")
	}
	if r.clones >= r.maxClones {
		return nil, ErrCloneLimit
	}
	r.nextTarget++
	c := t.clone(r.nextTarget)
	r.arena.retain(c.sprite)
	r.clones++

	// clones sit right after their parent
	idx := len(r.targets)
	for i, o := range r.targets {
		if o == t {
			idx = i + 1
			break
		}
	}
	r.targets = append(r.targets, nil)
	copy(r.targets[idx+1:], r.targets[idx:])
	r.targets[idx] = c

	r.enqueue(Event{Kind: EventClone, Target: c.ID})
	return c, nil
}

// DeleteClone removes a clone, finishes its threads and releases its
// sprite reference.
func (r *Runtime) DeleteClone(t *Target) error {
	if !t.IsClone {
		return ErrNotClone
	}
	if t.deleted {
		return nil
	}
	for _, th := range r.threads {
		if th.target == t {
			th.finish()
		}
	}
	for i, o := range r.targets {
		if o == t {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			break
		}
	}
	t.deleted = true
	r.clones--
	r.arena.release(t.sprite)
	return nil
}

func (r *Runtime) startThread(t *Target, script int, body program.Script) *Thread {
	r.nextThread++
	th := newThread(r.nextThread, t, script, body)
	r.threads = append(r.threads, th)
	r.live[threadKey{t.ID, script}] = th
	return th
}

// reap drops finished threads and settled broadcast waiters.
func (r *Runtime) reap() {
	n := 0
	for _, th := range r.threads {
		if th.alive() {
			r.threads[n] = th
			n++
			continue
		}
		key := threadKey{th.target.ID, th.script}
		if r.live[key] == th {
			delete(r.live, key)
		}
	}
	clear(r.threads[n:])
	r.threads = r.threads[:n]

	for seq := range r.waiters {
		if r.broadcastDone(seq) {
			delete(r.waiters, seq)
		}
	}
}

func (r *Runtime) variable(t *Target, name string) (*program.Variable, bool) {
	if v, ok := t.Variables[name]; ok {
		return v, true
	}
	if st := r.Stage(); st != nil && st != t {
		v, ok := st.Variables[name]
		return v, ok
	}
	return nil, false
}

func (r *Runtime) list(t *Target, name string) (*program.List, bool) {
	if l, ok := t.Lists[name]; ok {
		return l, true
	}
	if st := r.Stage(); st != nil && st != t {
		l, ok := st.Lists[name]
		return l, ok
	}
	return nil, false
}
