// Package engine owns the active runtime. One goroutine ticks it and
// serves requests between ticks; loads run elsewhere and hand finished
// programs over through Publish.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/sbvm/loader"
	"github.com/chazu/sbvm/manifest"
	"github.com/chazu/sbvm/program"
	"github.com/chazu/sbvm/vm"
)

var log = commonlog.GetLogger("sbvm.engine")

// request is a unit of work run on the engine goroutine between ticks.
type request struct {
	fn   func(*vm.Runtime)
	done chan error
}

// Engine serializes all runtime access. Tick and the request loop in Run
// must only be driven from one goroutine; Publish, Load, Do and Active may
// be called from any goroutine.
type Engine struct {
	cfg    *manifest.Manifest
	loader *loader.Loader
	opts   []vm.Option

	mu      sync.Mutex
	pending *program.Program

	active   atomic.Pointer[vm.Runtime]
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// New returns an engine configured by cfg. A nil cfg uses
// manifest.Default and a nil ld a plain loader. opts are applied after the
// options derived from cfg.
func New(cfg *manifest.Manifest, ld *loader.Loader, opts ...vm.Option) *Engine {
	if cfg == nil {
		cfg = manifest.Default()
	}
	if ld == nil {
		ld = loader.New()
	}
	base := []vm.Option{
		vm.WithBudget(cfg.WorkBudget()),
		vm.WithTurbo(cfg.Runtime.Turbo),
		vm.WithMaxClones(cfg.Runtime.MaxClones),
		vm.WithExecutor(vm.NewCoreOps(cfg.Runtime.StrictOpcodes)),
	}
	return &Engine{
		cfg:      cfg,
		loader:   ld,
		opts:     append(base, opts...),
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *manifest.Manifest { return e.cfg }

// Active returns the running runtime, or nil before the first install.
func (e *Engine) Active() *vm.Runtime { return e.active.Load() }

// Publish hands p over for installation at the next tick boundary. The
// engine takes ownership of p. An unpublished program is replaced.
func (e *Engine) Publish(p *program.Program) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setPending(p)
}

// publishIfLive publishes p unless ctx is already done. The check and the
// hand-off happen under one lock, so a cancel either wins or lands after
// the program was published.
func (e *Engine) publishIfLive(ctx context.Context, p *program.Program) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	e.setPending(p)
	return nil
}

// setPending requires e.mu.
func (e *Engine) setPending(p *program.Program) {
	if e.pending != nil {
		log.Debug("dropping superseded pending program")
	}
	e.pending = p
}

func (e *Engine) takePending() *program.Program {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.pending
	e.pending = nil
	return p
}

// installPending swaps in a published program as a new generation.
func (e *Engine) installPending() {
	p := e.takePending()
	if p == nil {
		return
	}
	rt := vm.Install(p, e.opts...)
	if old := e.active.Swap(rt); old != nil {
		log.Infof("generation %s replaced by %s", old.Generation(), rt.Generation())
	}
}

// Tick installs a pending program, then ticks the active runtime. Without
// a runtime it returns zero stats.
func (e *Engine) Tick(now time.Time) vm.TickStats {
	e.installPending()
	rt := e.active.Load()
	if rt == nil {
		return vm.TickStats{}
	}
	stats := rt.Tick(now)
	if over := stats.Overrun(rt.Budget()); over > 0 {
		log.Debugf("tick overran its budget by %s", over)
	}
	return stats
}

// Load runs the loader on a new goroutine and publishes the program on
// success. The channel receives the outcome. A load cancelled before it
// publishes leaves the engine untouched; once published, cancelling has no
// effect.
func (e *Engine) Load(ctx context.Context, data []byte) <-chan error {
	done := make(chan error, 1)
	go func() {
		res, err := e.loader.Load(ctx, data)
		if err != nil {
			done <- err
			return
		}
		if err := e.publishIfLive(ctx, res.Program); err != nil {
			log.Debugf("load finished after cancellation: %v", err)
			done <- err
			return
		}
		for _, issue := range res.Issues {
			log.Warningf("%v", issue)
		}
		done <- nil
	}()
	return done
}

// Do runs fn on the engine goroutine between two ticks and waits for it.
// fn sees the runtime a tick would run next, which is nil until a program
// is published. A panic in fn is returned as an error. Do needs Run to be
// serving requests.
func (e *Engine) Do(ctx context.Context, fn func(*vm.Runtime)) error {
	select {
	case <-e.quit:
		return ErrStopped
	default:
	}
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case e.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrStopped
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrStopped
	}
}

func (e *Engine) serve(fn func(*vm.Runtime)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: request panicked: %v", r)
		}
	}()
	e.installPending()
	fn(e.active.Load())
	return nil
}

// Run ticks at the configured period and serves Do requests in between,
// until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickPeriod())
	defer ticker.Stop()
	log.Infof("running at %s per tick", e.cfg.TickPeriod())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.quit:
			return nil
		case req := <-e.requests:
			req.done <- e.serve(req.fn)
		case now := <-ticker.C:
			e.Tick(now)
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}
