package vm

import (
	"strings"

	"github.com/chazu/sbvm/program"
)

// EventKind is the kind of an edge-triggered input event.
type EventKind uint8

const (
	EventGreenFlag EventKind = iota + 1
	EventBroadcast
	EventKey
	EventClick
	EventClone
)

func (k EventKind) String() string {
	switch k {
	case EventGreenFlag:
		return "green flag"
	case EventBroadcast:
		return "broadcast"
	case EventKey:
		return "key"
	case EventClick:
		return "click"
	case EventClone:
		return "clone"
	}
	return "unknown"
}

// Event is queued between ticks and consumed by the next hat pass.
type Event struct {
	Kind   EventKind
	Name   string   // broadcast message or key name
	Target TargetID // clicked target or new clone
	Seq    uint64   // broadcast sequence number
}

// Hat decides whether the hat block heading a script of t fires for ev.
type Hat func(t *Target, hat *program.Block, ev Event) bool

// DefaultHats returns the event hats understood out of the box.
func DefaultHats() map[string]Hat {
	return map[string]Hat{
		"whenGreenFlag": func(t *Target, hat *program.Block, ev Event) bool {
			return ev.Kind == EventGreenFlag
		},
		"whenIReceive": func(t *Target, hat *program.Block, ev Event) bool {
			return ev.Kind == EventBroadcast && strings.EqualFold(hatArg(hat), ev.Name)
		},
		"whenKeyPressed": func(t *Target, hat *program.Block, ev Event) bool {
			if ev.Kind != EventKey {
				return false
			}
			key := hatArg(hat)
			return key == "any" || strings.EqualFold(key, ev.Name)
		},
		"whenClicked": func(t *Target, hat *program.Block, ev Event) bool {
			return ev.Kind == EventClick && ev.Target == t.ID
		},
		"whenCloned": func(t *Target, hat *program.Block, ev Event) bool {
			return ev.Kind == EventClone && ev.Target == t.ID
		},
	}
}

func hatArg(hat *program.Block) string {
	if len(hat.Arguments) == 0 || hat.Arguments[0].IsExpression() {
		return ""
	}
	return hat.Arguments[0].Literal.String()
}

type threadKey struct {
	target TargetID
	script int
}

// hatPass consumes the queued events. For every target, stage first, each
// script headed by a matching hat starts a thread at the block after the
// hat unless one is already running for that script.
func (r *Runtime) hatPass() int {
	events := r.events
	r.events = nil
	started := 0
	for _, ev := range events {
		for _, t := range r.targets {
			sp := r.arena.get(t.sprite)
			for i := range sp.Scripts {
				item := &sp.Scripts[i]
				if item.IsDefinition() || len(item.Script) < 2 {
					continue
				}
				head := &item.Script[0]
				hat, ok := r.hats[head.Opcode]
				if !ok || !hat(t, head, ev) {
					continue
				}
				th, running := r.live[threadKey{t.ID, i}]
				if !running || !th.alive() {
					th = r.startThread(t, i, item.Script[1:])
					started++
				}
				if ev.Kind == EventBroadcast {
					r.waiters[ev.Seq] = append(r.waiters[ev.Seq], th)
				}
			}
		}
		if ev.Kind == EventBroadcast && ev.Seq > r.dispatched {
			r.dispatched = ev.Seq
		}
	}
	return started
}

func (r *Runtime) broadcastDone(seq uint64) bool {
	if seq > r.dispatched {
		return false
	}
	for _, th := range r.waiters[seq] {
		if th.alive() {
			return false
		}
	}
	return true
}
