package host

import (
	"time"

	"github.com/l1jgo/worldsingleton/internal/core/handle"
	coresys "github.com/l1jgo/worldsingleton/internal/core/system"
	"go.uber.org/zap"
)

// CollectGarbage sweeps transient objects that nothing keeps alive and
// returns how many were destroyed.
//
// Roots are rooted objects, live game instances with their referenced
// objects, live worlds with their extra-referenced objects, and every
// object whose outer chain ends somewhere other than the transient package.
// Referencer edges are followed from every marked object.
func (e *Engine) CollectGarbage() int {
	marked := make(map[handle.ID]bool, len(e.objects))
	var stack []*Object
	mark := func(o *Object) {
		if o == nil || !e.pool.Alive(o.id) || marked[o.id] {
			return
		}
		marked[o.id] = true
		stack = append(stack, o)
	}

	for _, o := range e.objects {
		if o.flags&FlagRooted != 0 || !e.ownedByTransient(o) {
			mark(o)
		}
	}
	for _, g := range e.instances {
		mark(&g.Object)
		for _, o := range g.referenced {
			mark(o)
		}
	}
	for _, w := range e.worlds {
		for _, o := range w.extra {
			mark(o)
		}
	}

	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		mark(o.outer)
		if o.refs != nil {
			for _, r := range o.refs() {
				mark(r)
			}
		}
	}

	var garbage []*Object
	for id, o := range e.objects {
		if !marked[id] {
			garbage = append(garbage, o)
		}
	}
	for _, o := range garbage {
		e.destroy(o)
	}
	if len(garbage) > 0 {
		e.log.Debug("garbage collected", zap.Int("objects", len(garbage)))
	}
	return len(garbage)
}

// ownedByTransient reports whether o's outer chain ends at the transient
// package.
func (e *Engine) ownedByTransient(o *Object) bool {
	if o == e.transient {
		return false
	}
	cur := o
	for cur.outer != nil {
		cur = cur.outer
	}
	return cur == e.transient
}

// CleanupSystem flushes the destroy queue each tick and collects garbage
// every interval. Phase Cleanup.
type CleanupSystem struct {
	engine   *Engine
	interval time.Duration
	elapsed  time.Duration
}

func NewCleanupSystem(engine *Engine, gcInterval time.Duration) *CleanupSystem {
	return &CleanupSystem{engine: engine, interval: gcInterval}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(dt time.Duration) {
	s.engine.FlushDestroyQueue()
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed >= s.interval {
		s.elapsed = 0
		s.engine.CollectGarbage()
	}
}

// DispatchSystem swaps the event buffers and delivers last tick's events.
// Phase PreUpdate.
type DispatchSystem struct {
	engine *Engine
}

func NewDispatchSystem(engine *Engine) *DispatchSystem {
	return &DispatchSystem{engine: engine}
}

func (s *DispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *DispatchSystem) Update(_ time.Duration) {
	s.engine.bus.SwapBuffers()
	s.engine.bus.DispatchAll()
}
