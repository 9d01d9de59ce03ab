package singleton

import (
	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/host"
)

// ConstructFunc builds an instance of sub (or of the class it is
// registered for when sub is nil) for ctx. It returns nil on failure.
type ConstructFunc func(ctx host.Context, sub *class.Class) *host.Object

// Constructors holds custom construction hooks keyed by the exact class
// they build. Classes without a hook go through the Factory.
type Constructors struct {
	byClass map[*class.Class]ConstructFunc
}

func NewConstructors() *Constructors {
	return &Constructors{byClass: make(map[*class.Class]ConstructFunc, 8)}
}

// Register installs fn for cls, replacing any earlier hook.
func (c *Constructors) Register(cls *class.Class, fn ConstructFunc) {
	c.byClass[cls] = fn
}

// Lookup returns the hook for cls, or nil.
func (c *Constructors) Lookup(cls *class.Class) ConstructFunc {
	return c.byClass[cls]
}

// CreateInstance builds an instance of sub, or base when sub is nil, using
// base's construction hook if one is registered. sub must descend from
// base.
func (s *System) CreateInstance(ctx host.Context, base, sub *class.Class) *host.Object {
	if !s.rep.Ensure(base != nil, "create instance without a base class") {
		return nil
	}
	if sub != nil && !s.rep.Ensure(sub.IsChildOf(base), "subclass does not descend from base",
		fieldClass("sub", sub), fieldClass("base", base)) {
		return nil
	}
	if fn := s.constructors.Lookup(base); fn != nil {
		return fn(ctx, sub)
	}
	cls := sub
	if cls == nil {
		cls = base
	}
	return s.factory.Create(cls, host.ContextWorld(ctx))
}
