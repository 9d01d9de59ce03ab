package host

import (
	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/core/handle"
)

// Flags are per-object state bits.
type Flags uint8

const (
	FlagClassDefault Flags = 1 << iota // template object, not a live instance
	FlagRooted                         // kept alive outside reference tracking
	FlagPendingKill                    // queued for destruction, no longer valid
)

// Object is a host-managed instance. References to it are weak: an Object
// pointer outlives the object itself, and IsValid reports whether the host
// still considers it alive.
type Object struct {
	id     handle.ID
	name   string
	class  *class.Class
	outer  *Object
	world  *World
	flags  Flags
	engine *Engine
	refs   func() []*Object

	// Value carries whatever a construction hook attached.
	Value any
}

func (o *Object) ID() handle.ID         { return o.id }
func (o *Object) Name() string          { return o.name }
func (o *Object) Class() *class.Class   { return o.class }
func (o *Object) Outer() *Object        { return o.outer }
func (o *Object) HasFlags(f Flags) bool { return o.flags&f == f }

// World returns the world that owns o, or nil.
func (o *Object) World() *World {
	if o == nil {
		return nil
	}
	return o.world
}

// IsA reports whether o's class is c or a descendant of it.
func (o *Object) IsA(c *class.Class) bool {
	return o != nil && o.class.IsChildOf(c)
}

// IsValid reports whether o is non-nil, alive and not pending kill.
func (o *Object) IsValid() bool {
	return o != nil && o.engine != nil && o.engine.pool.Alive(o.id) && o.flags&FlagPendingKill == 0
}

// SetReferencer installs fn as the source of o's strong references for
// garbage collection.
func (o *Object) SetReferencer(fn func() []*Object) { o.refs = fn }

// IsValid is the nil-safe form of o.IsValid.
func IsValid(o *Object) bool { return o.IsValid() }

// NameOf returns o's name, or fallback when o is nil.
func NameOf(o *Object, fallback string) string {
	if o == nil {
		return fallback
	}
	return o.name
}

// A Context is anything that can name a world: a world, an object living in
// one, or a game instance. A nil Context and a nil world mean the global
// scope.
type Context interface {
	World() *World
}

// ContextWorld resolves ctx to its world, tolerating nil contexts.
func ContextWorld(ctx Context) *World {
	if ctx == nil {
		return nil
	}
	return ctx.World()
}
