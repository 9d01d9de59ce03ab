package host

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/core/event"
	"github.com/l1jgo/worldsingleton/internal/core/handle"
	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	Classes    *class.Table
	Editor     bool // multiple world contexts may be live at once
	Headless   bool // no UI construction
	Commandlet bool // running a cook/tool commandlet
	Log        *zap.Logger
}

// Engine is the host object model: it allocates objects, owns worlds and
// game instances, runs garbage collection and delivers world lifecycle
// events. Single-goroutine access only (game thread).
type Engine struct {
	classes *class.Table
	pool    *handle.Pool
	objects map[handle.ID]*Object
	bus     *event.Bus
	log     *zap.Logger

	transient    *Object
	worlds       []*World
	instances    []*GameInstance
	destroyQueue []*Object
	nameCounters map[*class.Class]int

	editor      bool
	headless    bool
	commandlet  bool
	initialLoad bool
}

// NewEngine creates an engine with its transient package in place.
func NewEngine(opts Options) *Engine {
	if opts.Classes == nil {
		opts.Classes = class.NewTable()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	e := &Engine{
		classes:      opts.Classes,
		pool:         handle.NewPool(),
		objects:      make(map[handle.ID]*Object, 256),
		bus:          event.NewBus(),
		log:          opts.Log,
		nameCounters: make(map[*class.Class]int, 64),
		editor:       opts.Editor,
		headless:     opts.Headless,
		commandlet:   opts.Commandlet,
	}
	e.transient = e.track(&Object{}, "/Engine/Transient", e.classes.Lookup(class.NamePackage), nil)
	e.transient.flags |= FlagRooted
	return e
}

func (e *Engine) Classes() *class.Table       { return e.classes }
func (e *Engine) Bus() *event.Bus             { return e.bus }
func (e *Engine) TransientPackage() *Object   { return e.transient }
func (e *Engine) IsEditor() bool              { return e.editor }
func (e *Engine) IsHeadless() bool            { return e.headless }
func (e *Engine) IsCommandlet() bool          { return e.commandlet }
func (e *Engine) IsInitialLoad() bool         { return e.initialLoad }
func (e *Engine) SetInitialLoad(v bool)       { e.initialLoad = v }
func (e *Engine) IsValid(obj *Object) bool    { return obj.IsValid() }
func (e *Engine) LiveObjects() int            { return len(e.objects) }
func (e *Engine) Lookup(id handle.ID) *Object { return e.objects[id] }

func (e *Engine) track(o *Object, name string, cls *class.Class, outer *Object) *Object {
	o.id = e.pool.Create()
	o.class = cls
	o.outer = outer
	o.engine = e
	if outer != nil {
		o.world = outer.world
	}
	if name == "" {
		n := e.nameCounters[cls]
		e.nameCounters[cls] = n + 1
		name = fmt.Sprintf("%s_%d", cls.Name(), n)
	}
	o.name = name
	e.objects[o.id] = o
	return o
}

// NewObject allocates an instance of cls owned by outer. A nil outer means
// the transient package. Returns nil if outer is no longer valid.
func (e *Engine) NewObject(outer *Object, cls *class.Class) *Object {
	if cls == nil {
		return nil
	}
	if outer == nil {
		outer = e.transient
	}
	if !outer.IsValid() {
		return nil
	}
	return e.track(&Object{}, "", cls, outer)
}

// NewPackage creates a named, rooted package object. Objects outered to a
// package other than the transient one survive collection with it.
func (e *Engine) NewPackage(name string) *Object {
	o := e.track(&Object{}, name, e.classes.Lookup(class.NamePackage), nil)
	o.flags |= FlagRooted
	return o
}

// NewClassDefault allocates the template object for cls.
func (e *Engine) NewClassDefault(cls *class.Class) *Object {
	o := e.track(&Object{}, "Default__"+cls.Name(), cls, e.transient)
	o.flags |= FlagClassDefault | FlagRooted
	return o
}

// WorldOptions describes a world to create.
type WorldOptions struct {
	Name         string
	Type         WorldType
	NetMode      NetMode
	PIEInstance  int
	GameInstance *GameInstance
}

// CreateWorld creates a world and appends it to the world contexts.
func (e *Engine) CreateWorld(opts WorldOptions) *World {
	w := &World{
		worldType:    opts.Type,
		netMode:      opts.NetMode,
		pieInstance:  opts.PIEInstance,
		sessionID:    uuid.New(),
		gameInstance: opts.GameInstance,
	}
	e.track(&w.Object, opts.Name, e.classes.Lookup(class.NameWorld), nil)
	w.Object.world = w
	if opts.GameInstance != nil {
		opts.GameInstance.world = w
	}
	e.worlds = append(e.worlds, w)
	event.Emit(e.bus, event.WorldInitialized{World: w.id})
	e.log.Debug("world created",
		zap.String("world", w.name),
		zap.Stringer("type", w.worldType),
		zap.String("session", w.sessionID.String()),
	)
	return w
}

// WorldContexts returns the live worlds in creation order.
func (e *Engine) WorldContexts() []*World {
	out := make([]*World, 0, len(e.worlds))
	for _, w := range e.worlds {
		if w.IsAlive() {
			out = append(out, w)
		}
	}
	return out
}

// WorldByID resolves a world handle, or nil if it is stale.
func (e *Engine) WorldByID(id handle.ID) *World {
	for _, w := range e.worlds {
		if w.id == id && w.IsAlive() {
			return w
		}
	}
	return nil
}

// CreateGameInstance creates an application instance. Game instances are
// garbage collection roots until destroyed.
func (e *Engine) CreateGameInstance(name string) *GameInstance {
	g := &GameInstance{}
	e.track(&g.Object, name, e.classes.Lookup(class.NameGameInstance), nil)
	e.instances = append(e.instances, g)
	return g
}

// GameInstance returns the first live game instance. Outside the editor
// there is exactly one.
func (e *Engine) GameInstance() *GameInstance {
	for _, g := range e.instances {
		if g.Object.IsValid() {
			return g
		}
	}
	return nil
}

// SpawnActor spawns an actor-like object into w.
func (e *Engine) SpawnActor(w *World, cls *class.Class) *Object {
	if !w.IsAlive() || !e.classes.IsActorClass(cls) {
		return nil
	}
	return e.track(&Object{}, "", cls, &w.Object)
}

// CreateWidget constructs a UI object bound to w. Headless engines have no
// UI and return nil.
func (e *Engine) CreateWidget(w *World, cls *class.Class) *Object {
	if e.headless || !w.IsAlive() || !cls.IsChildOf(e.classes.UserWidget()) {
		return nil
	}
	return e.track(&Object{}, "", cls, &w.Object)
}

// AddToRoot keeps obj alive regardless of references.
func (e *Engine) AddToRoot(obj *Object) {
	if obj.IsValid() {
		obj.flags |= FlagRooted
	}
}

// RemoveFromRoot undoes AddToRoot.
func (e *Engine) RemoveFromRoot(obj *Object) {
	if obj != nil && obj != e.transient {
		obj.flags &^= FlagRooted
	}
}

// MarkPendingKill invalidates obj now and queues it for destruction at the
// end of the tick.
func (e *Engine) MarkPendingKill(obj *Object) {
	if !obj.IsValid() || obj == e.transient {
		return
	}
	obj.flags |= FlagPendingKill
	e.destroyQueue = append(e.destroyQueue, obj)
}

// FlushDestroyQueue destroys every object marked pending kill.
func (e *Engine) FlushDestroyQueue() {
	for _, obj := range e.destroyQueue {
		e.destroy(obj)
	}
	e.destroyQueue = e.destroyQueue[:0]
}

// OnWorldCleanup subscribes fn to the world-about-to-be-cleaned-up
// notification.
func (e *Engine) OnWorldCleanup(fn func(*World)) {
	event.Subscribe(e.bus, func(ev event.WorldCleanup) {
		if w := e.WorldByID(ev.World); w != nil {
			fn(w)
		}
	})
}

// CleanupWorld delivers the world-about-to-be-cleaned-up notification. The
// world object itself stays valid until it is destroyed. Cleaning a stale
// world is a no-op.
func (e *Engine) CleanupWorld(w *World, sessionEnded bool) {
	if !w.IsAlive() {
		return
	}
	event.Publish(e.bus, event.WorldCleanup{World: w.id, SessionEnded: sessionEnded, CleanupResources: true})
}

// DestroyWorld cleans w up, then destroys it with everything it owns.
func (e *Engine) DestroyWorld(w *World) {
	if !w.IsAlive() {
		return
	}
	e.CleanupWorld(w, true)
	e.destroyWorld(w)
}

// DestroyWorldSilently destroys w without delivering the cleanup
// notification.
func (e *Engine) DestroyWorldSilently(w *World) {
	if w.IsAlive() {
		e.destroyWorld(w)
	}
}

func (e *Engine) destroyWorld(w *World) {
	if g := w.gameInstance; g != nil && g.world == w {
		g.world = nil
	}
	w.extra = nil
	e.destroy(&w.Object)
	for i, cur := range e.worlds {
		if cur == w {
			e.worlds = append(e.worlds[:i], e.worlds[i+1:]...)
			break
		}
	}
	e.log.Debug("world destroyed", zap.String("world", w.name))
}

// DestroyGameInstance destroys g and the objects it owns.
func (e *Engine) DestroyGameInstance(g *GameInstance) {
	if g == nil || !g.Object.IsValid() {
		return
	}
	g.referenced = nil
	e.destroy(&g.Object)
	for i, cur := range e.instances {
		if cur == g {
			e.instances = append(e.instances[:i], e.instances[i+1:]...)
			break
		}
	}
}

// destroy removes obj and, recursively, every object it is the outer of.
func (e *Engine) destroy(obj *Object) {
	if !e.pool.Alive(obj.id) {
		return
	}
	var inners []*Object
	for _, o := range e.objects {
		if o.outer == obj {
			inners = append(inners, o)
		}
	}
	for _, in := range inners {
		e.destroy(in)
	}
	delete(e.objects, obj.id)
	e.pool.Destroy(obj.id)
	event.Emit(e.bus, event.ObjectDestroyed{Object: obj.id, Name: obj.name})
}
