package singleton

import (
	"sync"

	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/host"
	"go.uber.org/zap"
)

// Options wires a System to its collaborators.
type Options struct {
	Host     Host
	Resolver ContextResolver
	Widgets  WidgetBuilder // nil on headless hosts
	Reporter *Reporter
	Metrics  *Metrics
	Log      *zap.Logger
}

// System is the access point for per-world singletons on one host. It owns
// the world registry and is driven from the game thread only.
type System struct {
	host         Host
	classes      *class.Table
	registry     *WorldRegistry
	factory      *Factory
	constructors *Constructors
	resolver     ContextResolver
	rep          *Reporter
	metrics      *Metrics
	log          *zap.Logger

	cleanupOnce sync.Once
}

func NewSystem(opts Options) *System {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Reporter == nil {
		opts.Reporter = NewReporter(opts.Log, opts.Metrics, false)
	}
	return &System{
		host:         opts.Host,
		classes:      opts.Host.Classes(),
		registry:     NewWorldRegistry(opts.Metrics),
		factory:      NewFactory(opts.Host, opts.Resolver, opts.Widgets, opts.Reporter, opts.Metrics, opts.Log),
		constructors: NewConstructors(),
		resolver:     opts.Resolver,
		rep:          opts.Reporter,
		metrics:      opts.Metrics,
		log:          opts.Log,
	}
}

func (s *System) Registry() *WorldRegistry    { return s.registry }
func (s *System) Factory() *Factory           { return s.factory }
func (s *System) Constructors() *Constructors { return s.constructors }
func (s *System) Reporter() *Reporter         { return s.rep }

func fieldClass(key string, c *class.Class) zap.Field { return zap.Stringer(key, c) }

func fieldObject(key string, o *host.Object) zap.Field {
	return zap.String(key, host.NameOf(o, "Object"))
}

// installCleanup subscribes to world teardown the first time any manager
// is constructed.
func (s *System) installCleanup() {
	s.cleanupOnce.Do(func() {
		s.host.OnWorldCleanup(func(w *host.World) {
			s.registry.Remove(w)
			s.log.Debug("world cleanup, manager released", zap.String("world", w.Name()))
		})
	})
}

// GetManager returns the manager for w, creating it on first use. A nil w
// selects the global manager, which is co-owned by the active game instance
// or, without one, rooted. mustExist reports a missing game instance.
func (s *System) GetManager(w *host.World, mustExist bool) *Manager {
	if w != nil && !s.rep.Ensure(w.IsAlive(), "manager requested for a destroyed world") {
		return nil
	}
	slot := s.registry.FindOrCreateSlot(w)
	if !slot.Empty() {
		return slot.Manager
	}

	s.installCleanup()
	cls := s.classes.SingletonManager()
	var (
		m     *Manager
		owner string
	)
	if w == nil {
		var inst *host.GameInstance
		if s.resolver != nil {
			inst = s.resolver.ResolveActiveInstance()
		}
		if mustExist {
			s.rep.Degraded(inst != nil, "no active game instance for the global singleton manager")
		}
		obj := s.host.NewObject(s.host.TransientPackage(), cls)
		m = newManager(obj, nil)
		if obj != nil {
			if inst != nil {
				inst.RegisterReferencedObject(obj)
				owner = "instance"
			} else {
				s.host.AddToRoot(obj)
				owner = "root"
			}
		}
	} else {
		obj := s.host.NewObject(&w.Object, cls)
		m = newManager(obj, w)
		if obj != nil {
			w.AddExtraReferenced(obj)
			owner = "world"
		}
	}
	if !s.rep.Ensure(m.IsValid(), "singleton manager creation failed", zap.String("world", worldName(w))) {
		return nil
	}
	slot.Manager = m
	s.metrics.ManagersCreated.WithLabelValues(owner).Inc()
	s.log.Info("new manager",
		zap.String("world", worldName(w)),
		fieldObject("manager", m.obj),
		zap.String("owner", owner),
	)
	return m
}

// RegisterAsSingleton stores obj as the singleton for its class in the
// scope of ctx's world.
//
// With replaceExisting false, an existing live entry for obj's exact class
// (or, failing that, for stopClass) wins: it is returned and nothing is
// written. Otherwise obj overwrites the entry of every class from its own up
// to stopClass, or up to the first native class when stopClass is nil, and
// the entry previously held by that last class is returned.
//
// Returns nil without writing when obj is invalid, does not descend from
// stopClass, has no lifetime owner, or is an actor living in another world.
func (s *System) RegisterAsSingleton(obj *host.Object, ctx host.Context, replaceExisting bool, stopClass *class.Class) *host.Object {
	if !s.rep.Ensure(obj.IsValid(), "register invalid object as singleton") {
		return nil
	}
	objClass := obj.Class()
	if stopClass != nil && !s.rep.Ensure(objClass.IsChildOf(stopClass), "object is not a child class of the stop class",
		fieldObject("object", obj), fieldClass("stop", stopClass)) {
		return nil
	}

	w := host.ContextWorld(ctx)
	if s.host.IsCommandlet() || (w == nil && obj.HasFlags(host.FlagClassDefault)) {
		s.log.Warn("register singleton skipped: no lifetime owner", fieldObject("object", obj))
		return nil
	}
	if s.classes.IsActorClass(objClass) && !s.rep.Ensure(obj.World() == w, "actor registered as singleton outside its world",
		fieldObject("object", obj), zap.String("world", worldName(w))) {
		return nil
	}

	m := s.GetManager(w, true)
	if m == nil {
		return nil
	}

	if !replaceExisting {
		prev, ok := m.Lookup(objClass)
		if !ok && stopClass != nil {
			prev, ok = m.Lookup(stopClass)
		}
		if ok {
			s.log.Info("singleton exists",
				zap.String("world", worldName(w)),
				fieldClass("class", objClass),
				fieldObject("object", prev),
			)
			return prev
		}
	}

	stop := stopClass
	if stop == nil {
		stop = objClass.NativeAncestor()
	}
	var last *host.Object
	for _, cur := range objClass.Ancestors() {
		prev := m.singletons[cur]
		if !prev.IsValid() {
			prev = nil
		}
		last = prev
		if prev != nil && prev != obj && stopClass == nil && !cur.IsNative() {
			// The entry is still overwritten; a dynamic ancestor may have
			// resolved to a different instance until now.
			s.log.Warn("singleton displaced at dynamic ancestor",
				fieldClass("class", cur),
				fieldObject("previous", prev),
				fieldObject("object", obj),
			)
		}
		m.singletons[cur] = obj
		s.log.Debug("register singleton",
			zap.String("world", worldName(w)),
			fieldClass("class", cur),
			fieldObject("object", obj),
		)
		if cur == stop {
			break
		}
	}
	s.metrics.Registrations.Inc()
	return last
}

// GetOptions controls GetSingletonWith. Manager creation and instance
// creation are independent.
type GetOptions struct {
	// Create builds and registers an instance when none is live.
	Create bool
	// CreateManager creates the scope's manager when it does not exist.
	// Without a manager nothing can be stored, so Create has no effect.
	CreateManager bool
	// StrictContext reports a missing game instance when the global
	// manager is created.
	StrictContext bool
	// RegistrationClass is the mapping key; defaults to the requested
	// class. The requested class must descend from it.
	RegistrationClass *class.Class
}

// GetSingleton returns the singleton of cls for ctx's world, creating it if
// create is set. regClass, when non-nil, is the key it is stored under. The
// scope's manager is always created; create also makes a missing game
// instance a reported condition.
func (s *System) GetSingleton(cls *class.Class, ctx host.Context, create bool, regClass *class.Class) *host.Object {
	return s.GetSingletonWith(cls, ctx, GetOptions{
		Create:            create,
		CreateManager:     true,
		StrictContext:     create,
		RegistrationClass: regClass,
	})
}

// GetSingletonWith is GetSingleton with manager and instance creation
// controlled separately.
func (s *System) GetSingletonWith(cls *class.Class, ctx host.Context, opts GetOptions) *host.Object {
	if !s.rep.Ensure(cls != nil, "get singleton of nil class") {
		return nil
	}
	key := opts.RegistrationClass
	if key == nil {
		key = cls
	}
	if !s.rep.Ensure(cls.IsChildOf(key), "requested class does not descend from its registration class",
		fieldClass("class", cls), fieldClass("registration", key)) {
		return nil
	}

	w := host.ContextWorld(ctx)
	var m *Manager
	if opts.CreateManager {
		m = s.GetManager(w, opts.StrictContext)
	} else {
		m = s.registry.Find(w)
	}
	if m == nil {
		return nil
	}

	if obj, ok := m.Lookup(key); ok {
		return obj
	}
	if !opts.Create {
		return nil
	}

	obj := s.factory.Create(cls, w)
	s.log.Info("new singleton",
		zap.String("world", worldName(w)),
		fieldClass("class", cls),
		fieldObject("object", obj),
	)
	if !s.rep.Ensure(obj.IsValid(), "singleton creation failed", fieldClass("class", cls)) {
		delete(m.singletons, key)
		return nil
	}
	s.RegisterAsSingleton(obj, w, true, key)
	// The created instance always lands under its key, even when the
	// ancestor walk was skipped.
	m.singletons[key] = obj
	return obj
}

// TryGetSingleton returns cls's singleton for ctx, building it with
// construct on a miss and registering the result up to cls.
func (s *System) TryGetSingleton(cls *class.Class, ctx host.Context, construct func() *host.Object) *host.Object {
	if !s.rep.Ensure(cls != nil, "try get singleton of nil class") {
		return nil
	}
	w := host.ContextWorld(ctx)
	m := s.GetManager(w, true)
	if m == nil {
		return nil
	}
	if obj, ok := m.Lookup(cls); ok {
		return obj
	}
	obj := construct()
	if !s.rep.Ensure(obj.IsValid(), "try get singleton construction failed", fieldClass("class", cls)) {
		return nil
	}
	s.metrics.InstancesCreated.WithLabelValues("custom").Inc()
	s.RegisterAsSingleton(obj, ctx, true, cls)
	// Registration can be skipped (commandlets, class defaults without a
	// world); the slot for cls is filled regardless.
	m.singletons[cls] = obj
	return obj
}

// Singleton returns cls's singleton for ctx. On a miss with create set, a
// construction hook registered for cls builds it; classes without a hook go
// through the Factory.
func (s *System) Singleton(cls *class.Class, ctx host.Context, create bool) *host.Object {
	if obj := s.GetSingleton(cls, ctx, false, nil); obj != nil || !create {
		return obj
	}
	return s.TryGetSingleton(cls, ctx, func() *host.Object {
		return s.CreateInstance(ctx, cls, nil)
	})
}
