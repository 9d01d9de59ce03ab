package singleton

import (
	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/host"
	"go.uber.org/zap"
)

// Host is the part of the host object model the singleton system drives.
// *host.Engine implements it.
type Host interface {
	Classes() *class.Table
	NewObject(outer *host.Object, cls *class.Class) *host.Object
	SpawnActor(w *host.World, cls *class.Class) *host.Object
	TransientPackage() *host.Object
	AddToRoot(obj *host.Object)
	IsCommandlet() bool
	OnWorldCleanup(fn func(*host.World))
}

// WidgetBuilder constructs UI objects bound to a world. Headless hosts have
// none.
type WidgetBuilder interface {
	CreateWidget(w *host.World, cls *class.Class) *host.Object
}

// ContextResolver picks the current game instance when no world is given.
type ContextResolver interface {
	ResolveActiveInstance() *host.GameInstance
}

// Factory allocates new singleton instances. Where the object lives depends
// on whether its class is actor-like and whether a world is present.
type Factory struct {
	host     Host
	resolver ContextResolver
	widgets  WidgetBuilder
	rep      *Reporter
	metrics  *Metrics
	log      *zap.Logger
}

func NewFactory(h Host, resolver ContextResolver, widgets WidgetBuilder, rep *Reporter, metrics *Metrics, log *zap.Logger) *Factory {
	return &Factory{
		host:     h,
		resolver: resolver,
		widgets:  widgets,
		rep:      rep,
		metrics:  metrics,
		log:      log,
	}
}

func (f *Factory) activeInstance() *host.GameInstance {
	if f.resolver == nil {
		return nil
	}
	return f.resolver.ResolveActiveInstance()
}

// Create allocates an instance of cls for w (nil for the global scope).
// Failures are reported and return nil.
func (f *Factory) Create(cls *class.Class, w *host.World) *host.Object {
	if !f.rep.Ensure(cls != nil, "create instance of nil class") {
		return nil
	}
	classes := f.host.Classes()
	isActor := classes.IsActorClass(cls)

	var obj *host.Object
	path := "object"
	switch {
	case w == nil:
		if !f.rep.Ensure(!isActor, "cannot create actor without a world", zap.Stringer("class", cls)) {
			return nil
		}
		method := CurrentCreateMethod()
		inst := f.activeInstance()
		if method == CreateInInstance {
			f.rep.Degraded(inst != nil, "no active game instance, creating singleton in transient package",
				zap.Stringer("class", cls))
		}
		if inst != nil && method == CreateInInstance {
			obj = f.host.NewObject(&inst.Object, cls)
			path = "instance"
		} else {
			obj = f.host.NewObject(f.host.TransientPackage(), cls)
			path = "transient"
		}
	case !isActor:
		if f.widgets != nil && cls.IsChildOf(classes.UserWidget()) {
			obj = f.widgets.CreateWidget(w, cls)
			path = "widget"
		} else {
			obj = f.host.NewObject(&w.Object, cls)
		}
	default:
		obj = f.host.SpawnActor(w, cls)
		path = "actor"
	}

	if !f.rep.Ensure(obj != nil, "create instance failed", zap.Stringer("class", cls), zap.String("path", path)) {
		return nil
	}
	if f.metrics != nil {
		f.metrics.InstancesCreated.WithLabelValues(path).Inc()
	}
	f.log.Debug("create instance",
		zap.String("world", worldName(w)),
		zap.Stringer("class", cls),
		zap.String("object", obj.Name()),
		zap.String("path", path),
	)
	return obj
}

func worldName(w *host.World) string {
	if w == nil {
		return "World"
	}
	return w.Name()
}
