package host

import "go.uber.org/zap"

// Resolver finds the game instance that is "current" when a caller gives
// no world. Outside the editor that is the engine's only instance. In the
// editor, several play sessions can be live at once: PIE worlds win over
// game worlds, which win over standalone or second-client network worlds.
type Resolver struct {
	engine *Engine
	log    *zap.Logger
}

func NewResolver(engine *Engine, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{engine: engine, log: log}
}

// ResolveActiveInstance returns the current game instance, or nil.
func (r *Resolver) ResolveActiveInstance() *GameInstance {
	var inst *GameInstance
	if r.engine.IsEditor() {
		if r.engine.IsInitialLoad() {
			r.log.Error("active instance requested during engine initial load")
		}
		if w := r.pickEditorWorld(); w != nil {
			inst = w.GameInstance()
		}
	} else {
		inst = r.engine.GameInstance()
	}
	r.log.Debug("find instance",
		zap.String("instance", NameOf(instObject(inst), "None")),
	)
	return inst
}

func (r *Resolver) pickEditorWorld() *World {
	contexts := r.engine.WorldContexts()
	for _, match := range editorPriority {
		for _, w := range contexts {
			if w.IsGameWorld() && match(w) {
				return w
			}
		}
	}
	return nil
}

// editorPriority lists the editor world predicates, highest priority first.
var editorPriority = []func(*World) bool{
	func(w *World) bool { return w.Type() == WorldPIE },
	func(w *World) bool { return w.Type() == WorldGame },
	func(w *World) bool {
		return w.NetMode() == NetStandalone || (w.NetMode() == NetClient && w.PIEInstance() == 2)
	},
}

func instObject(g *GameInstance) *Object {
	if g == nil {
		return nil
	}
	return &g.Object
}
