package host

import "github.com/google/uuid"

// WorldType classifies a world context the way the engine enumerates them.
type WorldType uint8

const (
	WorldNone WorldType = iota
	WorldGame
	WorldEditor
	WorldPIE
	WorldEditorPreview
	WorldGamePreview
	WorldInactive
)

func (t WorldType) String() string {
	switch t {
	case WorldGame:
		return "Game"
	case WorldEditor:
		return "Editor"
	case WorldPIE:
		return "PIE"
	case WorldEditorPreview:
		return "EditorPreview"
	case WorldGamePreview:
		return "GamePreview"
	case WorldInactive:
		return "Inactive"
	}
	return "None"
}

// NetMode is the network role of a world.
type NetMode uint8

const (
	NetStandalone NetMode = iota
	NetDedicatedServer
	NetListenServer
	NetClient
)

// World is a simulation context. It is itself an Object.
type World struct {
	Object

	worldType    WorldType
	netMode      NetMode
	pieInstance  int
	sessionID    uuid.UUID
	gameInstance *GameInstance
	extra        []*Object
}

// World returns w, which makes *World a Context.
func (w *World) World() *World { return w }

func (w *World) Type() WorldType             { return w.worldType }
func (w *World) NetMode() NetMode            { return w.netMode }
func (w *World) PIEInstance() int            { return w.pieInstance }
func (w *World) SessionID() uuid.UUID        { return w.sessionID }
func (w *World) GameInstance() *GameInstance { return w.gameInstance }

// IsGameWorld reports whether the world runs gameplay.
func (w *World) IsGameWorld() bool {
	return w.worldType == WorldGame || w.worldType == WorldPIE || w.worldType == WorldGamePreview
}

// IsAlive is IsValid for a possibly nil world.
func (w *World) IsAlive() bool {
	return w != nil && w.Object.IsValid()
}

// AddExtraReferenced keeps obj alive for as long as w. Adding twice is a
// no-op.
func (w *World) AddExtraReferenced(obj *Object) {
	for _, o := range w.extra {
		if o == obj {
			return
		}
	}
	w.extra = append(w.extra, obj)
}

// ExtraReferenced returns the objects w keeps alive.
func (w *World) ExtraReferenced() []*Object { return w.extra }

// GameInstance is the application-level owner of a play session.
type GameInstance struct {
	Object

	world      *World
	referenced []*Object
}

// World returns the world the instance is currently driving.
func (g *GameInstance) World() *World {
	if g == nil {
		return nil
	}
	return g.world
}

// RegisterReferencedObject co-owns obj with the instance. Adding twice is a
// no-op.
func (g *GameInstance) RegisterReferencedObject(obj *Object) {
	for _, o := range g.referenced {
		if o == obj {
			return
		}
	}
	g.referenced = append(g.referenced, obj)
}

// ReferencedObjects returns the objects co-owned by the instance.
func (g *GameInstance) ReferencedObjects() []*Object { return g.referenced }
