package singleton

import (
	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/host"
)

// Manager is the per-scope container mapping a class to its singleton. It
// is backed by a host object whose lifetime is tied to its world (or to the
// active game instance, or rooted, for the global scope). The mapping holds
// strong references: the host keeps every registered singleton alive as long
// as the manager is.
type Manager struct {
	obj        *host.Object
	world      *host.World
	singletons map[*class.Class]*host.Object
}

func newManager(obj *host.Object, w *host.World) *Manager {
	m := &Manager{
		obj:        obj,
		world:      w,
		singletons: make(map[*class.Class]*host.Object, 16),
	}
	if obj != nil {
		obj.Value = m
		obj.SetReferencer(m.references)
	}
	return m
}

// Object returns the host object backing m.
func (m *Manager) Object() *host.Object { return m.obj }

// World returns m's world, nil for the global manager.
func (m *Manager) World() *host.World { return m.world }

// IsValid reports whether m is non-nil and its backing object is alive.
func (m *Manager) IsValid() bool { return m != nil && m.obj.IsValid() }

// Lookup returns the live singleton stored under c.
func (m *Manager) Lookup(c *class.Class) (*host.Object, bool) {
	obj := m.singletons[c]
	if !obj.IsValid() {
		return nil, false
	}
	return obj, true
}

// Len returns the number of keys, including ones whose object has since
// been destroyed.
func (m *Manager) Len() int { return len(m.singletons) }

// Classes returns the keys whose singleton is still alive.
func (m *Manager) Classes() []*class.Class {
	out := make([]*class.Class, 0, len(m.singletons))
	for c, obj := range m.singletons {
		if obj.IsValid() {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) references() []*host.Object {
	out := make([]*host.Object, 0, len(m.singletons))
	for _, obj := range m.singletons {
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out
}
