package singleton

import "github.com/l1jgo/worldsingleton/internal/host"

// Slot holds the manager for one scope. A slot whose manager object is no
// longer valid is empty.
type Slot struct {
	Manager *Manager
}

// Empty reports whether the slot holds no live manager.
func (s *Slot) Empty() bool { return !s.Manager.IsValid() }

type registryEntry struct {
	world *host.World // nil for the global scope
	slot  *Slot
}

// WorldRegistry pairs weakly held worlds with their manager slot. At most
// one entry exists per live world, plus one nil-world entry for the global
// scope. Entries whose world died are pruned during scans. Game thread
// only.
type WorldRegistry struct {
	entries []registryEntry
	metrics *Metrics
}

func NewWorldRegistry(metrics *Metrics) *WorldRegistry {
	return &WorldRegistry{
		entries: make([]registryEntry, 0, 8),
		metrics: metrics,
	}
}

func (e registryEntry) stale() bool {
	return e.world != nil && !e.world.IsAlive()
}

// scan walks the entries, dropping stale ones, and returns the index of
// the first entry bound to w or -1.
func (r *WorldRegistry) scan(w *host.World) int {
	found := -1
	for i := 0; i < len(r.entries); i++ {
		e := r.entries[i]
		if e.stale() {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			i--
			if r.metrics != nil {
				r.metrics.StalePruned.Inc()
			}
			continue
		}
		if e.world == w {
			found = i
			break
		}
	}
	r.updateGauge()
	return found
}

// FindOrCreateSlot returns the slot for w, appending a new one if none
// exists. A stale w is looked up as the global scope so the nil entry stays
// unique.
func (r *WorldRegistry) FindOrCreateSlot(w *host.World) *Slot {
	if w != nil && !w.IsAlive() {
		w = nil
	}
	if i := r.scan(w); i >= 0 {
		return r.entries[i].slot
	}
	slot := &Slot{}
	r.entries = append(r.entries, registryEntry{world: w, slot: slot})
	r.updateGauge()
	return slot
}

// Find returns w's manager without creating a slot. Stale entries are still
// pruned.
func (r *WorldRegistry) Find(w *host.World) *Manager {
	if w != nil && !w.IsAlive() {
		return nil
	}
	i := r.scan(w)
	if i < 0 || r.entries[i].slot.Empty() {
		return nil
	}
	return r.entries[i].slot.Manager
}

// Remove drops the entry bound to w. Removing the global scope or an
// absent world is a no-op.
func (r *WorldRegistry) Remove(w *host.World) {
	if w == nil {
		return
	}
	if i := r.scan(w); i >= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		r.updateGauge()
	}
}

// Len returns the number of entries, stale ones included until the next
// scan.
func (r *WorldRegistry) Len() int { return len(r.entries) }

func (r *WorldRegistry) updateGauge() {
	if r.metrics != nil {
		r.metrics.RegistryEntries.Set(float64(len(r.entries)))
	}
}
