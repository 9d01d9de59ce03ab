package singleton

import (
	"testing"

	"github.com/l1jgo/worldsingleton/internal/host"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSingletonIsStable(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	a := f.sys.GetSingleton(f.inventory, w, true, nil)
	require.NotNil(t, a)
	b := f.sys.GetSingleton(f.inventory, w, true, nil)
	assert.Same(t, a, b)
	assert.Equal(t, w, a.World())

	g1 := f.sys.GetSingleton(f.inventory, noWorld, true, nil)
	require.NotNil(t, g1)
	g2 := f.sys.GetSingleton(f.inventory, noWorld, true, nil)
	assert.Same(t, g1, g2)
	assert.NotSame(t, a, g1)

	// Any object living in the world is an equivalent context.
	other := f.engine.NewObject(&w.Object, f.quest)
	assert.Same(t, a, f.sys.GetSingleton(f.inventory, other, true, nil))
	assert.Zero(t, f.sys.Reporter().Violations())
}

func TestWorldsAreIsolated(t *testing.T) {
	f := newFixture(t, host.Options{})
	w1 := f.world("Map01")
	w2 := f.world("Map02")

	obj := f.engine.NewObject(&w1.Object, f.quest)
	f.sys.RegisterAsSingleton(obj, w1, true, nil)

	assert.Same(t, obj, f.sys.GetSingleton(f.quest, w1, false, nil))
	assert.Nil(t, f.sys.GetSingleton(f.quest, w2, false, nil))
	assert.Nil(t, f.sys.GetSingleton(f.quest, noWorld, false, nil))

	m1 := f.sys.GetManager(w1, true)
	m2 := f.sys.GetManager(w2, true)
	assert.NotSame(t, m1, m2)
	assert.Equal(t, w1, m1.World())
}

func TestGlobalScopeHasOneManager(t *testing.T) {
	f := newFixture(t, host.Options{})
	f.engine.CreateGameInstance("GameInstance")

	m1 := f.sys.GetManager(nil, true)
	m2 := f.sys.GetManager(nil, false)
	require.NotNil(t, m1)
	assert.Same(t, m1, m2)
	assert.Nil(t, m1.World())
	assert.Equal(t, 1, f.sys.Registry().Len())

	// A world that died before the lookup resolves to nothing, never a
	// second global slot.
	w := f.world("Map01")
	f.engine.DestroyWorldSilently(w)
	assert.Nil(t, f.sys.GetManager(w, true))
	assert.Equal(t, 1, f.sys.Registry().Len())
	assert.Equal(t, 1, f.sys.Reporter().Violations())
}

func TestCleanupNotificationReleasesWorldManager(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	s1 := f.sys.GetSingleton(f.inventory, w, true, nil)
	require.NotNil(t, s1)
	m1 := f.sys.GetManager(w, true)

	f.engine.CleanupWorld(w, false)
	require.True(t, w.IsAlive())

	m2 := f.sys.GetManager(w, true)
	assert.NotSame(t, m1, m2, "cleanup must drop the old manager")
	s2 := f.sys.GetSingleton(f.inventory, w, true, nil)
	require.NotNil(t, s2)
	assert.NotSame(t, s1, s2)

	// Removing an already-absent world is a no-op.
	f.engine.CleanupWorld(w, false)
	f.sys.Registry().Remove(w)
	assert.Equal(t, 0, f.sys.Registry().Len())
}

func TestDestroyedWorldTakesManagerWithIt(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	s := f.sys.GetSingleton(f.inventory, w, true, nil)
	m := f.sys.GetManager(w, true)

	assert.Contains(t, w.ExtraReferenced(), m.Object())
	assert.Same(t, &w.Object, m.Object().Outer())

	f.engine.DestroyWorld(w)
	assert.False(t, m.IsValid())
	assert.False(t, s.IsValid())
	assert.Equal(t, 0, f.sys.Registry().Len())
}

func TestStaleWorldsArePrunedLazily(t *testing.T) {
	f := newFixture(t, host.Options{})
	w1 := f.world("Map01")
	w2 := f.world("Map02")
	f.sys.GetManager(w1, true)
	f.sys.GetManager(nil, true)
	require.Equal(t, 2, f.sys.Registry().Len())

	// No cleanup notification: the entry lingers until a scan.
	f.engine.DestroyWorldSilently(w1)
	assert.Equal(t, 2, f.sys.Registry().Len())

	f.sys.GetManager(w2, true)
	assert.Equal(t, 2, f.sys.Registry().Len(), "w1 pruned, w2 added")
}

func TestRegisterWithoutReplaceKeepsFirst(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	a := f.engine.NewObject(&w.Object, f.quest)
	b := f.engine.NewObject(&w.Object, f.quest)

	assert.Nil(t, f.sys.RegisterAsSingleton(a, w, false, nil))
	got := f.sys.RegisterAsSingleton(b, w, false, nil)
	assert.Same(t, a, got)
	assert.Same(t, a, f.sys.GetSingleton(f.quest, w, false, nil))
}

func TestRegisterWithoutReplaceChecksStopClass(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	base := f.engine.NewObject(&w.Object, f.inventory)
	f.sys.RegisterAsSingleton(base, w, true, nil)

	bp := f.engine.NewObject(&w.Object, f.bpInv)
	got := f.sys.RegisterAsSingleton(bp, w, false, f.inventory)
	assert.Same(t, base, got)
	m := f.sys.GetManager(w, true)
	_, ok := m.Lookup(f.bpInv)
	assert.False(t, ok, "nothing written when an entry already exists")
}

func TestAncestorWalkStopsAtFirstNative(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	d := f.engine.NewObject(&w.Object, f.bpDeluxe)

	prev := f.sys.RegisterAsSingleton(d, w, true, nil)
	assert.Nil(t, prev)

	m := f.sys.GetManager(w, true)
	for _, c := range []string{"BP_InventoryDeluxe", "BP_Inventory", "Inventory"} {
		got, ok := m.Lookup(f.classes.Lookup(c))
		require.True(t, ok, c)
		assert.Same(t, d, got, c)
	}
	_, ok := m.Lookup(f.classes.Object())
	assert.False(t, ok, "the walk never passes the native boundary")
	assert.Equal(t, 3, m.Len())
	assert.Len(t, m.Classes(), 3)
}

func TestAncestorWalkHonoursStopClass(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	a := f.engine.NewObject(&w.Object, f.inventory)
	f.sys.RegisterAsSingleton(a, w, true, nil)

	d := f.engine.NewObject(&w.Object, f.bpDeluxe)
	prev := f.sys.RegisterAsSingleton(d, w, true, f.bpInv)
	assert.Nil(t, prev)

	m := f.sys.GetManager(w, true)
	got, _ := m.Lookup(f.bpDeluxe)
	assert.Same(t, d, got)
	got, _ = m.Lookup(f.bpInv)
	assert.Same(t, d, got)
	got, _ = m.Lookup(f.inventory)
	assert.Same(t, a, got, "entries above the stop class are untouched")
}

func TestReplaceReturnsDisplacedAtStopPoint(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	first := f.engine.NewObject(&w.Object, f.bpInv)
	second := f.engine.NewObject(&w.Object, f.bpDeluxe)

	assert.Nil(t, f.sys.RegisterAsSingleton(first, w, true, nil))
	prev := f.sys.RegisterAsSingleton(second, w, true, nil)
	assert.Same(t, first, prev)
	assert.Same(t, second, f.sys.GetSingleton(f.inventory, w, false, nil))
	// Overwriting BP_Inventory, a dynamic class held by another instance,
	// is logged.
	assert.Equal(t, 1, f.logs.FilterMessage("singleton displaced at dynamic ancestor").Len())

	// A dead previous entry reads as nil.
	f.engine.MarkPendingKill(second)
	third := f.engine.NewObject(&w.Object, f.inventory)
	assert.Nil(t, f.sys.RegisterAsSingleton(third, w, true, nil))
}

func TestRegisterRejectsActorFromAnotherWorld(t *testing.T) {
	f := newFixture(t, host.Options{})
	w1 := f.world("Map01")
	w2 := f.world("Map02")
	actor := f.engine.SpawnActor(w1, f.weather)
	require.NotNil(t, actor)

	assert.Nil(t, f.sys.RegisterAsSingleton(actor, w2, true, nil))
	assert.Nil(t, f.sys.RegisterAsSingleton(actor, noWorld, true, nil))
	assert.Equal(t, 2, f.sys.Reporter().Violations())
	assert.Nil(t, f.sys.GetSingleton(f.weather, w2, false, nil))

	assert.Nil(t, f.sys.RegisterAsSingleton(actor, w1, true, nil))
	assert.Same(t, actor, f.sys.GetSingleton(f.weather, w1, false, nil))
}

func TestRegisterContractViolations(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	assert.Nil(t, f.sys.RegisterAsSingleton(nil, w, true, nil))
	assert.Equal(t, 1, f.sys.Reporter().Violations())

	q := f.engine.NewObject(&w.Object, f.quest)
	assert.Nil(t, f.sys.RegisterAsSingleton(q, w, true, f.inventory))
	assert.Equal(t, 2, f.sys.Reporter().Violations())
	assert.Nil(t, f.sys.GetSingleton(f.quest, w, false, nil))

	dead := f.engine.NewObject(&w.Object, f.quest)
	f.engine.MarkPendingKill(dead)
	assert.Nil(t, f.sys.RegisterAsSingleton(dead, w, true, nil))
	assert.Equal(t, 3, f.sys.Reporter().Violations())
}

func TestRegisterClassDefaultNeedsWorld(t *testing.T) {
	f := newFixture(t, host.Options{})
	f.engine.CreateGameInstance("GameInstance")
	cdo := f.engine.NewClassDefault(f.quest)

	assert.Nil(t, f.sys.RegisterAsSingleton(cdo, noWorld, true, nil))
	assert.Nil(t, f.sys.GetSingleton(f.quest, noWorld, false, nil))

	w := f.world("Map01")
	f.sys.RegisterAsSingleton(cdo, w, true, nil)
	assert.Same(t, cdo, f.sys.GetSingleton(f.quest, w, false, nil))
}

func TestRegisterSkippedInCommandlet(t *testing.T) {
	f := newFixture(t, host.Options{Commandlet: true})
	w := f.world("Map01")
	q := f.engine.NewObject(&w.Object, f.quest)

	assert.Nil(t, f.sys.RegisterAsSingleton(q, w, true, nil))
	assert.Nil(t, f.sys.GetSingleton(f.quest, w, false, nil))
	assert.Zero(t, f.sys.Reporter().Violations())
}

func TestSingletonIsStableInCommandlet(t *testing.T) {
	f := newFixture(t, host.Options{Commandlet: true})
	w := f.world("Map01")

	first := f.sys.Singleton(f.inventory, w, true)
	require.NotNil(t, first)
	assert.Same(t, first, f.sys.Singleton(f.inventory, w, true))

	built := 0
	construct := func() *host.Object {
		built++
		return f.engine.NewObject(&w.Object, f.quest)
	}
	q := f.sys.TryGetSingleton(f.quest, w, construct)
	assert.Same(t, q, f.sys.TryGetSingleton(f.quest, w, construct))
	assert.Equal(t, 1, built)
}

func TestManagerAndInstanceCreationAreIndependent(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	// Neither manager nor instance.
	got := f.sys.GetSingletonWith(f.quest, w, GetOptions{})
	assert.Nil(t, got)
	assert.Equal(t, 0, f.sys.Registry().Len())

	// Instance requested without a manager: nothing to store it in.
	got = f.sys.GetSingletonWith(f.quest, w, GetOptions{Create: true})
	assert.Nil(t, got)
	assert.Equal(t, 0, f.sys.Registry().Len())

	// Manager only.
	got = f.sys.GetSingletonWith(f.quest, w, GetOptions{CreateManager: true})
	assert.Nil(t, got)
	m := f.sys.Registry().Find(w)
	require.NotNil(t, m)
	assert.Zero(t, m.Len())

	// Existing manager, instance created without asking for a manager.
	got = f.sys.GetSingletonWith(f.quest, w, GetOptions{Create: true})
	require.NotNil(t, got)
	assert.Same(t, got, f.sys.GetSingleton(f.quest, w, false, nil))

	// The legacy call always creates the manager even when create is off.
	w2 := f.world("Map02")
	assert.Nil(t, f.sys.GetSingleton(f.quest, w2, false, nil))
	assert.NotNil(t, f.sys.Registry().Find(w2))
}

func TestGetSingletonRegistrationClass(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	obj := f.sys.GetSingleton(f.bpDeluxe, w, true, f.inventory)
	require.NotNil(t, obj)
	assert.Equal(t, f.bpDeluxe, obj.Class())

	// Stored under every class between the concrete type and the key.
	assert.Same(t, obj, f.sys.GetSingleton(f.inventory, w, false, nil))
	assert.Same(t, obj, f.sys.GetSingleton(f.bpInv, w, false, nil))
	assert.Same(t, obj, f.sys.GetSingleton(f.bpDeluxe, w, true, f.inventory))

	// The requested class has to descend from the key.
	assert.Nil(t, f.sys.GetSingleton(f.quest, w, true, f.inventory))
	assert.Equal(t, 1, f.sys.Reporter().Violations())
}

func TestGetSingletonReplacesDestroyedInstance(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	first := f.sys.GetSingleton(f.quest, w, true, nil)
	f.engine.MarkPendingKill(first)
	assert.Nil(t, f.sys.GetSingleton(f.quest, w, false, nil))

	second := f.sys.GetSingleton(f.quest, w, true, nil)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
}

func TestGetSingletonCreationFailure(t *testing.T) {
	f := newFixture(t, host.Options{})
	f.engine.CreateGameInstance("GameInstance")

	// Actors cannot live without a world.
	assert.Nil(t, f.sys.GetSingleton(f.weather, noWorld, true, nil))
	assert.GreaterOrEqual(t, f.sys.Reporter().Violations(), 1)
	m := f.sys.GetManager(nil, true)
	assert.Zero(t, m.Len(), "mapping left unregistered")
}

func TestGlobalManagerOwnership(t *testing.T) {
	t.Run("co-owned by game instance", func(t *testing.T) {
		f := newFixture(t, host.Options{})
		gi := f.engine.CreateGameInstance("GameInstance")

		m := f.sys.GetManager(nil, true)
		assert.Contains(t, gi.ReferencedObjects(), m.Object())
		assert.False(t, m.Object().HasFlags(host.FlagRooted))

		s := f.sys.GetSingleton(f.quest, noWorld, true, nil)
		assert.Same(t, &gi.Object, s.Outer())
		f.engine.CollectGarbage()
		assert.True(t, m.IsValid())
		assert.True(t, s.IsValid())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.sys.metrics.ManagersCreated.WithLabelValues("instance")))
	})

	t.Run("rooted without game instance", func(t *testing.T) {
		f := newFixture(t, host.Options{})

		m := f.sys.GetManager(nil, true)
		require.NotNil(t, m)
		assert.True(t, m.Object().HasFlags(host.FlagRooted))
		assert.Equal(t, 1, f.sys.Reporter().DegradedCount())

		// Transient singletons survive collection through the manager.
		s := f.sys.GetSingleton(f.quest, noWorld, true, nil)
		require.NotNil(t, s)
		assert.Same(t, f.engine.TransientPackage(), s.Outer())
		f.engine.CollectGarbage()
		assert.True(t, s.IsValid())
	})

	t.Run("lenient lookup does not report", func(t *testing.T) {
		f := newFixture(t, host.Options{})
		assert.Nil(t, f.sys.GetSingleton(f.quest, noWorld, false, nil))
		assert.Zero(t, f.sys.Reporter().DegradedCount())
	})

	t.Run("recreated when the instance goes away", func(t *testing.T) {
		f := newFixture(t, host.Options{})
		gi := f.engine.CreateGameInstance("GameInstance")
		m1 := f.sys.GetManager(nil, true)

		f.engine.DestroyGameInstance(gi)
		f.engine.CollectGarbage()
		assert.False(t, m1.IsValid())

		m2 := f.sys.GetManager(nil, true)
		require.NotNil(t, m2)
		assert.NotSame(t, m1, m2)
		assert.Equal(t, 1, f.sys.Registry().Len())
	})
}

func TestMetricsTrackRegistry(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")
	f.sys.GetSingleton(f.quest, w, true, nil)
	f.sys.GetSingleton(f.inventory, w, true, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.sys.metrics.RegistryEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.sys.metrics.Registrations))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.sys.metrics.InstancesCreated.WithLabelValues("object")))

	f.engine.DestroyWorldSilently(w)
	f.sys.GetManager(nil, false)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.sys.metrics.StalePruned))
}
