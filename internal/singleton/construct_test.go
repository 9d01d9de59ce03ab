package singleton

import (
	"testing"

	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletonUsesConstructionHook(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	calls := 0
	f.sys.Constructors().Register(f.inventory, func(ctx host.Context, sub *class.Class) *host.Object {
		calls++
		assert.Nil(t, sub)
		obj := f.engine.NewObject(&host.ContextWorld(ctx).Object, f.inventory)
		obj.Value = "seeded"
		return obj
	})

	assert.Nil(t, f.sys.Singleton(f.inventory, w, false))
	a := f.sys.Singleton(f.inventory, w, true)
	require.NotNil(t, a)
	assert.Equal(t, "seeded", a.Value)
	assert.Same(t, a, f.sys.Singleton(f.inventory, w, true))
	assert.Same(t, a, f.sys.GetSingleton(f.inventory, w, false, nil))
	assert.Equal(t, 1, calls)
}

func TestSingletonWithoutHookUsesFactory(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	obj := f.sys.Singleton(f.quest, w, true)
	require.NotNil(t, obj)
	assert.Same(t, &w.Object, obj.Outer())
	assert.Nil(t, f.sys.Constructors().Lookup(f.quest))
}

func TestCreateInstanceChecksSubclass(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	assert.Nil(t, f.sys.CreateInstance(w, f.inventory, f.quest))
	assert.Nil(t, f.sys.CreateInstance(w, nil, nil))
	assert.Equal(t, 2, f.sys.Reporter().Violations())

	obj := f.sys.CreateInstance(w, f.inventory, f.bpDeluxe)
	require.NotNil(t, obj)
	assert.Equal(t, f.bpDeluxe, obj.Class())

	var got *class.Class
	f.sys.Constructors().Register(f.inventory, func(ctx host.Context, sub *class.Class) *host.Object {
		got = sub
		return f.engine.NewObject(nil, sub)
	})
	obj = f.sys.CreateInstance(w, f.inventory, f.bpInv)
	require.NotNil(t, obj)
	assert.Equal(t, f.bpInv, got)
}

func TestTryGetSingleton(t *testing.T) {
	f := newFixture(t, host.Options{})
	w := f.world("Map01")

	assert.Nil(t, f.sys.TryGetSingleton(f.quest, w, func() *host.Object { return nil }))
	assert.Equal(t, 1, f.sys.Reporter().Violations())

	built := f.engine.NewObject(&w.Object, f.bpDeluxe)
	got := f.sys.TryGetSingleton(f.bpInv, w, func() *host.Object { return built })
	assert.Same(t, built, got)

	m := f.sys.GetManager(w, false)
	_, ok := m.Lookup(f.inventory)
	assert.False(t, ok, "registration stops at the requested class")
	assert.Same(t, built, f.sys.TryGetSingleton(f.bpInv, w, func() *host.Object {
		t.Fatal("construct called on a hit")
		return nil
	}))
}
