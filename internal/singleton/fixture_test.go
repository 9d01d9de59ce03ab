package singleton

import (
	"testing"

	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/l1jgo/worldsingleton/internal/host"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fixture is a host with a small class hierarchy:
//
//	Inventory (native) <- BP_Inventory (dynamic) <- BP_InventoryDeluxe (dynamic)
//	Actor <- WeatherActor (native)
//	UserWidget <- HUD (native)
type fixture struct {
	engine  *host.Engine
	classes *class.Table
	sys     *System
	logs    *observer.ObservedLogs

	inventory *class.Class
	bpInv     *class.Class
	bpDeluxe  *class.Class
	quest     *class.Class
	weather   *class.Class
	hud       *class.Class
}

func newFixture(t *testing.T, opts host.Options) *fixture {
	t.Helper()
	tbl := class.NewTable()
	require.NoError(t, tbl.DefineAll([]class.Entry{
		{Name: "Inventory"},
		{Name: "BP_Inventory", Super: "Inventory", Kind: "dynamic"},
		{Name: "BP_InventoryDeluxe", Super: "BP_Inventory", Kind: "dynamic"},
		{Name: "QuestLog"},
		{Name: "WeatherActor", Super: class.NameActor},
		{Name: "HUD", Super: class.NameUserWidget},
	}))
	opts.Classes = tbl

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	opts.Log = log
	e := host.NewEngine(opts)

	var widgets WidgetBuilder
	if !opts.Headless {
		widgets = e
	}
	sys := NewSystem(Options{
		Host:     e,
		Resolver: host.NewResolver(e, log),
		Widgets:  widgets,
		Log:      log,
	})

	require.NoError(t, SetCreateMethod(CreateInInstance))
	t.Cleanup(func() { _ = SetCreateMethod(CreateInInstance) })

	return &fixture{
		engine:    e,
		classes:   tbl,
		sys:       sys,
		logs:      logs,
		inventory: tbl.Lookup("Inventory"),
		bpInv:     tbl.Lookup("BP_Inventory"),
		bpDeluxe:  tbl.Lookup("BP_InventoryDeluxe"),
		quest:     tbl.Lookup("QuestLog"),
		weather:   tbl.Lookup("WeatherActor"),
		hud:       tbl.Lookup("HUD"),
	}
}

func (f *fixture) world(name string) *host.World {
	gi := f.engine.CreateGameInstance(name + "GI")
	return f.engine.CreateWorld(host.WorldOptions{Name: name, Type: host.WorldGame, GameInstance: gi})
}

// noWorld is the global scope context.
var noWorld host.Context
