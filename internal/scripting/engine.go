package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/l1jgo/worldsingleton/internal/class"
	coresys "github.com/l1jgo/worldsingleton/internal/core/system"
	"github.com/l1jgo/worldsingleton/internal/host"
	"github.com/l1jgo/worldsingleton/internal/singleton"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const objectTypeName = "Object"

// Engine wraps a single gopher-lua VM holding the game scripts. Scripts
// define dynamic classes and reach per-world singletons through the
// bindings installed here. Single-goroutine access only (game thread).
type Engine struct {
	vm      *lua.LState
	host    *host.Engine
	classes *class.Table
	sys     *singleton.System
	log     *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under scriptsDir:
// core/ first, then the remaining subdirectories in name order, then the
// top level.
func NewEngine(scriptsDir string, h *host.Engine, sys *singleton.System, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, host: h, classes: h.Classes(), sys: sys, log: log}
	e.registerBindings()

	dirs, err := scriptDirs(scriptsDir)
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	for _, dir := range dirs {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", filepath.Base(dir), err)
		}
	}
	return e, nil
}

// scriptDirs orders the directories to load.
func scriptDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	dirs := []string{filepath.Join(root, "core")}
	var rest []string
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != "core" {
			rest = append(rest, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(rest)
	dirs = append(dirs, rest...)
	return append(dirs, root), nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// ReloadFile runs path again. Definitions it repeats unchanged are kept.
func (e *Engine) ReloadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	e.log.Info("reloaded lua script", zap.String("file", path))
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error { return e.vm.DoString(src) }

// Close releases the VM.
func (e *Engine) Close() { e.vm.Close() }

// CallHook calls the global Lua function name with args if it exists.
// Missing hooks are not an error.
func (e *Engine) CallHook(name string, args ...lua.LValue) error {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
		return err
	}
	return nil
}

// WorldInitialized runs the on_world_initialized hook for w.
func (e *Engine) WorldInitialized(w *host.World) {
	if w == nil {
		return
	}
	_ = e.CallHook("on_world_initialized", lua.LString(w.Name()))
}

// Global returns a global variable, for inspection.
func (e *Engine) Global(name string) lua.LValue { return e.vm.GetGlobal(name) }

func (e *Engine) registerBindings() {
	mt := e.vm.NewTypeMetatable(objectTypeName)
	e.vm.SetField(mt, "__tostring", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(host.NameOf(checkObject(L, 1), "None")))
		return 1
	}))
	e.vm.SetField(mt, "__eq", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkObject(L, 1) == checkObject(L, 2)))
		return 1
	}))

	for name, fn := range map[string]lua.LGFunction{
		"define_class":          e.luaDefineClass,
		"new_object":            e.luaNewObject,
		"get_singleton":         e.luaGetSingleton,
		"register_as_singleton": e.luaRegisterAsSingleton,
		"object_name":           e.luaObjectName,
		"object_class":          e.luaObjectClass,
		"object_valid":          e.luaObjectValid,
		"log_info":              e.luaLogInfo,
	} {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

func (e *Engine) pushObject(L *lua.LState, obj *host.Object) {
	if obj == nil {
		L.Push(lua.LNil)
		return
	}
	ud := L.NewUserData()
	ud.Value = obj
	L.SetMetatable(ud, L.GetTypeMetatable(objectTypeName))
	L.Push(ud)
}

func checkObject(L *lua.LState, n int) *host.Object {
	ud := L.CheckUserData(n)
	obj, ok := ud.Value.(*host.Object)
	if !ok {
		L.ArgError(n, "object expected")
		return nil
	}
	return obj
}

func (e *Engine) checkClass(L *lua.LState, n int) *class.Class {
	name := L.CheckString(n)
	cls := e.classes.Lookup(name)
	if cls == nil {
		L.ArgError(n, "unknown class "+name)
	}
	return cls
}

// optWorld resolves an optional world-name argument. Absent or nil means
// the global scope.
func (e *Engine) optWorld(L *lua.LState, n int) host.Context {
	if L.Get(n) == lua.LNil {
		return nil
	}
	name := L.CheckString(n)
	for _, w := range e.host.WorldContexts() {
		if w.Name() == name {
			return w
		}
	}
	L.ArgError(n, "unknown world "+name)
	return nil
}

// define_class(name, super, path?) -> name
func (e *Engine) luaDefineClass(L *lua.LState) int {
	name := L.CheckString(1)
	super := L.CheckString(2)
	path := L.OptString(3, "")

	if prev := e.classes.Lookup(name); prev != nil {
		if prev.Kind() == class.KindDynamic && prev.Super() != nil && prev.Super() == e.classes.Lookup(super) &&
			(path == "" || e.classes.ByPath(path) == prev) {
			L.Push(lua.LString(name))
			return 1
		}
	}
	if _, err := e.classes.Define(name, super, class.KindDynamic, path); err != nil {
		L.RaiseError("define_class: %v", err)
		return 0
	}
	e.log.Debug("script class defined", zap.String("class", name), zap.String("super", super))
	L.Push(lua.LString(name))
	return 1
}

// new_object(class, world?) -> object
func (e *Engine) luaNewObject(L *lua.LState) int {
	cls := e.checkClass(L, 1)
	var outer *host.Object
	if w := host.ContextWorld(e.optWorld(L, 2)); w != nil {
		outer = &w.Object
	}
	var obj *host.Object
	if e.classes.IsActorClass(cls) && outer != nil {
		obj = e.host.SpawnActor(outer.World(), cls)
	} else {
		obj = e.host.NewObject(outer, cls)
	}
	e.pushObject(L, obj)
	return 1
}

// get_singleton(class, world?, create?) -> object or nil
func (e *Engine) luaGetSingleton(L *lua.LState) int {
	cls := e.checkClass(L, 1)
	ctx := e.optWorld(L, 2)
	create := L.OptBool(3, true)
	e.pushObject(L, e.sys.Singleton(cls, ctx, create))
	return 1
}

// register_as_singleton(obj, world?, replace?) -> displaced object or nil
func (e *Engine) luaRegisterAsSingleton(L *lua.LState) int {
	obj := checkObject(L, 1)
	ctx := e.optWorld(L, 2)
	replace := L.OptBool(3, true)
	e.pushObject(L, e.sys.RegisterAsSingleton(obj, ctx, replace, nil))
	return 1
}

func (e *Engine) luaObjectName(L *lua.LState) int {
	L.Push(lua.LString(host.NameOf(checkObject(L, 1), "None")))
	return 1
}

func (e *Engine) luaObjectClass(L *lua.LState) int {
	obj := checkObject(L, 1)
	if obj == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(obj.Class().Name()))
	return 1
}

func (e *Engine) luaObjectValid(L *lua.LState) int {
	L.Push(lua.LBool(checkObject(L, 1).IsValid()))
	return 1
}

func (e *Engine) luaLogInfo(L *lua.LState) int {
	e.log.Info(L.CheckString(1), zap.String("source", "lua"))
	return 0
}

// TickSystem runs the on_tick hook with the frame time in milliseconds.
// Phase Update.
type TickSystem struct {
	engine *Engine
}

func NewTickSystem(e *Engine) *TickSystem { return &TickSystem{engine: e} }

func (s *TickSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TickSystem) Update(dt time.Duration) {
	_ = s.engine.CallHook("on_tick", lua.LNumber(dt.Milliseconds()))
}
