package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/dice"
)

// GlobalKey is the reserved key for scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no keyed VM is found.
const GlobalKey = "__global__"

// vm is one LState plus the lock that serializes every call into it.
type vm struct {
	mu sync.Mutex
	L  *lua.LState
	// call is set only while an effect routine runs.
	call *effectCall
}

// Manager owns one sandboxed LState per script set and dispatches hooks.
//
// Manager is safe for concurrent use. Calls into the same VM are serialized;
// different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
	limit  int
}

// NewManager creates a Manager whose calls run at most instLimit opcodes.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0 (0 = default).
// Postcondition: Returns a Manager with no VMs loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
		limit:  instLimit,
	}
}

// Load creates a sandboxed VM for key, registers the engine.* modules, then
// executes every *.lua file in scriptDir in lexicographic order. A previous VM
// under key is replaced only if loading succeeds.
//
// Precondition: key must be non-empty; scriptDir must be a readable directory.
// Postcondition: The VM is registered, or an error is returned and nothing changes.
func (m *Manager) Load(key, scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	v := &vm{L: NewSandboxedState()}
	m.registerModules(v)
	for _, path := range luaFiles {
		release := Bound(context.Background(), v.L, m.limit)
		err := v.L.DoFile(path)
		release()
		if err != nil {
			v.L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = v
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Info("scripts loaded", zap.String("key", key), zap.Int("files", len(luaFiles)))
	return nil
}

// LoadGlobal loads scriptDir into the global VM.
func (m *Manager) LoadGlobal(scriptDir string) error {
	return m.Load(GlobalKey, scriptDir)
}

// Close shuts every VM down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
		delete(m.vms, k)
	}
}

func (m *Manager) lookup(key string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vms[key]; ok {
		return v
	}
	return m.vms[GlobalKey]
}

// HasHook reports whether hook is a function in key's VM or the global VM.
func (m *Manager) HasHook(key, hook string) bool {
	v := m.lookup(key)
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.L.GetGlobal(hook).Type() == lua.LTFunction
}

// CallHook calls the named Lua global function in key's VM, falling back to the
// global VM. Returns (LNil, nil) if the hook or VM does not exist. Lua runtime
// errors, including an exhausted instruction budget, are logged at Warn and
// returned.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(key, hook string, args ...lua.LValue) (lua.LValue, error) {
	v := m.lookup(key)
	if v == nil {
		m.logger.Debug("scripting: no VM", zap.String("key", key), zap.String("hook", hook))
		return lua.LNil, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return m.callLocked(context.Background(), v, key, hook, func(*lua.LState) []lua.LValue { return args })
}

// callLocked runs hook with arguments built inside the VM lock.
//
// Precondition: v.mu is held.
func (m *Manager) callLocked(ctx context.Context, v *vm, key, hook string, build func(*lua.LState) []lua.LValue) (lua.LValue, error) {
	fn := v.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, nil
	}
	release := Bound(ctx, v.L, m.limit)
	defer release()
	if err := v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, build(v.L)...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("key", key),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: %s: %w", hook, err)
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Globals returns the names of global functions in key's VM that start with
// prefix, in sorted order.
func (m *Manager) Globals(key, prefix string) []string {
	m.mu.RLock()
	v := m.vms[key]
	m.mu.RUnlock()
	if v == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	v.L.G.Global.ForEach(func(k, val lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok || val.Type() != lua.LTFunction {
			return
		}
		if s := string(name); len(s) > len(prefix) && s[:len(prefix)] == prefix {
			out = append(out, s)
		}
	})
	sort.Strings(out)
	return out
}
