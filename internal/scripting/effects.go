package scripting

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// EffectPrefix marks a global Lua function as an effect routine.
const EffectPrefix = "effect_"

// effectCall is the state of one Lua effect routine in flight. The engine.effect
// functions only operate on entities listed in byID.
type effectCall struct {
	ec       *ability.ExecContext
	byID     map[string]*entity.Entity
	amount   float64
	affected []string
	seen     map[string]bool
}

func (c *effectCall) touch(id string, applied float64) {
	c.amount += applied
	if !c.seen[id] {
		c.seen[id] = true
		c.affected = append(c.affected, id)
	}
}

// RegisterEffects registers every effect_<name> function in the global VM as
// routine <name> in reg, replacing built-ins of the same name.
//
// Precondition: LoadGlobal must have succeeded.
// Postcondition: Returns the registered routine names in sorted order.
func (m *Manager) RegisterEffects(reg *ability.EffectRegistry) []string {
	var names []string
	for _, fn := range m.Globals(GlobalKey, EffectPrefix) {
		name := strings.TrimPrefix(fn, EffectPrefix)
		reg.Register(name, m.routine(GlobalKey, fn))
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		m.logger.Info("lua effect routines registered", zap.Strings("effects", names))
	}
	return names
}

// routine adapts the Lua function fn in key's VM into an ability.Routine. The
// VM is looked up on every call so a reload takes effect immediately.
func (m *Manager) routine(key, fn string) ability.Routine {
	return func(ec *ability.ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *ability.Template) (ability.Result, error) {
		v := m.lookup(key)
		if v == nil {
			return ability.Result{}, fmt.Errorf("scripting: no VM for %q", key)
		}
		call := &effectCall{
			ec:   ec,
			byID: make(map[string]*entity.Entity, len(targets)+1),
			seen: make(map[string]bool),
		}
		call.byID[caster.ID] = caster
		for _, t := range targets {
			call.byID[t.ID] = t
		}

		v.mu.Lock()
		defer v.mu.Unlock()
		v.call = call
		defer func() { v.call = nil }()

		ret, err := m.callLocked(ec.Context, v, key, fn, func(L *lua.LState) []lua.LValue {
			return []lua.LValue{
				casterTable(L, caster, ec),
				targetsTable(L, targets, ec),
				actionTable(L, tmpl),
			}
		})
		if err != nil {
			return ability.Result{}, err
		}
		return call.result(ret), nil
	}
}

// result converts the table returned by a Lua routine. Fields the script
// omits fall back to what engine.effect recorded.
func (c *effectCall) result(ret lua.LValue) ability.Result {
	res := ability.Result{Amount: c.amount, Affected: c.affected, Success: len(c.affected) > 0}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		if ret != lua.LNil {
			res.Success = lua.LVAsBool(ret)
		}
		return res
	}
	if v := tbl.RawGetString("success"); v != lua.LNil {
		res.Success = lua.LVAsBool(v)
	}
	if v, ok := tbl.RawGetString("amount").(lua.LNumber); ok {
		res.Amount = float64(v)
	}
	if v, ok := tbl.RawGetString("summary").(lua.LString); ok {
		res.Summary = string(v)
	}
	if v, ok := tbl.RawGetString("affected").(*lua.LTable); ok {
		var ids []string
		v.ForEach(func(_, id lua.LValue) {
			if s, ok := id.(lua.LString); ok {
				ids = append(ids, string(s))
			}
		})
		res.Affected = ids
	}
	return res
}

func casterTable(L *lua.LState, caster *entity.Entity, ec *ability.ExecContext) *lua.LTable {
	t := entityTable(L, caster, ec)
	L.SetField(t, "level", lua.LNumber(ec.CasterLevel))
	stats := L.NewTable()
	for k, v := range ec.CasterStats {
		L.SetField(stats, k, lua.LNumber(v))
	}
	L.SetField(t, "stats", stats)
	return t
}

func targetsTable(L *lua.LState, targets []*entity.Entity, ec *ability.ExecContext) *lua.LTable {
	t := L.NewTable()
	for _, e := range targets {
		t.Append(entityTable(L, e, ec))
	}
	return t
}

func entityTable(L *lua.LState, e *entity.Entity, ec *ability.ExecContext) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(e.ID))
	L.SetField(t, "name", lua.LString(e.Name))
	L.SetField(t, "kind", lua.LString(e.Kind))
	L.SetField(t, "team", lua.LString(e.Team))
	L.SetField(t, "relation", lua.LString(ec.Relation(e).String()))
	L.SetField(t, "health_fraction", lua.LNumber(ec.HealthFraction(e)))
	return t
}

func actionTable(L *lua.LState, tmpl *ability.Template) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(tmpl.ID))
	L.SetField(t, "name", lua.LString(tmpl.Name))
	L.SetField(t, "dice", lua.LString(tmpl.Dice))
	params := L.NewTable()
	for k, v := range tmpl.Params {
		L.SetField(params, k, lua.LString(v))
	}
	L.SetField(t, "params", params)
	return t
}

// effectModule exposes engine.effect.*, usable only inside an effect routine.
func (m *Manager) effectModule(L *lua.LState, v *vm) *lua.LTable {
	mod := L.NewTable()
	target := func(L *lua.LState) (*effectCall, *entity.Entity) {
		if v.call == nil {
			L.RaiseError("engine.effect: only available inside an effect routine")
			return nil, nil
		}
		id := L.CheckString(1)
		e, ok := v.call.byID[id]
		if !ok {
			L.RaiseError("engine.effect: %q is not a participant of this action", id)
			return nil, nil
		}
		return v.call, e
	}

	L.SetField(mod, "damage", L.NewFunction(func(L *lua.LState) int {
		call, e := target(L)
		applied, ok := call.ec.Damage(e, float64(L.CheckNumber(2)))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		call.touch(e.ID, applied)
		L.Push(lua.LNumber(applied))
		return 1
	}))
	L.SetField(mod, "restore", L.NewFunction(func(L *lua.LState) int {
		call, e := target(L)
		applied, ok := call.ec.Restore(e, L.CheckString(2), float64(L.CheckNumber(3)))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		call.touch(e.ID, applied)
		L.Push(lua.LNumber(applied))
		return 1
	}))
	L.SetField(mod, "apply_condition", L.NewFunction(func(L *lua.LState) int {
		call, e := target(L)
		if err := call.ec.ApplyCondition(e, L.CheckString(2), L.OptInt(3, 1)); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		call.touch(e.ID, 0)
		L.Push(lua.LTrue)
		return 1
	}))
	L.SetField(mod, "health_fraction", L.NewFunction(func(L *lua.LState) int {
		call, e := target(L)
		L.Push(lua.LNumber(call.ec.HealthFraction(e)))
		return 1
	}))
	L.SetField(mod, "relation", L.NewFunction(func(L *lua.LState) int {
		call, e := target(L)
		L.Push(lua.LString(call.ec.Relation(e).String()))
		return 1
	}))
	L.SetField(mod, "stat", L.NewFunction(func(L *lua.LState) int {
		call, e := target(L)
		L.Push(lua.LNumber(call.ec.TargetStat(e, L.CheckString(2), L.OptInt(3, 0))))
		return 1
	}))
	return mod
}
