package scripting

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// ActorInfo is the read-only view of one entity handed to Lua preconditions.
type ActorInfo struct {
	ID        string
	Name      string
	Kind      string
	Team      string
	Level     int
	Health    float64
	MaxHealth float64
	// Relation is the deciding actor's standing toward this entity.
	Relation   string
	Conditions []string
}

// Situation is what a precondition hook sees: the deciding actor and everyone
// else sharing its location.
type Situation struct {
	Location string
	Self     ActorInfo
	Others   []ActorInfo
}

// CheckPrecondition calls hook(self, others, location) in key's VM, falling back
// to the global VM. A hook that does not exist passes.
//
// Postcondition: Returns true only when the hook exists and returns Lua true,
// or does not exist. A runtime error returns (false, err).
func (m *Manager) CheckPrecondition(key, hook string, s Situation) (bool, error) {
	v := m.lookup(key)
	if v == nil {
		return true, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L.GetGlobal(hook).Type() != lua.LTFunction {
		return true, nil
	}
	ret, err := m.callLocked(context.Background(), v, key, hook, func(L *lua.LState) []lua.LValue {
		others := L.NewTable()
		for _, o := range s.Others {
			others.Append(actorTable(L, o))
		}
		return []lua.LValue{actorTable(L, s.Self), others, lua.LString(s.Location)}
	})
	if err != nil {
		return false, err
	}
	return ret == lua.LTrue, nil
}

func actorTable(L *lua.LState, a ActorInfo) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(a.ID))
	L.SetField(t, "name", lua.LString(a.Name))
	L.SetField(t, "kind", lua.LString(a.Kind))
	L.SetField(t, "team", lua.LString(a.Team))
	L.SetField(t, "level", lua.LNumber(a.Level))
	L.SetField(t, "health", lua.LNumber(a.Health))
	L.SetField(t, "max_health", lua.LNumber(a.MaxHealth))
	L.SetField(t, "relation", lua.LString(a.Relation))
	conds := L.NewTable()
	for _, c := range a.Conditions {
		conds.Append(lua.LString(c))
	}
	L.SetField(t, "conditions", conds)
	return t
}
