package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine.* tables into v's LState.
//
// Precondition: v.L must be from NewSandboxedState.
// Postcondition: engine.log, engine.dice, and engine.effect are defined.
func (m *Manager) registerModules(v *vm) {
	L := v.L
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "effect", m.effectModule(L, v))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	level := func(fn func(string, ...zap.Field)) lua.LGFunction {
		return func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}
	}
	L.SetField(mod, "debug", L.NewFunction(level(m.logger.Debug)))
	L.SetField(mod, "info", L.NewFunction(level(m.logger.Info)))
	L.SetField(mod, "warn", L.NewFunction(level(m.logger.Warn)))
	L.SetField(mod, "error", L.NewFunction(level(m.logger.Error)))
	return mod
}

// diceModule exposes engine.dice.roll(expr) -> {total, dice, modifier}.
func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		res, err := m.roller.RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %s", err.Error())
			return 0
		}
		out := L.NewTable()
		L.SetField(out, "total", lua.LNumber(res.Total()))
		L.SetField(out, "modifier", lua.LNumber(res.Modifier))
		dice := L.NewTable()
		for _, d := range res.Dice {
			dice.Append(lua.LNumber(d))
		}
		L.SetField(out, "dice", dice)
		L.Push(out)
		return 1
	}))
	return mod
}
