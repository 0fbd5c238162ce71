package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/actioncore/internal/game/ai"
)

func TestRegistry_RegisterAndPlannerFor(t *testing.T) {
	reg := ai.NewRegistry()
	require.NoError(t, reg.Register(gangerDomain(), &stubCaller{}, "brute"))

	planner, ok := reg.PlannerFor("ganger_combat")
	require.True(t, ok)
	assert.Equal(t, "ganger_combat", planner.Domain().ID)

	assert.Error(t, reg.Register(gangerDomain(), &stubCaller{}, "brute"), "collision")
	_, ok = reg.PlannerFor("missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterAllDefaultsToNoScripts(t *testing.T) {
	reg := ai.NewRegistry()
	other := gangerDomain()
	other.ID = "ambusher"
	require.NoError(t, reg.RegisterAll([]*ai.Domain{gangerDomain(), other}, nil))
	assert.Equal(t, []string{"ambusher", "ganger_combat"}, reg.IDs())

	p, ok := reg.PlannerFor("ganger_combat")
	require.True(t, ok)
	assert.Equal(t, "ganger_combat", p.Domain().ID)
}

func TestRegistry_RegisterAllStopsOnCollision(t *testing.T) {
	reg := ai.NewRegistry()
	err := reg.RegisterAll([]*ai.Domain{gangerDomain(), gangerDomain()}, &stubCaller{})
	assert.ErrorContains(t, err, `"ganger_combat" already registered`)
	assert.Equal(t, []string{"ganger_combat"}, reg.IDs())
}

type hookedCaller struct {
	stubCaller
	defined map[string]bool
}

func (h *hookedCaller) HasHook(_, hook string) bool { return h.defined[hook] }

func TestRegistry_RegisterAllRejectsUndefinedHook(t *testing.T) {
	reg := ai.NewRegistry()
	caller := &hookedCaller{defined: map[string]bool{"has_enemy": true, "enemy_below_half": true}}
	err := reg.RegisterAll([]*ai.Domain{gangerDomain()}, caller)
	assert.ErrorContains(t, err, `precondition hook "self_wounded" is not defined`)
	assert.Empty(t, reg.IDs())

	caller.defined["self_wounded"] = true
	require.NoError(t, reg.RegisterAll([]*ai.Domain{gangerDomain()}, caller))
	assert.Equal(t, []string{"ganger_combat"}, reg.IDs())
}
