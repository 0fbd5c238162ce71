package ability_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
)

func TestCatalog_EmptyUntilLoaded(t *testing.T) {
	c := ability.NewCatalog(ability.NewEffectRegistry(), zaptest.NewLogger(t))
	assert.Equal(t, uint64(0), c.Snapshot().Generation())
	_, err := c.Get("power-strike")
	assert.True(t, errors.Is(err, ability.ErrUnknownAction))
}

func TestCatalog_ReloadSwapsGeneration(t *testing.T) {
	c := ability.NewCatalog(ability.NewEffectRegistry(), zaptest.NewLogger(t))
	gen, err := c.Reload([]*ability.Template{powerStrike(), selfAction("focus", 0)}, testConditions())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	old := c.Snapshot()
	got, err := old.Get("power-strike")
	require.NoError(t, err)
	assert.Equal(t, "Power Strike", got.Name)
	ids := []string{}
	for _, tmpl := range old.All() {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []string{"focus", "power-strike"}, ids)

	gen, err = c.Reload([]*ability.Template{selfAction("focus", 0)}, testConditions())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)
	_, err = c.Get("power-strike")
	assert.True(t, errors.Is(err, ability.ErrUnknownAction))

	_, err = old.Get("power-strike")
	assert.NoError(t, err, "a captured snapshot is never mutated")
	assert.Equal(t, 2, old.Len())
}

func TestCatalog_UnknownEffectAbortsReload(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := ability.NewCatalog(ability.NewEffectRegistry(), zap.New(core))
	_, err := c.Reload([]*ability.Template{powerStrike()}, testConditions())
	require.NoError(t, err)

	broken := selfAction("meteor", 0)
	broken.Effect = "meteor_swarm"
	gen, err := c.Reload([]*ability.Template{selfAction("focus", 0), broken}, testConditions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ability.ErrUnknownEffect))
	assert.Equal(t, uint64(1), gen)

	_, err = c.Get("power-strike")
	assert.NoError(t, err, "previous generation keeps serving")
	_, err = c.Get("focus")
	assert.Error(t, err)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.NotEmpty(t, errs)
	assert.Equal(t, "action references unregistered effect", errs[0].Message)
	assert.Equal(t, "meteor_swarm", errs[0].ContextMap()["effect"])
}

func TestCatalog_RejectsInvalidContent(t *testing.T) {
	dup := selfAction("focus", 0)
	badSecondary := selfAction("rend", 0)
	badSecondary.SecondaryEffects = []string{"poisoned"}
	badTargeting := selfAction("blink", 0)
	badTargeting.Targeting = "everyone"

	cases := map[string][]*ability.Template{
		"duplicate id":      {selfAction("focus", 0), dup},
		"unknown secondary": {badSecondary},
		"unknown targeting": {badTargeting},
		"negative cost": {func() *ability.Template {
			tm := selfAction("x", 0)
			tm.Cost = ability.Costs{{Resource: "power", Amount: -1}}
			return tm
		}()},
		"bad dice expression": {func() *ability.Template {
			tm := selfAction("y", 0)
			tm.Dice = "lots"
			return tm
		}()},
		"area requires target": {func() *ability.Template {
			tm := selfAction("z", 0)
			tm.Targeting = ability.TargetArea
			tm.RequiresTarget = true
			return tm
		}()},
		"dice never positive": {func() *ability.Template {
			tm := selfAction("z", 0)
			tm.Dice = "1d4-4"
			return tm
		}()},
	}
	for name, templates := range cases {
		t.Run(name, func(t *testing.T) {
			c := ability.NewCatalog(ability.NewEffectRegistry(), zaptest.NewLogger(t))
			_, err := c.Reload(templates, testConditions())
			assert.Error(t, err)
			assert.Equal(t, 0, c.Snapshot().Len())
		})
	}
}

func TestCatalog_ConcurrentReadsDuringReload(t *testing.T) {
	c := ability.NewCatalog(ability.NewEffectRegistry(), zap.NewNop())
	v1 := selfAction("focus", 0)
	v1.Name = "v1"
	v2 := selfAction("focus", 0)
	v2.Name = "v2"
	_, err := c.Reload([]*ability.Template{v1}, testConditions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := c.Snapshot()
				tmpl, err := snap.Get("focus")
				if assert.NoError(t, err) {
					assert.Contains(t, []string{"v1", "v2"}, tmpl.Name)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		next := v1
		if i%2 == 0 {
			next = v2
		}
		_, err := c.Reload([]*ability.Template{next}, testConditions())
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, uint64(51), c.Snapshot().Generation())
}
