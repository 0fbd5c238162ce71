package ability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/dice"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

func veteran() *ruleset.Archetype {
	arch := fighter()
	arch.ExperiencePerLevel = 100
	arch.Unlocks = []ruleset.Unlock{{Action: "jab", Level: 1}, {Action: "second-wind", Level: 2}}
	arch.SlotsByLevel = []ruleset.SlotStep{{Level: 1, Slots: 1}, {Level: 2, Slots: 2}}
	return arch
}

func jab() *ability.Template {
	return &ability.Template{
		ID: "jab", Name: "Jab", Effect: ability.EffectMeleeStrike,
		Targeting: ability.TargetSingleHostile, RequiresTarget: true,
		Dice: "1d4", Params: map[string]string{"auto_hit": "true"},
	}
}

func secondWind() *ability.Template {
	tmpl := selfAction("second-wind", 0)
	tmpl.MinLevel = 2
	return tmpl
}

func TestExecute_KillAwardsExperienceAndLevels(t *testing.T) {
	h := newHarness(t, jab(), secondWind())
	var sent []ability.Notification
	exec := ability.NewExecutor(h.catalog, h.effects, h.dir,
		dice.NewLoggedRoller(dice.NewSeededSource(3), zap.NewNop()), zaptest.NewLogger(t),
		ability.WithClock(func() time.Time { return t0 }),
		ability.WithPublisher(ability.PublisherFunc(func(n ability.Notification) { sent = append(sent, n) })),
		ability.WithRewards(func(victim *entity.Entity) int {
			if victim.Kind == entity.KindNPC {
				return 100
			}
			return 0
		}),
	)
	hero := h.spawn("hero", "Hero", entity.KindPlayer, "heroes", veteran(), 1, "jab")
	goblin := h.goblin()
	setPool(t, goblin, "health", 1)

	perform := func(action, hint string, when time.Time) ability.Outcome {
		return exec.Execute(context.Background(), ability.Request{ActorID: "hero", ActionID: action, TargetHint: hint, At: when})
	}

	early := perform("second-wind", "", t0)
	require.NotNil(t, early.Failure)
	assert.Equal(t, ability.KindNotLearned, early.Failure.Kind)

	kill := perform("jab", "goblin", at(1))
	require.True(t, kill.Performed(), "failure: %v", kill.Failure)
	assert.Equal(t, 0.0, current(t, goblin, "health"))

	got := kinds(kill.Notifications)
	require.Len(t, got, 4)
	assert.Equal(t, []ability.NotificationKind{
		ability.ActionPerformed, ability.ResourceChanged, ability.EntityDefeated, ability.LevelGained,
	}, got)
	defeated, gained := kill.Notifications[2], kill.Notifications[3]
	assert.Equal(t, "goblin", defeated.EntityID)
	assert.Equal(t, []string{"hero"}, defeated.Targets)
	assert.Equal(t, 100, defeated.Experience)
	assert.Equal(t, "hero", gained.EntityID)
	assert.Equal(t, 2, gained.Level)
	assert.Equal(t, []string{"second-wind"}, gained.Learned)
	assert.Equal(t, 1, gained.NewSlots)
	assert.Equal(t, kill.Notifications, sent[len(sent)-4:])

	sheet := hero.Sheet()
	sheet.Lock()
	assert.Equal(t, 2, sheet.Level)
	assert.Equal(t, 0, sheet.Experience)
	assert.True(t, sheet.IsUnlocked("second-wind"))
	sheet.Unlock()

	assert.True(t, perform("second-wind", "", at(2)).Performed())

	again := perform("jab", "goblin", at(3))
	require.True(t, again.Performed())
	assert.NotContains(t, kinds(again.Notifications), ability.EntityDefeated, "a defeated target is not defeated twice")
}

func TestExecute_KillWithoutRewardsOnlyReportsDefeat(t *testing.T) {
	h := newHarness(t, jab())
	hero := h.spawn("hero", "Hero", entity.KindPlayer, "heroes", veteran(), 1, "jab")
	goblin := h.goblin()
	setPool(t, goblin, "health", 1)

	out := h.run("hero", "jab", "goblin", t0)
	require.True(t, out.Performed())
	assert.Contains(t, kinds(out.Notifications), ability.EntityDefeated)
	assert.NotContains(t, kinds(out.Notifications), ability.LevelGained)

	sheet := hero.Sheet()
	sheet.Lock()
	defer sheet.Unlock()
	assert.Equal(t, 1, sheet.Level)
	assert.Equal(t, 0, sheet.Experience)
}
