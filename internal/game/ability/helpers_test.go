package ability_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/character"
	"github.com/cory-johannsen/actioncore/internal/game/condition"
	"github.com/cory-johannsen/actioncore/internal/game/dice"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

func fighter() *ruleset.Archetype {
	return &ruleset.Archetype{
		ID:        "fighter",
		Name:      "Fighter",
		BaseStats: map[string]int{"strength": 16, "defense": 12},
		Resources: []ruleset.ResourceGrant{
			{Definition: resource.Definition{ID: "health", Name: "Health", Max: 100}},
			{Definition: resource.Definition{ID: "power", Name: "Power", Max: 100, RegenRate: 1}, Start: ptr(50)},
		},
		SlotsByLevel: []ruleset.SlotStep{{Level: 1, Slots: 4}},
	}
}

func brute() *ruleset.Archetype {
	return &ruleset.Archetype{
		ID:        "brute",
		Name:      "Brute",
		BaseStats: map[string]int{"strength": 12, "defense": 10},
		Resources: []ruleset.ResourceGrant{
			{Definition: resource.Definition{ID: "health", Name: "Health", Max: 100}},
		},
		SlotsByLevel: []ruleset.SlotStep{{Level: 1, Slots: 2}},
	}
}

func testConditions() *condition.Registry {
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "bleeding", Name: "Bleeding", Duration: 10 * time.Second})
	reg.Register(&condition.ConditionDef{
		ID: "empowered", Name: "Empowered", Duration: 30 * time.Second, MaxStacks: 3,
		StatModifiers: map[string]int{"strength": 2},
	})
	return reg
}

func powerStrike() *ability.Template {
	return &ability.Template{
		ID:             "power-strike",
		Name:           "Power Strike",
		Classification: ability.Classification{Activation: ability.Active, Category: "melee"},
		Cost:           ability.Costs{{Resource: "power", Amount: 25}},
		Cooldown:       3 * time.Second,
		Effect:         ability.EffectMeleeStrike,
		Targeting:      ability.TargetSingleHostile,
		RequiresTarget: true,
		MinLevel:       5,
		Scaling:        ability.Scaling{Stats: map[string]float64{"strength": 1.8}},
		Dice:           "1d4",
	}
}

func selfAction(id string, cooldown time.Duration) *ability.Template {
	return &ability.Template{
		ID:        id,
		Name:      id,
		Cooldown:  cooldown,
		Effect:    ability.EffectRestoreResource,
		Targeting: ability.TargetSelf,
		Scaling:   ability.Scaling{PerLevel: 1},
	}
}

type harness struct {
	t       *testing.T
	dir     *entity.Manager
	effects *ability.EffectRegistry
	conds   *condition.Registry
	catalog *ability.Catalog
	exec    *ability.Executor

	mu   sync.Mutex
	sent []ability.Notification
}

func newHarness(t *testing.T, templates ...*ability.Template) *harness {
	return newHarnessWith(t, zaptest.NewLogger(t), 7, templates...)
}

func newHarnessWith(t *testing.T, logger *zap.Logger, seed uint64, templates ...*ability.Template) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		dir:     entity.NewManager(),
		effects: ability.NewEffectRegistry(),
		conds:   testConditions(),
	}
	h.catalog = ability.NewCatalog(h.effects, logger)
	_, err := h.catalog.Reload(templates, h.conds)
	require.NoError(t, err)
	roller := dice.NewLoggedRoller(dice.NewSeededSource(seed), logger)
	h.exec = ability.NewExecutor(h.catalog, h.effects, h.dir, roller, logger,
		ability.WithClock(func() time.Time { return t0 }),
		ability.WithPublisher(ability.PublisherFunc(func(n ability.Notification) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent = append(h.sent, n)
		})),
	)
	return h
}

func (h *harness) spawn(id, name string, kind entity.Kind, team string, arch *ruleset.Archetype, level int, unlocked ...string) *entity.Entity {
	h.t.Helper()
	e := entity.New(id, name, kind, team)
	if arch != nil {
		learned := make(map[string]int, len(unlocked))
		for _, a := range unlocked {
			learned[a] = 1
		}
		sheet, err := character.Restore(arch, character.SheetSnapshot{
			ArchetypeID: arch.ID,
			Level:       level,
			Unlocked:    learned,
		}, t0)
		require.NoError(h.t, err)
		e.AttachSheet(sheet)
	}
	require.NoError(h.t, h.dir.Add(e, "arena"))
	return e
}

func (h *harness) hero(level int, unlocked ...string) *entity.Entity {
	return h.spawn("hero", "Hero", entity.KindPlayer, "heroes", fighter(), level, unlocked...)
}

func (h *harness) goblin() *entity.Entity {
	return h.spawn("goblin", "Goblin", entity.KindNPC, "monsters", brute(), 1)
}

func (h *harness) run(actor, action, hint string, when time.Time) ability.Outcome {
	return h.exec.Execute(context.Background(), ability.Request{
		ActorID: actor, ActionID: action, TargetHint: hint, At: when,
	})
}

func (h *harness) published() []ability.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ability.Notification(nil), h.sent...)
}

func current(t *testing.T, e *entity.Entity, res string) float64 {
	t.Helper()
	s := e.Sheet()
	require.NotNil(t, s)
	s.Lock()
	defer s.Unlock()
	p, ok := s.Pool(res)
	require.True(t, ok, "pool %s", res)
	return p.Current
}

func setPool(t *testing.T, e *entity.Entity, res string, v float64) {
	t.Helper()
	s := e.Sheet()
	s.Lock()
	defer s.Unlock()
	p, ok := s.Pool(res)
	require.True(t, ok)
	p.Current = v
}

func kinds(ns []ability.Notification) []ability.NotificationKind {
	out := make([]ability.NotificationKind, len(ns))
	for i, n := range ns {
		out[i] = n.Kind
	}
	return out
}
