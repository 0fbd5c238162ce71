package gameserver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/character"
	"github.com/cory-johannsen/actioncore/internal/game/command"
	"github.com/cory-johannsen/actioncore/internal/game/condition"
	"github.com/cory-johannsen/actioncore/internal/game/dice"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
	"github.com/cory-johannsen/actioncore/internal/game/session"
	"github.com/cory-johannsen/actioncore/internal/gameserver"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func fighter() *ruleset.Archetype {
	return &ruleset.Archetype{
		ID:        "fighter",
		Name:      "Fighter",
		BaseStats: map[string]int{"strength": 14, "defense": 10},
		Resources: []ruleset.ResourceGrant{
			{Definition: resource.Definition{ID: "health", Name: "Health", Max: 100}},
			{Definition: resource.Definition{ID: "stamina", Name: "Stamina", Max: 30}, Start: ptr(30)},
		},
		Unlocks: []ruleset.Unlock{
			{Action: "mend", Level: 1},
			{Action: "strike", Level: 1},
		},
		SlotsByLevel: []ruleset.SlotStep{{Level: 1, Slots: 2}},
		AIPriorities: []string{"strike"},
	}
}

func templates() []*ability.Template {
	return []*ability.Template{
		{
			ID: "strike", Name: "Strike", Effect: ability.EffectMeleeStrike,
			Targeting: ability.TargetSingleHostile, RequiresTarget: true,
			Cost: ability.Costs{{Resource: "stamina", Amount: 10}}, Cooldown: 2 * time.Second,
			Dice: "1d4", Params: map[string]string{"auto_hit": "true"},
		},
		{
			ID: "mend", Name: "Mend", Effect: ability.EffectRestoreResource,
			Targeting: ability.TargetSelf, Cooldown: 10 * time.Second,
			Scaling: ability.Scaling{PerLevel: 5},
		},
	}
}

// memStore is an in-memory SheetStore.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]character.SheetSnapshot
}

func newMemStore() *memStore { return &memStore{snaps: map[string]character.SheetSnapshot{}} }

func (m *memStore) Load(_ context.Context, id string) (character.SheetSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	return s, ok, nil
}

func (m *memStore) Save(_ context.Context, id string, snap character.SheetSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[id] = snap
	return nil
}

func (m *memStore) get(id string) (character.SheetSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	return s, ok
}

type world struct {
	t          *testing.T
	archetypes *ruleset.ArchetypeRegistry
	dir        *entity.Manager
	sessions   *session.Manager
	catalog    *ability.Catalog
	exec       *ability.Executor
	handler    *gameserver.AbilityHandler
	store      *memStore
}

func newWorld(t *testing.T) *world {
	t.Helper()
	logger := zaptest.NewLogger(t)
	w := &world{
		t:          t,
		archetypes: ruleset.NewArchetypeRegistry(),
		dir:        entity.NewManager(),
		store:      newMemStore(),
	}
	w.archetypes.Register(fighter())
	w.sessions = session.NewManager(w.dir, 16)

	effects := ability.NewEffectRegistry()
	w.catalog = ability.NewCatalog(effects, logger)
	_, err := w.catalog.Reload(templates(), condition.NewRegistry())
	require.NoError(t, err)

	clock := func() time.Time { return t0 }
	roller := dice.NewLoggedRoller(dice.NewSeededSource(3), logger)
	w.exec = ability.NewExecutor(w.catalog, effects, w.dir, roller, logger,
		ability.WithClock(clock),
		ability.WithPublisher(gameserver.NewBridgePublisher(w.sessions, logger)),
	)
	w.handler = gameserver.NewAbilityHandler(w.exec, w.dir, command.DefaultRegistry(), logger).WithClock(clock)
	return w
}

// join connects a fighter player with every unlocked action equipped.
func (w *world) join(id string) *session.PlayerSession {
	w.t.Helper()
	sheet, err := character.NewSheet(fighter(), t0)
	require.NoError(w.t, err)
	for i, a := range sheet.Unlocked() {
		require.NoError(w.t, sheet.Equip(i, a))
	}
	ent := entity.New(id, "Hero "+id, entity.KindPlayer, "heroes")
	ent.AttachSheet(sheet)
	sess, err := w.sessions.Join(id, ent, "arena", t0)
	require.NoError(w.t, err)
	return sess
}

func (w *world) goblin(id string) *entity.Entity {
	w.t.Helper()
	sheet, err := character.NewSheet(fighter(), t0)
	require.NoError(w.t, err)
	e := entity.New(id, "Goblin", entity.KindNPC, "goblins")
	e.AttachSheet(sheet)
	require.NoError(w.t, w.dir.Add(e, "arena"))
	return e
}

func health(t *testing.T, e *entity.Entity) float64 {
	t.Helper()
	s := e.Sheet()
	s.Lock()
	defer s.Unlock()
	p, ok := s.Pool("health")
	require.True(t, ok)
	return p.Current
}

// drain decodes every event currently buffered on b.
func drain(t *testing.T, b *session.Bridge) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data, ok := <-b.Events():
			if !ok {
				return out
			}
			evt, err := gameserver.DecodeEvent(data)
			require.NoError(t, err)
			out = append(out, evt.AsMap())
		default:
			return out
		}
	}
}

func eventKinds(evts []map[string]any) []string {
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i], _ = e["kind"].(string)
	}
	return out
}

func snapWithStamina(v float64) character.SheetSnapshot {
	return character.SheetSnapshot{
		ArchetypeID: "fighter",
		Level:       1,
		Unlocked:    map[string]int{"strike": 1, "mend": 1},
		Loadout:     []string{"strike", ""},
		Pools:       map[string]float64{"stamina": v},
	}
}
