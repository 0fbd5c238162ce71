package npc_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/npc"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func archetypes() *ruleset.ArchetypeRegistry {
	reg := ruleset.NewArchetypeRegistry()
	reg.Register(&ruleset.Archetype{
		ID:        "brute",
		Name:      "Brute",
		BaseStats: map[string]int{"strength": 12},
		Resources: []ruleset.ResourceGrant{
			{Definition: resource.Definition{ID: "health", Name: "Health", Max: 40}},
		},
		Unlocks: []ruleset.Unlock{
			{Action: "strike", Level: 1},
			{Action: "cleave", Level: 3},
		},
		SlotsByLevel: []ruleset.SlotStep{{Level: 1, Slots: 3}},
	})
	return reg
}

func ganger() *npc.Template {
	return &npc.Template{
		ID: "ganger", Name: "Ganger", Archetype: "brute", Level: 2,
		Team: "gang", AIDomain: "ganger_combat", Learn: []string{"taunt"},
	}
}

func newManager() (*npc.Manager, *entity.Manager) {
	dir := entity.NewManager()
	return npc.NewManager(dir, archetypes()), dir
}

func setHealth(t *testing.T, inst *npc.Instance, v float64) {
	t.Helper()
	s := inst.Entity.Sheet()
	s.Lock()
	defer s.Unlock()
	p, ok := s.Pool("health")
	require.True(t, ok)
	p.Current = v
}

func TestLoadTemplateFromBytes(t *testing.T) {
	tmpl, err := npc.LoadTemplateFromBytes([]byte(`
id: ganger
name: Ganger
description: A tough.
archetype: brute
level: 2
team: gang
ai_domain: ganger_combat
learn: [taunt]
respawn_delay: "5m"
`))
	require.NoError(t, err)
	assert.Equal(t, "brute", tmpl.Archetype)
	assert.Equal(t, "ganger_combat", tmpl.AIDomain)
	assert.Equal(t, []string{"taunt"}, tmpl.Learn)
	assert.Equal(t, 5*time.Minute, tmpl.Respawn())
}

func TestTemplate_Experience(t *testing.T) {
	tmpl := ganger()
	assert.Equal(t, 2*npc.DefaultXPPerLevel, tmpl.Experience())
	tmpl.XPReward = 90
	assert.Equal(t, 90, tmpl.Experience())
}

func TestManager_ExperienceFor(t *testing.T) {
	mgr, _ := newManager()
	tmpl := ganger()
	tmpl.XPReward = 40
	inst, err := mgr.Spawn(tmpl, "arena", now)
	require.NoError(t, err)

	assert.Equal(t, 40, mgr.ExperienceFor(inst.Entity))
	assert.Zero(t, mgr.ExperienceFor(entity.New("p1", "Player", entity.KindPlayer, "")))

	require.NoError(t, mgr.Remove(inst.ID()))
	assert.Zero(t, mgr.ExperienceFor(inst.Entity), "removed NPCs pay nothing")
}

func TestLoadTemplateFromBytes_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing archetype": "id: a\nname: A\nlevel: 1\n",
		"zero level":        "id: a\nname: A\narchetype: brute\nlevel: 0\n",
		"bad delay":         "id: a\nname: A\narchetype: brute\nlevel: 1\nrespawn_delay: soon\n",
		"unknown field":     "id: a\nname: A\narchetype: brute\nlevel: 1\nmax_hp: 10\n",
		"missing name":      "id: a\narchetype: brute\nlevel: 1\n",
		"negative xp":       "id: a\nname: A\narchetype: brute\nlevel: 1\nxp_reward: -5\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := npc.LoadTemplateFromBytes([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestProperty_Template_ValidRespawnDelay_ParsesWithoutError(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		value := rapid.IntRange(1, 3600).Draw(rt, "value")
		unit := rapid.SampledFrom([]string{"s", "m", "h"}).Draw(rt, "unit")
		data := fmt.Sprintf("id: g\nname: G\narchetype: brute\nlevel: 1\nrespawn_delay: \"%d%s\"\n", value, unit)
		tmpl, err := npc.LoadTemplateFromBytes([]byte(data))
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if tmpl.Respawn() <= 0 {
			rt.Fatalf("expected positive delay")
		}
	})
}

func TestLoadTemplates_DuplicateIDRejected(t *testing.T) {
	dir := t.TempDir()
	src := []byte("id: g\nname: G\narchetype: brute\nlevel: 1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), src, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), src, 0o644))
	_, err := npc.LoadTemplates(dir)
	assert.ErrorContains(t, err, "already defined")
}

func TestLoadSpawns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
arena:
  - template: ganger
    max: 2
    respawn_delay: 30s
`), 0o644))
	spawns, err := npc.LoadSpawns(path)
	require.NoError(t, err)
	assert.Equal(t, []npc.LocationSpawn{{TemplateID: "ganger", Max: 2, RespawnDelay: 30 * time.Second}}, spawns["arena"])

	require.NoError(t, os.WriteFile(path, []byte("arena:\n  - template: ganger\n    max: 0\n"), 0o644))
	_, err = npc.LoadSpawns(path)
	assert.Error(t, err)
}

func TestManager_Spawn_BuildsParticipatingEntity(t *testing.T) {
	mgr, dir := newManager()
	inst, err := mgr.Spawn(ganger(), "arena", now)
	require.NoError(t, err)

	assert.Equal(t, "ganger_combat", inst.AIDomain)
	e, ok := dir.Get(inst.ID())
	require.True(t, ok)
	assert.Equal(t, entity.KindNPC, e.Kind)
	assert.Equal(t, "gang", e.Team)
	loc, _ := dir.LocationOf(inst.ID())
	assert.Equal(t, "arena", loc)

	s := e.Sheet()
	require.NotNil(t, s)
	s.Lock()
	defer s.Unlock()
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, []string{"strike", "taunt"}, s.Unlocked())
	assert.Equal(t, 0, s.SlotOf("strike"))
	assert.Equal(t, 1, s.SlotOf("taunt"))
	assert.False(t, s.IsUnlocked("cleave"))
}

func TestManager_Spawn_UnknownArchetype(t *testing.T) {
	mgr, _ := newManager()
	tmpl := ganger()
	tmpl.Archetype = "wizard"
	_, err := mgr.Spawn(tmpl, "arena", now)
	assert.ErrorContains(t, err, "unknown archetype")
}

func TestManager_Remove_DropsFromDirectory(t *testing.T) {
	mgr, dir := newManager()
	inst, err := mgr.Spawn(ganger(), "arena", now)
	require.NoError(t, err)
	require.NoError(t, mgr.Remove(inst.ID()))
	_, ok := dir.Get(inst.ID())
	assert.False(t, ok)
	assert.Error(t, mgr.Remove(inst.ID()))
}

func TestInstance_HealthDescription(t *testing.T) {
	mgr, _ := newManager()
	inst, err := mgr.Spawn(ganger(), "arena", now)
	require.NoError(t, err)
	cases := []struct {
		hp   float64
		want string
	}{{40, "unharmed"}, {35, "barely scratched"}, {25, "lightly wounded"}, {17, "moderately wounded"}, {9, "heavily wounded"}, {1, "critically wounded"}, {0, "defeated"}}
	for _, tc := range cases {
		setHealth(t, inst, tc.hp)
		assert.Equal(t, tc.want, inst.HealthDescription(), "hp=%v", tc.hp)
	}
	assert.True(t, inst.Defeated())
}

func TestRespawnManager_PopulateLocation_FillsToCap(t *testing.T) {
	mgr, _ := newManager()
	rm := npc.NewRespawnManager(
		map[string][]npc.LocationSpawn{"arena": {{TemplateID: "ganger", Max: 2}}},
		map[string]*npc.Template{"ganger": ganger()},
	)
	assert.Empty(t, rm.PopulateLocation("arena", mgr, now))
	assert.Len(t, mgr.InstancesIn("arena"), 2)

	rm.PopulateLocation("arena", mgr, now)
	assert.Len(t, mgr.InstancesIn("arena"), 2, "repeat population respects the cap")
}

func TestRespawnManager_ReapAndRespawn(t *testing.T) {
	mgr, _ := newManager()
	tmpl := ganger()
	tmpl.RespawnDelay = "5m"
	rm := npc.NewRespawnManager(
		map[string][]npc.LocationSpawn{"arena": {{TemplateID: "ganger", Max: 1}}},
		map[string]*npc.Template{"ganger": tmpl},
	)
	rm.PopulateLocation("arena", mgr, now)
	inst := mgr.InstancesIn("arena")[0]

	assert.Empty(t, rm.Reap(now, mgr), "healthy NPCs stay")
	setHealth(t, inst, 0)
	assert.Equal(t, []string{inst.ID()}, rm.Reap(now, mgr))
	assert.Empty(t, mgr.InstancesIn("arena"))
	assert.Equal(t, 1, rm.Pending())

	assert.Empty(t, rm.Tick(now.Add(4*time.Minute), mgr))
	spawned := rm.Tick(now.Add(5*time.Minute), mgr)
	require.Len(t, spawned, 1)
	assert.NotEqual(t, inst.ID(), spawned[0].ID())
	assert.Equal(t, 0, rm.Pending())
}

func TestRespawnManager_LocationOverrideWins(t *testing.T) {
	tmpl := ganger()
	tmpl.RespawnDelay = "5m"
	rm := npc.NewRespawnManager(
		map[string][]npc.LocationSpawn{"arena": {{TemplateID: "ganger", Max: 1, RespawnDelay: time.Minute}}},
		map[string]*npc.Template{"ganger": tmpl},
	)
	assert.Equal(t, time.Minute, rm.ResolvedDelay("ganger", "arena"))
	assert.Equal(t, 5*time.Minute, rm.ResolvedDelay("ganger", "pit"))
	assert.Zero(t, rm.ResolvedDelay("unknown", "arena"))
}

func TestRespawnManager_ZeroDelayNeverQueued(t *testing.T) {
	rm := npc.NewRespawnManager(nil, nil)
	rm.Schedule("ganger", "arena", now, 0)
	assert.Equal(t, 0, rm.Pending())
}

func TestProperty_RespawnNeverExceedsCap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		max := rapid.IntRange(1, 4).Draw(rt, "max")
		scheduled := rapid.IntRange(0, 8).Draw(rt, "scheduled")
		mgr, _ := newManager()
		rm := npc.NewRespawnManager(
			map[string][]npc.LocationSpawn{"arena": {{TemplateID: "ganger", Max: max}}},
			map[string]*npc.Template{"ganger": ganger()},
		)
		for i := 0; i < scheduled; i++ {
			rm.Schedule("ganger", "arena", now, time.Second)
		}
		rm.Tick(now.Add(time.Second), mgr)
		if got := len(mgr.InstancesIn("arena")); got > max {
			rt.Fatalf("spawned %d instances with cap %d", got, max)
		}
	})
}
