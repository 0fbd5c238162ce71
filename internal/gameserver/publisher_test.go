package gameserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/session"
	"github.com/cory-johannsen/actioncore/internal/gameserver"
)

func TestRecipients(t *testing.T) {
	performed := ability.Notification{Kind: ability.ActionPerformed, EntityID: "a", Targets: []string{"b", "a", "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, gameserver.Recipients(performed))

	changed := ability.Notification{Kind: ability.ResourceChanged, EntityID: "b", Targets: []string{"x"}}
	assert.Equal(t, []string{"b"}, gameserver.Recipients(changed))

	defeated := ability.Notification{Kind: ability.EntityDefeated, EntityID: "goblin", Targets: []string{"hero"}}
	assert.Equal(t, []string{"goblin", "hero"}, gameserver.Recipients(defeated))
}

func TestNotificationStruct_PerKind(t *testing.T) {
	performed := gameserver.NotificationStruct(ability.Notification{
		Kind: ability.ActionPerformed, AttemptID: "att", EntityID: "hero", ActionID: "strike", At: t0,
		Targets: []string{"goblin"}, Amount: 7, Summary: "hit", Success: true,
	}).AsMap()
	assert.Equal(t, "action_performed", performed["kind"])
	assert.Equal(t, "att", performed["attempt_id"])
	assert.Equal(t, []any{"goblin"}, performed["targets"])
	assert.Equal(t, 7.0, performed["amount"])
	assert.Equal(t, true, performed["success"])
	assert.Equal(t, "2026-03-01T09:00:00Z", performed["at"])

	changed := gameserver.NotificationStruct(ability.Notification{
		Kind: ability.ResourceChanged, EntityID: "hero", Resource: "stamina", Current: 20, Max: 30,
	}).AsMap()
	assert.Equal(t, "stamina", changed["resource"])
	assert.Equal(t, 20.0, changed["current"])
	assert.NotContains(t, changed, "attempt_id")
	assert.NotContains(t, changed, "targets")

	delay := gameserver.NotificationStruct(ability.Notification{
		Kind: ability.SharedDelayStarted, EntityID: "hero", Category: "spell", Duration: 1500 * time.Millisecond,
	}).AsMap()
	assert.Equal(t, "spell", delay["category"])
	assert.Equal(t, 1.5, delay["duration_seconds"])

	failed := gameserver.NotificationStruct(ability.Notification{
		Kind: ability.ActionFailed, EntityID: "hero",
		Failure: &ability.Failure{Kind: ability.KindOnCooldown, Message: "strike is cooling down", Remaining: 2 * time.Second},
	}).AsMap()
	f := failed["failure"].(map[string]any)
	assert.Equal(t, "on_cooldown", f["kind"])
	assert.Equal(t, "strike is cooling down", f["message"])
	assert.Equal(t, "2.000", f["metadata"].(map[string]any)["remaining_seconds"])

	defeated := gameserver.NotificationStruct(ability.Notification{
		Kind: ability.EntityDefeated, EntityID: "goblin", ActionID: "strike", Targets: []string{"hero"}, Experience: 50,
	}).AsMap()
	assert.Equal(t, []any{"hero"}, defeated["targets"])
	assert.Equal(t, 50.0, defeated["experience"])

	gained := gameserver.NotificationStruct(ability.Notification{
		Kind: ability.LevelGained, EntityID: "hero", Level: 2, Learned: []string{"cleave"}, NewSlots: 1,
	}).AsMap()
	assert.Equal(t, 2.0, gained["level"])
	assert.Equal(t, []any{"cleave"}, gained["learned"])
	assert.Equal(t, 1.0, gained["new_slots"])
	assert.NotContains(t, gained, "targets")
}

func TestBridgePublisher_DeliversToPlayersOnly(t *testing.T) {
	w := newWorld(t)
	hero := w.join("p1")
	goblin := w.goblin("goblin")

	out := w.handler.Perform(context.Background(), "p1", "strike", "goblin")
	require.True(t, out.Performed(), "%v", out.Failure)
	assert.Less(t, health(t, goblin), 100.0)

	// The goblin has no bridge, so its health change reaches nobody.
	evts := drain(t, hero.Bridge)
	assert.Equal(t, []string{"action_performed", "resource_changed", "cooldown_started"}, eventKinds(evts))
	assert.Equal(t, out.AttemptID, evts[0]["attempt_id"])
	assert.Equal(t, "stamina", evts[1]["resource"])
}

func TestBridgePublisher_TargetPlayerReceivesPerformed(t *testing.T) {
	w := newWorld(t)
	p1 := w.join("p1")
	p2 := w.join("p2")

	out := w.handler.Perform(context.Background(), "p1", "mend", "")
	require.True(t, out.Performed())
	assert.NotEmpty(t, drain(t, p1.Bridge))
	assert.Empty(t, drain(t, p2.Bridge))

	publisher := gameserver.NewBridgePublisher(w.sessions, zap.NewNop())
	publisher.Publish(ability.Notification{Kind: ability.ActionPerformed, EntityID: "p1", Targets: []string{"p2"}})
	assert.Equal(t, []string{"action_performed"}, eventKinds(drain(t, p2.Bridge)))
}

type fixedBridges map[string]*session.Bridge

func (f fixedBridges) Bridge(id string) (*session.Bridge, bool) {
	b, ok := f[id]
	return b, ok
}

func TestBridgePublisher_FullBufferLogsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := session.NewBridge("p1", 1)
	p := gameserver.NewBridgePublisher(fixedBridges{"p1": b}, zap.New(core))

	p.Publish(ability.Notification{Kind: ability.ResourceChanged, EntityID: "p1"})
	p.Publish(ability.Notification{Kind: ability.ResourceChanged, EntityID: "p1"})

	assert.Equal(t, uint64(1), b.Dropped())
	require.Equal(t, 1, logs.FilterMessage("push to bridge failed").Len())
	assert.Equal(t, zapcore.WarnLevel, logs.FilterMessage("push to bridge failed").All()[0].Level)
}

func TestDecodeEvent_RejectsGarbage(t *testing.T) {
	_, err := gameserver.DecodeEvent([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
