package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

var joinedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func player(id string) *entity.Entity {
	return entity.New(id, "Player "+id, entity.KindPlayer, "adventurers")
}

func TestBridge_Push(t *testing.T) {
	b := NewBridge("p1", 4)
	require.NoError(t, b.Push([]byte("hello")))
	assert.Equal(t, []byte("hello"), <-b.Events())
	assert.Equal(t, "p1", b.EntityID())
}

func TestBridge_PushClosed(t *testing.T) {
	b := NewBridge("p1", 4)
	require.NoError(t, b.Close())
	assert.True(t, b.IsClosed())
	assert.Error(t, b.Push([]byte("fail")))
}

func TestBridge_PushFullCountsDrop(t *testing.T) {
	b := NewBridge("p1", 1)
	require.NoError(t, b.Push([]byte("first")))
	err := b.Push([]byte("overflow"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestBridge_CloseIdempotent(t *testing.T) {
	b := NewBridge("p1", 0)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, open := <-b.Events()
	assert.False(t, open)
}

func TestManager_Join(t *testing.T) {
	dir := entity.NewManager()
	m := NewManager(dir, 8)

	sess, err := m.Join("alice", player("p1"), "square", joinedAt)
	require.NoError(t, err)
	assert.Equal(t, "p1", sess.ID())
	assert.Equal(t, joinedAt, sess.ConnectedAt)
	assert.Equal(t, 1, m.PlayerCount())

	loc, ok := dir.LocationOf("p1")
	require.True(t, ok)
	assert.Equal(t, "square", loc)
}

func TestManager_JoinRejectsDuplicatesAndNonPlayers(t *testing.T) {
	dir := entity.NewManager()
	m := NewManager(dir, 8)
	_, err := m.Join("alice", player("p1"), "square", joinedAt)
	require.NoError(t, err)

	_, err = m.Join("alice", player("p1"), "square", joinedAt)
	assert.Error(t, err)

	_, err = m.Join("npc", entity.New("g1", "Goblin", entity.KindNPC, "goblins"), "square", joinedAt)
	assert.Error(t, err)

	// A directory collision leaves no session behind.
	require.NoError(t, dir.Add(entity.New("p2", "Statue", entity.KindObject, ""), "square"))
	_, err = m.Join("bob", player("p2"), "square", joinedAt)
	assert.Error(t, err)
	_, ok := m.Get("p2")
	assert.False(t, ok)
}

func TestManager_Leave(t *testing.T) {
	dir := entity.NewManager()
	m := NewManager(dir, 8)
	sess, err := m.Join("alice", player("p1"), "square", joinedAt)
	require.NoError(t, err)

	require.NoError(t, m.Leave("p1"))
	assert.True(t, sess.Bridge.IsClosed())
	_, ok := dir.Get("p1")
	assert.False(t, ok)
	assert.Error(t, m.Leave("p1"))
}

func TestManager_BridgeAndPlayersIn(t *testing.T) {
	dir := entity.NewManager()
	m := NewManager(dir, 8)
	for _, id := range []string{"p2", "p1"} {
		_, err := m.Join(id, player(id), "square", joinedAt)
		require.NoError(t, err)
	}
	require.NoError(t, dir.Add(entity.New("g1", "Goblin", entity.KindNPC, "goblins"), "square"))

	_, ok := m.Bridge("g1")
	assert.False(t, ok)
	b, ok := m.Bridge("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", b.EntityID())

	in := m.PlayersIn("square")
	require.Len(t, in, 2)
	assert.Equal(t, "p1", in[0].ID())
	assert.Equal(t, "p2", in[1].ID())
}

func TestManager_ConcurrentJoinLeave(t *testing.T) {
	dir := entity.NewManager()
	m := NewManager(dir, 8)
	const n = 100
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			_, _ = m.Join(id, player(id), "square", joinedAt)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, m.PlayerCount())

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = m.Leave(fmt.Sprintf("p%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, m.PlayerCount())
	assert.Empty(t, m.PlayersIn("square"))
}

func TestPropertyPresenceMatchesSessions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir := entity.NewManager()
		m := NewManager(dir, 1)
		locations := []string{"l1", "l2", "l3"}
		numPlayers := rapid.IntRange(1, 20).Draw(t, "num_players")

		for i := 0; i < numPlayers; i++ {
			loc := locations[rapid.IntRange(0, len(locations)-1).Draw(t, "loc")]
			id := fmt.Sprintf("p%d", i)
			_, _ = m.Join(id, player(id), loc, joinedAt)
		}
		numMoves := rapid.IntRange(0, numPlayers*2).Draw(t, "num_moves")
		for i := 0; i < numMoves; i++ {
			id := fmt.Sprintf("p%d", rapid.IntRange(0, numPlayers-1).Draw(t, "move_player"))
			_ = dir.Move(id, locations[rapid.IntRange(0, len(locations)-1).Draw(t, "move_loc")])
		}
		numLeaves := rapid.IntRange(0, numPlayers/2).Draw(t, "num_leaves")
		for i := 0; i < numLeaves; i++ {
			_ = m.Leave(fmt.Sprintf("p%d", rapid.IntRange(0, numPlayers-1).Draw(t, "leave_player")))
		}

		total := 0
		for _, loc := range locations {
			total += len(m.PlayersIn(loc))
		}
		if total != m.PlayerCount() || len(m.All()) != total {
			t.Fatalf("presence %d != sessions %d", total, m.PlayerCount())
		}
	})
}
