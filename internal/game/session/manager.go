package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// PlayerSession tracks one connected player.
type PlayerSession struct {
	// Username is the account name, used for logging.
	Username string
	// Entity is the player's participant in the entity directory.
	Entity *entity.Entity
	// Bridge carries the player's outbound notifications.
	Bridge *Bridge
	// ConnectedAt is when Join succeeded.
	ConnectedAt time.Time
}

// ID returns the entity ID of the session's player.
func (s *PlayerSession) ID() string { return s.Entity.ID }

// Manager tracks all active player sessions. Presence in a location is held
// by the entity directory, so a joined player is visible to target
// resolution like any other entity. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	dir        *entity.Manager
	players    map[string]*PlayerSession // entityID → session
	bufferSize int
}

// NewManager creates an empty session Manager over dir.
//
// Precondition: dir must not be nil.
func NewManager(dir *entity.Manager, bufferSize int) *Manager {
	if dir == nil {
		panic("session.NewManager: dir must not be nil")
	}
	return &Manager{
		dir:        dir,
		players:    make(map[string]*PlayerSession),
		bufferSize: bufferSize,
	}
}

// Join registers ent as a connected player at location.
//
// Precondition: ent must be a player entity with a non-empty ID.
// Postcondition: ent is in the directory at location and has an open bridge,
// or an error is returned and nothing changed.
func (m *Manager) Join(username string, ent *entity.Entity, location string, now time.Time) (*PlayerSession, error) {
	if ent == nil || ent.Kind != entity.KindPlayer {
		return nil, fmt.Errorf("session.Join: entity must be a player")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[ent.ID]; exists {
		return nil, fmt.Errorf("player %q already connected", ent.ID)
	}
	if err := m.dir.Add(ent, location); err != nil {
		return nil, fmt.Errorf("joining %q: %w", ent.ID, err)
	}
	sess := &PlayerSession{
		Username:    username,
		Entity:      ent,
		Bridge:      NewBridge(ent.ID, m.bufferSize),
		ConnectedAt: now,
	}
	m.players[ent.ID] = sess
	return sess, nil
}

// Leave removes a player session, its directory entry, and closes its bridge.
//
// Postcondition: Returns an error if the player is not connected.
func (m *Manager) Leave(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.players[id]
	if !exists {
		return fmt.Errorf("player %q not found", id)
	}
	delete(m.players, id)
	_ = sess.Bridge.Close()
	if err := m.dir.Remove(id); err != nil {
		return fmt.Errorf("leaving %q: %w", id, err)
	}
	return nil
}

// Get returns the session for the given entity ID.
func (m *Manager) Get(id string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[id]
	return sess, ok
}

// Bridge returns the open bridge for the given entity ID.
//
// Postcondition: Returns (nil, false) for NPCs, objects, and departed players.
func (m *Manager) Bridge(id string) (*Bridge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[id]
	if !ok {
		return nil, false
	}
	return sess.Bridge, true
}

// PlayersIn returns the sessions of players at location, sorted by ID.
func (m *Manager) PlayersIn(location string) []*PlayerSession {
	ents := m.dir.InLocation(location)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PlayerSession
	for _, e := range ents {
		if sess, ok := m.players[e.ID]; ok {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// All returns every connected session, sorted by ID.
func (m *Manager) All() []*PlayerSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PlayerSession, 0, len(m.players))
	for _, s := range m.players {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// PlayerCount returns the total number of connected players.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
