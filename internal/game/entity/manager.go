package entity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Manager tracks all live entities by ID and by location.
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	locations map[string]string          // entityID → location
	locSets   map[string]map[string]bool // location → set of entityIDs
	counter   atomic.Uint64
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		entities:  make(map[string]*Entity),
		locations: make(map[string]string),
		locSets:   make(map[string]map[string]bool),
	}
}

// NextID returns a fresh identifier with the given prefix.
//
// Postcondition: Never returns the same value twice for one Manager.
func (m *Manager) NextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, m.counter.Add(1))
}

// Add registers e at location.
//
// Precondition: e must be non-nil with a non-empty ID; location must be non-empty.
// Postcondition: Returns an error if an entity with the same ID already exists.
func (m *Manager) Add(e *Entity, location string) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("entity.Manager.Add: entity must be non-nil with an ID")
	}
	if location == "" {
		return fmt.Errorf("entity.Manager.Add: location must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.entities[e.ID]; dup {
		return fmt.Errorf("entity %q already exists", e.ID)
	}
	m.entities[e.ID] = e
	m.place(e.ID, location)
	return nil
}

// Remove deletes an entity by ID. Its sheet is discarded with it.
//
// Postcondition: Returns an error if the entity is not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("entity %q not found", id)
	}
	m.unplace(id)
	delete(m.entities, id)
	e.DetachSheet()
	return nil
}

// Get returns the entity with the given ID.
func (m *Manager) Get(id string) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// LocationOf returns the location of entity id.
func (m *Manager) LocationOf(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[id]
	return loc, ok
}

// InLocation returns a snapshot of every entity in location, ordered by ID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) InLocation(location string) []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.locSets[location]
	out := make([]*Entity, 0, len(ids))
	for id := range ids {
		if e, ok := m.entities[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Locations returns every occupied location in sorted order.
func (m *Manager) Locations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.locSets))
	for loc := range m.locSets {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Participants returns every entity currently carrying a sheet, ordered by ID.
func (m *Manager) Participants() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		if e.Participating() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Move relocates an entity.
//
// Precondition: id must identify an existing entity; location must be non-empty.
// Postcondition: LocationOf(id) == location.
func (m *Manager) Move(id, location string) error {
	if location == "" {
		return fmt.Errorf("entity.Manager.Move: location must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[id]; !ok {
		return fmt.Errorf("entity.Manager.Move: entity %q not found", id)
	}
	m.unplace(id)
	m.place(id, location)
	return nil
}

// FindInLocation resolves hint against entities in location: an exact ID match
// wins, otherwise the first entity (by ID order) whose Name has hint as a
// case-insensitive prefix. Returns nil if nothing matches.
func (m *Manager) FindInLocation(location, hint string) *Entity {
	if hint == "" {
		return nil
	}
	present := m.InLocation(location)
	for _, e := range present {
		if e.ID == hint {
			return e
		}
	}
	lower := strings.ToLower(hint)
	for _, e := range present {
		if strings.HasPrefix(strings.ToLower(e.Name), lower) {
			return e
		}
	}
	return nil
}

func (m *Manager) place(id, location string) {
	m.locations[id] = location
	if m.locSets[location] == nil {
		m.locSets[location] = make(map[string]bool)
	}
	m.locSets[location][id] = true
}

func (m *Manager) unplace(id string) {
	loc, ok := m.locations[id]
	if !ok {
		return
	}
	if set, ok := m.locSets[loc]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m.locSets, loc)
		}
	}
	delete(m.locations, id)
}
