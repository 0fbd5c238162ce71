package npc

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// Manager tracks live NPC instances and keeps them registered in the entity
// directory. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	instances  map[string]*Instance // entity ID → Instance
	dir        *entity.Manager
	archetypes *ruleset.ArchetypeRegistry
	counter    atomic.Uint64
}

// NewManager creates an empty NPC Manager spawning into dir.
//
// Precondition: dir and archetypes must be non-nil.
func NewManager(dir *entity.Manager, archetypes *ruleset.ArchetypeRegistry) *Manager {
	return &Manager{
		instances:  make(map[string]*Instance),
		dir:        dir,
		archetypes: archetypes,
	}
}

// Spawn creates a new Instance from tmpl and places it in location.
//
// Precondition: tmpl must be non-nil; location must be non-empty.
// Postcondition: Returns a new Instance with a unique ID registered in the directory.
func (m *Manager) Spawn(tmpl *Template, location string, now time.Time) (*Instance, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("npc.Manager.Spawn: tmpl must not be nil")
	}
	if location == "" {
		return nil, fmt.Errorf("npc.Manager.Spawn: location must not be empty")
	}
	arch, ok := m.archetypes.Get(tmpl.Archetype)
	if !ok {
		return nil, fmt.Errorf("npc.Manager.Spawn: template %q references unknown archetype %q", tmpl.ID, tmpl.Archetype)
	}

	n := m.counter.Add(1)
	id := fmt.Sprintf("%s-%s-%d", tmpl.ID, location, n)
	inst, err := NewInstance(id, tmpl, arch, location, now)
	if err != nil {
		return nil, err
	}
	if err := m.dir.Add(inst.Entity, location); err != nil {
		return nil, fmt.Errorf("npc.Manager.Spawn: %w", err)
	}

	m.mu.Lock()
	m.instances[id] = inst
	m.mu.Unlock()
	return inst, nil
}

// Remove despawns an instance by ID.
//
// Postcondition: Returns an error if the instance is not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	_, ok := m.instances[id]
	delete(m.instances, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("npc instance %q not found", id)
	}
	_ = m.dir.Remove(id)
	return nil
}

// Get returns the instance with the given ID.
func (m *Manager) Get(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// ExperienceFor returns the experience earned for defeating victim: the
// instance's reward when victim is a live NPC, zero otherwise.
func (m *Manager) ExperienceFor(victim *entity.Entity) int {
	inst, ok := m.Get(victim.ID)
	if !ok {
		return 0
	}
	return inst.Experience
}

// All returns every live instance ordered by ID.
func (m *Manager) All() []*Instance {
	m.mu.RLock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// InstancesIn returns the live instances currently in location, ordered by ID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) InstancesIn(location string) []*Instance {
	out := []*Instance{}
	for _, inst := range m.All() {
		if loc, ok := m.dir.LocationOf(inst.ID()); ok && loc == location {
			out = append(out, inst)
		}
	}
	return out
}

// Defeated returns the live instances whose health is depleted.
func (m *Manager) Defeated() []*Instance {
	var out []*Instance
	for _, inst := range m.All() {
		if inst.Defeated() {
			out = append(out, inst)
		}
	}
	return out
}
