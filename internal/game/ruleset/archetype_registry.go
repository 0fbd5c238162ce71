package ruleset

import (
	"fmt"
	"sort"
	"time"
)

// ArchetypeRegistry provides lookup of archetypes by ID.
type ArchetypeRegistry struct {
	archetypes map[string]*Archetype
}

// NewArchetypeRegistry returns an empty ArchetypeRegistry.
//
// Postcondition: Returns a non-nil *ArchetypeRegistry ready to accept registrations.
func NewArchetypeRegistry() *ArchetypeRegistry {
	return &ArchetypeRegistry{archetypes: make(map[string]*Archetype)}
}

// Register adds an Archetype to the registry.
//
// Precondition: a must be non-nil with a non-empty ID.
// Postcondition: a is retrievable via Get; if called multiple times with the
// same ID, the last call wins.
func (r *ArchetypeRegistry) Register(a *Archetype) {
	if a == nil {
		panic("ArchetypeRegistry.Register: precondition violated: archetype must be non-nil")
	}
	if a.ID == "" {
		panic("ArchetypeRegistry.Register: precondition violated: archetype ID must be non-empty")
	}
	r.archetypes[a.ID] = a
}

// Get returns the Archetype for id, if registered.
func (r *ArchetypeRegistry) Get(id string) (*Archetype, bool) {
	a, ok := r.archetypes[id]
	return a, ok
}

// All returns every registered archetype ordered by ID.
func (r *ArchetypeRegistry) All() []*Archetype {
	out := make([]*Archetype, 0, len(r.archetypes))
	for _, a := range r.archetypes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SharedDelayTable merges every archetype's shared-delay durations into one
// category table. Two archetypes declaring the same category with different
// durations is a content error.
//
// Postcondition: Returns a new map or a non-nil error naming the conflict.
func (r *ArchetypeRegistry) SharedDelayTable() (map[string]time.Duration, error) {
	out := make(map[string]time.Duration)
	owner := make(map[string]string)
	for _, a := range r.All() {
		for cat, d := range a.SharedDelays {
			if prev, ok := out[cat]; ok && prev != d {
				return nil, fmt.Errorf("shared delay %q: archetype %q declares %s but %q declares %s",
					cat, owner[cat], prev, a.ID, d)
			}
			out[cat] = d
			owner[cat] = a.ID
		}
	}
	return out, nil
}
