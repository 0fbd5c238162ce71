package condition

import (
	"fmt"
	"sort"
	"time"
)

// ActiveCondition tracks one applied condition on an entity.
type ActiveCondition struct {
	Def    *ConditionDef
	Stacks int
	// ExpiresAt is the zero time for permanent conditions.
	ExpiresAt time.Time
}

// Remaining returns how long the condition has left at now, or -1 if permanent.
func (ac *ActiveCondition) Remaining(now time.Time) time.Duration {
	if ac.ExpiresAt.IsZero() {
		return -1
	}
	if d := ac.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ActiveSet tracks all conditions currently applied to one entity.
// It is not safe for concurrent use; the caller must serialise access.
type ActiveSet struct {
	conditions map[string]*ActiveCondition
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{conditions: make(map[string]*ActiveCondition)}
}

// Apply adds or refreshes a condition on this entity at time now.
// If the condition is already present, stacks are incremented (capped at MaxStacks).
// If MaxStacks == 0 (unstackable), stacks is always stored as 1.
//
// Precondition: def must not be nil; stacks >= 1.
// Postcondition: Has(def.ID) is true; on re-apply ExpiresAt becomes the later of the
// existing and the new expiry.
func (s *ActiveSet) Apply(def *ConditionDef, stacks int, now time.Time) error {
	if def == nil {
		return fmt.Errorf("Apply: def must not be nil")
	}
	if stacks < 1 {
		return fmt.Errorf("Apply %q: stacks must be >= 1, got %d", def.ID, stacks)
	}

	var expires time.Time
	if def.Duration > 0 {
		expires = now.Add(def.Duration)
	}

	if existing, ok := s.conditions[def.ID]; ok {
		if def.MaxStacks > 0 {
			existing.Stacks = min(existing.Stacks+stacks, def.MaxStacks)
		}
		if !existing.ExpiresAt.IsZero() && (expires.IsZero() || expires.After(existing.ExpiresAt)) {
			existing.ExpiresAt = expires
		}
		return nil
	}

	effective := 1
	if def.MaxStacks > 0 {
		effective = min(stacks, def.MaxStacks)
	}
	s.conditions[def.ID] = &ActiveCondition{
		Def:       def,
		Stacks:    effective,
		ExpiresAt: expires,
	}
	return nil
}

// Remove deletes the condition with the given ID from the set.
// If the condition is not present, Remove is a no-op.
//
// Postcondition: Has(id) is false.
func (s *ActiveSet) Remove(id string) {
	delete(s.conditions, id)
}

// Expire removes every timed condition whose expiry is at or before now and
// returns their IDs in sorted order.
//
// Postcondition: For every id in the returned slice, Has(id) is false.
// Permanent conditions are never removed.
func (s *ActiveSet) Expire(now time.Time) []string {
	var expired []string
	for id, ac := range s.conditions {
		if ac.ExpiresAt.IsZero() || ac.ExpiresAt.After(now) {
			continue
		}
		expired = append(expired, id)
		delete(s.conditions, id)
	}
	sort.Strings(expired)
	return expired
}

// Has reports whether the condition with id is currently active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.conditions[id]
	return ok
}

// Stacks returns the current stack count for condition id, or 0 if not present.
func (s *ActiveSet) Stacks(id string) int {
	if ac, ok := s.conditions[id]; ok {
		return ac.Stacks
	}
	return 0
}

// Get returns the active condition for id.
func (s *ActiveSet) Get(id string) (*ActiveCondition, bool) {
	ac, ok := s.conditions[id]
	return ac, ok
}

// Len returns the number of active conditions.
func (s *ActiveSet) Len() int {
	return len(s.conditions)
}

// All returns the active conditions ordered by ID.
// The slice is a new allocation, but the pointed-to ActiveCondition values are
// shared; callers must not modify them.
func (s *ActiveSet) All() []*ActiveCondition {
	out := make([]*ActiveCondition, 0, len(s.conditions))
	for _, ac := range s.conditions {
		out = append(out, ac)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.ID < out[j].Def.ID })
	return out
}
