// Package character defines the optional per-entity CharacterSheet: level,
// unlocked actions, the loadout, resource pools, and cooldown timestamps.
package character

import (
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/condition"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// ActionSlot is one loadout position.
type ActionSlot struct {
	// ActionID is empty for an empty slot.
	ActionID string
	// LastUsed is when the action in this slot last executed.
	LastUsed time.Time
	// AcquiredLevel is the level at which the slotted action was unlocked.
	AcquiredLevel int
}

// Empty reports whether the slot holds no action.
func (s ActionSlot) Empty() bool { return s.ActionID == "" }

// Sheet is the runtime ability state of one entity.
//
// Sheet is guarded by its own mutex. Every method except Lock, Unlock, and
// Snapshot requires the caller to hold the lock; the executor and the
// regeneration driver both take it before touching a sheet.
type Sheet struct {
	mu sync.Mutex

	Archetype  *ruleset.Archetype
	Level      int
	Experience int

	unlocked map[string]int // action ID -> level acquired
	Slots    []ActionSlot
	Pools    map[string]*resource.Pool

	// sharedDelays maps category -> the instant actions in it become usable.
	sharedDelays map[string]time.Time
	// lastUsed records per-action use so unequipped actions still cool down.
	lastUsed map[string]time.Time

	Conditions *condition.ActiveSet
	// LastAction is when the owner last performed any action.
	LastAction time.Time
}

// Lock acquires the sheet's exclusive section.
func (s *Sheet) Lock() { s.mu.Lock() }

// Unlock releases the sheet's exclusive section.
func (s *Sheet) Unlock() { s.mu.Unlock() }

// IsUnlocked reports whether actionID is in the unlocked set.
func (s *Sheet) IsUnlocked(actionID string) bool {
	_, ok := s.unlocked[actionID]
	return ok
}

// Unlocked returns the unlocked action IDs in sorted order.
func (s *Sheet) Unlocked() []string {
	out := make([]string, 0, len(s.unlocked))
	for id := range s.unlocked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SlotOf returns the index of the slot holding actionID, or -1.
func (s *Sheet) SlotOf(actionID string) int {
	for i, slot := range s.Slots {
		if slot.ActionID == actionID {
			return i
		}
	}
	return -1
}

// Pool returns the pool for resource id.
func (s *Sheet) Pool(id string) (*resource.Pool, bool) {
	p, ok := s.Pools[id]
	return p, ok
}

// PoolIDs returns the resource IDs of every pool in sorted order.
func (s *Sheet) PoolIDs() []string {
	out := make([]string, 0, len(s.Pools))
	for id := range s.Pools {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LastUsed returns when actionID last executed.
func (s *Sheet) LastUsed(actionID string) (time.Time, bool) {
	t, ok := s.lastUsed[actionID]
	return t, ok
}

// CooldownRemaining returns how long until actionID is off its personal
// cooldown at now, or 0 if it is ready.
//
// Postcondition: Returns >= 0.
func (s *Sheet) CooldownRemaining(actionID string, cooldown time.Duration, now time.Time) time.Duration {
	last, ok := s.lastUsed[actionID]
	if !ok || cooldown <= 0 {
		return 0
	}
	if remaining := cooldown - now.Sub(last); remaining > 0 {
		return remaining
	}
	return 0
}

// SharedDelayRemaining returns how long until category becomes usable at now.
//
// Postcondition: Returns >= 0.
func (s *Sheet) SharedDelayRemaining(category string, now time.Time) time.Duration {
	usableAt, ok := s.sharedDelays[category]
	if !ok || !usableAt.After(now) {
		return 0
	}
	return usableAt.Sub(now)
}

// SharedDelayUntil returns the instant category becomes usable.
func (s *Sheet) SharedDelayUntil(category string) (time.Time, bool) {
	t, ok := s.sharedDelays[category]
	return t, ok
}

// RecordUse stamps actionID as used at now, mirroring the timestamp into the
// slot holding it.
//
// Postcondition: LastUsed(actionID) == now; LastAction == now.
func (s *Sheet) RecordUse(actionID string, now time.Time) {
	s.lastUsed[actionID] = now
	if i := s.SlotOf(actionID); i >= 0 {
		s.Slots[i].LastUsed = now
	}
	s.LastAction = now
}

// StartSharedDelay blocks every action in category until now+d.
//
// Postcondition: SharedDelayRemaining(category, now) == d when d > 0.
func (s *Sheet) StartSharedDelay(category string, now time.Time, d time.Duration) {
	s.sharedDelays[category] = now.Add(d)
}

// EffectiveStats returns archetype stats at the current level plus active
// condition modifiers.
//
// Postcondition: Returns a new map.
func (s *Sheet) EffectiveStats() map[string]int {
	stats := s.Archetype.StatsAt(s.Level)
	for k, v := range condition.StatModifiers(s.Conditions) {
		stats[k] += v
	}
	return stats
}

// Stat returns one effective stat.
func (s *Sheet) Stat(name string) int {
	return s.Archetype.StatsAt(s.Level)[name] + condition.StatBonus(s.Conditions, name)
}

// IsActive reports whether the owner acted within window before now.
func (s *Sheet) IsActive(now time.Time, window time.Duration) bool {
	if s.LastAction.IsZero() {
		return false
	}
	return now.Sub(s.LastAction) <= window
}
