package character

import (
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/condition"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// NewSheet builds a level-1 sheet for arch at time now. Starting pools use each
// grant's start amount, level-1 unlocks are learned, and they fill the loadout
// in content order until it is full.
//
// Precondition: arch must be non-nil.
// Postcondition: Returns a Sheet with len(Slots) == arch.SlotCount(1), or a non-nil error.
func NewSheet(arch *ruleset.Archetype, now time.Time) (*Sheet, error) {
	if arch == nil {
		return nil, errors.New("archetype must not be nil")
	}
	s := newEmptySheet(arch, 1)
	for _, g := range arch.Resources {
		s.Pools[g.ID] = resource.NewPool(g.Definition, g.StartAmount(), now)
	}
	for _, id := range arch.UnlocksThrough(1) {
		s.Learn(id)
	}
	return s, nil
}

func newEmptySheet(arch *ruleset.Archetype, level int) *Sheet {
	return &Sheet{
		Archetype:    arch,
		Level:        level,
		unlocked:     make(map[string]int),
		Slots:        make([]ActionSlot, arch.SlotCount(level)),
		Pools:        make(map[string]*resource.Pool, len(arch.Resources)),
		sharedDelays: make(map[string]time.Time),
		lastUsed:     make(map[string]time.Time),
		Conditions:   condition.NewActiveSet(),
	}
}

// SheetSnapshot is the persistable subset of a Sheet. Cooldowns, shared delays,
// and conditions are deliberately excluded.
type SheetSnapshot struct {
	ArchetypeID string
	Level       int
	Experience  int
	Unlocked    map[string]int
	Loadout     []string
	Pools       map[string]float64
}

// Snapshot copies the persistable state under the sheet lock.
//
// Postcondition: The returned value shares no memory with the sheet.
func (s *Sheet) Snapshot() SheetSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SheetSnapshot{
		ArchetypeID: s.Archetype.ID,
		Level:       s.Level,
		Experience:  s.Experience,
		Unlocked:    make(map[string]int, len(s.unlocked)),
		Loadout:     make([]string, len(s.Slots)),
		Pools:       make(map[string]float64, len(s.Pools)),
	}
	for id, lvl := range s.unlocked {
		snap.Unlocked[id] = lvl
	}
	for i, slot := range s.Slots {
		snap.Loadout[i] = slot.ActionID
	}
	for id, p := range s.Pools {
		snap.Pools[id] = p.Current
	}
	return snap
}

// Restore rebuilds a sheet from a snapshot. Pools missing from the snapshot
// start at their grant amount; pools the archetype no longer defines are dropped;
// loadout entries beyond the current slot count or no longer unlocked are skipped.
//
// Precondition: arch must be non-nil and arch.ID == snap.ArchetypeID.
// Postcondition: Returns a fresh Sheet with no cooldowns or shared delays active.
func Restore(arch *ruleset.Archetype, snap SheetSnapshot, now time.Time) (*Sheet, error) {
	if arch == nil {
		return nil, errors.New("archetype must not be nil")
	}
	if arch.ID != snap.ArchetypeID {
		return nil, fmt.Errorf("snapshot archetype %q does not match %q", snap.ArchetypeID, arch.ID)
	}
	if snap.Level < 1 {
		return nil, fmt.Errorf("snapshot level must be >= 1, got %d", snap.Level)
	}
	s := newEmptySheet(arch, snap.Level)
	s.Experience = snap.Experience
	for _, g := range arch.Resources {
		start := g.StartAmount()
		if v, ok := snap.Pools[g.ID]; ok {
			start = v
		}
		s.Pools[g.ID] = resource.NewPool(g.Definition, start, now)
	}
	for id, lvl := range snap.Unlocked {
		s.unlocked[id] = lvl
	}
	for i, id := range snap.Loadout {
		if i >= len(s.Slots) || id == "" || !s.IsUnlocked(id) {
			continue
		}
		s.Slots[i] = ActionSlot{ActionID: id, AcquiredLevel: s.unlocked[id]}
	}
	return s, nil
}
