package character

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotUnlocked is returned when equipping an action the sheet has not learned.
var ErrNotUnlocked = errors.New("action not unlocked")

// ErrSlotOutOfRange is returned for a slot index outside the loadout.
var ErrSlotOutOfRange = errors.New("slot out of range")

// Learn adds actionID to the unlocked set at the current level and places it in
// the first empty slot, if any.
//
// Postcondition: IsUnlocked(actionID); returns false if it was already unlocked.
func (s *Sheet) Learn(actionID string) bool {
	if s.IsUnlocked(actionID) {
		return false
	}
	s.unlocked[actionID] = s.Level
	for i := range s.Slots {
		if s.Slots[i].Empty() {
			s.Slots[i] = ActionSlot{ActionID: actionID, AcquiredLevel: s.Level}
			break
		}
	}
	return true
}

// Equip places actionID into slot, moving it out of any other slot it occupied.
// The slot inherits the action's per-action last-use time.
//
// Precondition: 0 <= slot < len(Slots); actionID is unlocked.
// Postcondition: Slots[slot].ActionID == actionID and no other slot holds it.
func (s *Sheet) Equip(slot int, actionID string) error {
	if slot < 0 || slot >= len(s.Slots) {
		return fmt.Errorf("equip %q into slot %d: %w", actionID, slot, ErrSlotOutOfRange)
	}
	lvl, ok := s.unlocked[actionID]
	if !ok {
		return fmt.Errorf("equip %q: %w", actionID, ErrNotUnlocked)
	}
	if prev := s.SlotOf(actionID); prev >= 0 {
		s.Slots[prev] = ActionSlot{}
	}
	s.Slots[slot] = ActionSlot{
		ActionID:      actionID,
		LastUsed:      s.lastUsed[actionID],
		AcquiredLevel: lvl,
	}
	return nil
}

// Unequip empties slot.
//
// Precondition: 0 <= slot < len(Slots).
func (s *Sheet) Unequip(slot int) error {
	if slot < 0 || slot >= len(s.Slots) {
		return fmt.Errorf("unequip slot %d: %w", slot, ErrSlotOutOfRange)
	}
	s.Slots[slot] = ActionSlot{}
	return nil
}

// LevelUp describes one level gained.
type LevelUp struct {
	Level    int
	Learned  []string
	NewSlots int
}

// AwardExperience adds xp and applies every level-up it pays for. Each level
// costs ExperienceForNext(current level); an archetype with zero
// experience_per_level never levels, and MaxLevel (when set) caps progression.
//
// Precondition: xp >= 0.
// Postcondition: Returns one LevelUp per level gained, in order.
func (s *Sheet) AwardExperience(xp int) []LevelUp {
	if xp <= 0 {
		return nil
	}
	s.Experience += xp
	var ups []LevelUp
	for {
		need := s.Archetype.ExperienceForNext(s.Level)
		if need <= 0 || s.Experience < need {
			break
		}
		if s.Archetype.MaxLevel > 0 && s.Level >= s.Archetype.MaxLevel {
			break
		}
		s.Experience -= need
		s.Level++
		up := LevelUp{Level: s.Level}
		if want := s.Archetype.SlotCount(s.Level); want > len(s.Slots) {
			up.NewSlots = want - len(s.Slots)
			s.Slots = append(s.Slots, make([]ActionSlot, up.NewSlots)...)
		}
		for _, id := range s.Archetype.UnlocksAt(s.Level) {
			if s.Learn(id) {
				up.Learned = append(up.Learned, id)
			}
		}
		ups = append(ups, up)
	}
	return ups
}

// ExpireConditions drops conditions whose time has passed at now.
func (s *Sheet) ExpireConditions(now time.Time) []string {
	return s.Conditions.Expire(now)
}
