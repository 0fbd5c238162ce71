package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/actioncore/internal/game/character"
)

// HandleEquip processes "equip <action> <slot>" where slot is 1-based.
//
// Precondition: sheet must not be nil.
// Postcondition: On success the action occupies the slot and no other; on
// failure the loadout is unchanged.
func HandleEquip(sheet *character.Sheet, rawArgs string) string {
	parts := strings.Fields(rawArgs)
	if len(parts) != 2 {
		return "Usage: equip <action> <slot>"
	}
	actionID := strings.ToLower(parts[0])
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Sprintf("Invalid slot %q.", parts[1])
	}

	sheet.Lock()
	defer sheet.Unlock()
	switch err := sheet.Equip(n-1, actionID); {
	case errors.Is(err, character.ErrSlotOutOfRange):
		return fmt.Sprintf("Invalid slot %d. You have %d slots.", n, len(sheet.Slots))
	case errors.Is(err, character.ErrNotUnlocked):
		return fmt.Sprintf("You have not learned %s.", actionID)
	case err != nil:
		return err.Error()
	}
	return fmt.Sprintf("Equipped %s in slot %d.", actionID, n)
}

// HandleUnequip processes "unequip <slot>" where slot is 1-based.
//
// Precondition: sheet must not be nil.
func HandleUnequip(sheet *character.Sheet, arg string) string {
	arg = strings.TrimSpace(arg)
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "Usage: unequip <slot>"
	}

	sheet.Lock()
	defer sheet.Unlock()
	if n < 1 || n > len(sheet.Slots) {
		return fmt.Sprintf("Invalid slot %d. You have %d slots.", n, len(sheet.Slots))
	}
	prev := sheet.Slots[n-1]
	if prev.Empty() {
		return fmt.Sprintf("Slot %d is already empty.", n)
	}
	_ = sheet.Unequip(n - 1)
	return fmt.Sprintf("Removed %s from slot %d.", prev.ActionID, n)
}
