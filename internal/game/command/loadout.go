package command

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/character"
)

// HandleLoadout renders the sheet's slots, one per line, 1-based.
//
// Precondition: sheet must not be nil.
func HandleLoadout(sheet *character.Sheet) string {
	sheet.Lock()
	defer sheet.Unlock()
	if len(sheet.Slots) == 0 {
		return "You have no action slots."
	}
	var b strings.Builder
	for i, slot := range sheet.Slots {
		name := "(empty)"
		if !slot.Empty() {
			name = slot.ActionID
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// HandleStatus renders the sheet's level, pools, and active conditions.
//
// Precondition: sheet must not be nil.
func HandleStatus(sheet *character.Sheet, now time.Time) string {
	sheet.Lock()
	defer sheet.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%s level %d\n", sheet.Archetype.Name, sheet.Level)
	for _, id := range sheet.PoolIDs() {
		p, _ := sheet.Pool(id)
		fmt.Fprintf(&b, "  %-10s %6.1f / %.0f\n", id, p.Current, p.Max)
	}
	conds := sheet.Conditions.All()
	if len(conds) == 0 {
		b.WriteString("No active conditions.")
		return b.String()
	}
	b.WriteString("Conditions:")
	for _, ac := range conds {
		left := "permanent"
		if r := ac.Remaining(now); r >= 0 {
			left = r.Round(time.Second).String()
		}
		fmt.Fprintf(&b, "\n  %s x%d (%s)", ac.Def.Name, ac.Stacks, left)
	}
	return b.String()
}

// RenderStatuses formats the abilities listing: equipped actions first by
// slot, then the rest by ID.
func RenderStatuses(statuses []ability.ActionStatus) string {
	if len(statuses) == 0 {
		return "You know no actions."
	}
	sorted := append([]ability.ActionStatus(nil), statuses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.Slot >= 0) != (b.Slot >= 0) {
			return a.Slot >= 0
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.ActionID < b.ActionID
	})
	var b strings.Builder
	for _, st := range sorted {
		slot := " -"
		if st.Slot >= 0 {
			slot = fmt.Sprintf("%2d", st.Slot+1)
		}
		fmt.Fprintf(&b, "%s %-20s %s\n", slot, st.Name, describe(st))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describe(st ability.ActionStatus) string {
	switch {
	case !st.Known:
		return "unavailable"
	case st.CooldownRemaining > 0:
		return fmt.Sprintf("cooldown %.1fs", st.CooldownRemaining.Seconds())
	case st.SharedRemaining > 0:
		return fmt.Sprintf("%s delay %.1fs", st.SharedCategory, st.SharedRemaining.Seconds())
	case !st.Affordable:
		return fmt.Sprintf("needs %.0f %s", st.Shortfall.Need, st.Shortfall.Resource)
	default:
		return "ready"
	}
}
