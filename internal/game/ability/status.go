package ability

import (
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/resource"
)

// ActionStatus describes one unlocked action for introspection.
type ActionStatus struct {
	ActionID string
	Name     string
	// Slot is the loadout index, or -1 when not equipped.
	Slot              int
	Cooldown          time.Duration
	CooldownRemaining time.Duration
	SharedCategory    string
	SharedRemaining   time.Duration
	Affordable        bool
	// Shortfall names the first unaffordable resource when !Affordable.
	Shortfall resource.Shortfall
	// Known is false when the unlocked ID is missing from the catalog.
	Known bool
}

// Ready reports whether the action would pass the resource and timer checks.
func (s ActionStatus) Ready() bool {
	return s.Known && s.Affordable && s.CooldownRemaining == 0 && s.SharedRemaining == 0
}

// Statuses returns the status of every action actorID has unlocked, in ID order.
//
// Postcondition: Returns a NotParticipating failure for unknown or sheetless actors.
func (e *Executor) Statuses(actorID string, now time.Time) ([]ActionStatus, *Failure) {
	actor, ok := e.dir.Get(actorID)
	if !ok || actor.Sheet() == nil {
		return nil, notParticipating(actorID)
	}
	snap := e.catalog.Snapshot()
	sheet := actor.Sheet()
	sheet.Lock()
	defer sheet.Unlock()

	ids := sheet.Unlocked()
	out := make([]ActionStatus, 0, len(ids))
	for _, id := range ids {
		st := ActionStatus{ActionID: id, Name: id, Slot: sheet.SlotOf(id)}
		tmpl, err := snap.Get(id)
		if err == nil {
			st.Known = true
			st.Name = tmpl.Name
			st.Cooldown = tmpl.Cooldown
			st.CooldownRemaining = sheet.CooldownRemaining(id, tmpl.Cooldown, now)
			if cat := tmpl.SharedCategory(); cat != "" {
				st.SharedCategory = cat
				st.SharedRemaining = sheet.SharedDelayRemaining(cat, now)
			}
			sf, short := resource.FirstShortfall(sheet.Pools, tmpl.Cost)
			st.Affordable = !short
			st.Shortfall = sf
		}
		out = append(out, st)
	}
	return out, nil
}
