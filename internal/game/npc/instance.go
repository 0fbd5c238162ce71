package npc

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/actioncore/internal/game/character"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// healthPool is the pool whose depletion defeats an NPC.
const healthPool = "health"

// Instance is a live NPC occupying a location.
type Instance struct {
	// Entity is the participant registered in the entity directory.
	Entity *entity.Entity
	// TemplateID is the source template's ID.
	TemplateID string
	// AIDomain is the HTN domain ID copied from the template at spawn time.
	AIDomain string
	// Location is where the instance spawned.
	Location string
	// Respawn is the template's parsed respawn delay.
	Respawn time.Duration
	// Experience is paid to the entity that defeats this instance.
	Experience int
}

// ID returns the entity ID.
func (i *Instance) ID() string { return i.Entity.ID }

// NewInstance builds a live NPC from tmpl with a sheet at tmpl.Level. Every
// action the archetype unlocks through that level is learned, plus tmpl.Learn,
// and the loadout is filled in learn order.
//
// Precondition: id must be non-empty; tmpl and arch must be non-nil; arch.ID == tmpl.Archetype.
// Postcondition: The returned entity participates with full starting pools.
func NewInstance(id string, tmpl *Template, arch *ruleset.Archetype, location string, now time.Time) (*Instance, error) {
	if arch.ID != tmpl.Archetype {
		return nil, fmt.Errorf("npc %q: archetype %q does not match template archetype %q", tmpl.ID, arch.ID, tmpl.Archetype)
	}
	snap := character.SheetSnapshot{
		ArchetypeID: arch.ID,
		Level:       tmpl.Level,
		Unlocked:    make(map[string]int),
	}
	learn := append(arch.UnlocksThrough(tmpl.Level), tmpl.Learn...)
	for _, a := range learn {
		if _, ok := snap.Unlocked[a]; ok {
			continue
		}
		snap.Unlocked[a] = tmpl.Level
		snap.Loadout = append(snap.Loadout, a)
	}
	sheet, err := character.Restore(arch, snap, now)
	if err != nil {
		return nil, fmt.Errorf("npc %q: building sheet: %w", tmpl.ID, err)
	}
	e := entity.New(id, tmpl.Name, entity.KindNPC, tmpl.Team)
	e.AttachSheet(sheet)
	return &Instance{
		Entity:     e,
		TemplateID: tmpl.ID,
		AIDomain:   tmpl.AIDomain,
		Location:   location,
		Respawn:    tmpl.Respawn(),
		Experience: tmpl.Experience(),
	}, nil
}

// healthFraction returns current/max health: 1 without a health pool, 0 without a sheet.
func (i *Instance) healthFraction() float64 {
	sheet := i.Entity.Sheet()
	if sheet == nil {
		return 0
	}
	sheet.Lock()
	defer sheet.Unlock()
	p, ok := sheet.Pool(healthPool)
	if !ok || p.Max <= 0 {
		return 1
	}
	return p.Current / p.Max
}

// Defeated reports whether the instance's health pool is empty or its sheet is gone.
func (i *Instance) Defeated() bool {
	return i.healthFraction() <= 0
}

// HealthDescription returns a visible health state string for status output.
//
// Postcondition: Returns a non-empty string.
func (i *Instance) HealthDescription() string {
	pct := i.healthFraction()
	switch {
	case pct <= 0:
		return "defeated"
	case pct >= 1.0:
		return "unharmed"
	case pct >= 0.85:
		return "barely scratched"
	case pct >= 0.60:
		return "lightly wounded"
	case pct >= 0.40:
		return "moderately wounded"
	case pct >= 0.20:
		return "heavily wounded"
	default:
		return "critically wounded"
	}
}
