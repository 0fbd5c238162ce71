// Package resource models regenerating numeric budgets such as health and power.
package resource

import (
	"errors"
	"fmt"
)

// RegenMode controls when a pool is allowed to regenerate.
type RegenMode string

const (
	// RegenAlways regenerates regardless of activity.
	RegenAlways RegenMode = "always"
	// RegenWhileActive regenerates only while the owner has acted recently.
	RegenWhileActive RegenMode = "only-while-active"
	// RegenWhileIdle regenerates only while the owner has not acted recently.
	RegenWhileIdle RegenMode = "only-while-idle"
)

// Valid reports whether m is a known mode. The empty mode is treated as RegenAlways.
func (m RegenMode) Valid() bool {
	switch m {
	case "", RegenAlways, RegenWhileActive, RegenWhileIdle:
		return true
	}
	return false
}

// Allows reports whether regeneration applies given the owner's activity.
func (m RegenMode) Allows(active bool) bool {
	switch m {
	case RegenWhileActive:
		return active
	case RegenWhileIdle:
		return !active
	default:
		return true
	}
}

// Definition is the static description of a resource, owned by an archetype.
type Definition struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Max  float64 `yaml:"max"`
	// RegenRate is the base regeneration per second.
	RegenRate float64   `yaml:"regen_rate"`
	RegenMode RegenMode `yaml:"regen_mode"`
	// StatMultipliers adds stat_value * multiplier to the per-second rate.
	StatMultipliers map[string]float64 `yaml:"stat_multipliers"`
}

// Validate checks the definition's invariants.
//
// Postcondition: Returns nil if ID is set, Max > 0, RegenRate >= 0, and RegenMode is known.
func (d Definition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("resource id must not be empty"))
	}
	if d.Max <= 0 {
		errs = append(errs, fmt.Errorf("resource %q: max must be > 0, got %v", d.ID, d.Max))
	}
	if d.RegenRate < 0 {
		errs = append(errs, fmt.Errorf("resource %q: regen_rate must be >= 0, got %v", d.ID, d.RegenRate))
	}
	if !d.RegenMode.Valid() {
		errs = append(errs, fmt.Errorf("resource %q: unknown regen_mode %q", d.ID, d.RegenMode))
	}
	return errors.Join(errs...)
}

// EffectiveRate returns the per-second regeneration for an owner with the given
// effective stats: the base rate plus stat_value * multiplier for every entry in
// StatMultipliers. Stats the owner lacks contribute nothing.
//
// Postcondition: Returns >= 0.
func (d Definition) EffectiveRate(stats map[string]int) float64 {
	rate := d.RegenRate
	for stat, mult := range d.StatMultipliers {
		rate += float64(stats[stat]) * mult
	}
	if rate < 0 {
		return 0
	}
	return rate
}
