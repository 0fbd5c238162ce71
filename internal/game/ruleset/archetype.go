// Package ruleset defines content-driven archetypes: base stats, growth,
// resources, unlockable actions, loadout size, and shared-delay durations.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/actioncore/internal/game/resource"
)

// ResourceGrant is a resource definition plus the amount a new sheet starts with.
type ResourceGrant struct {
	resource.Definition `yaml:",inline"`
	// Start is the initial amount. Nil starts the pool full.
	Start *float64 `yaml:"start"`
}

// StartAmount returns the initial pool value.
func (g ResourceGrant) StartAmount() float64 {
	if g.Start == nil {
		return g.Max
	}
	return *g.Start
}

// Unlock grants an action once the bearer reaches Level.
type Unlock struct {
	Action string `yaml:"action"`
	Level  int    `yaml:"level"`
}

// SlotStep sets the loadout size from Level onward.
type SlotStep struct {
	Level int `yaml:"level"`
	Slots int `yaml:"slots"`
}

// Archetype is a content-defined character class template.
//
// Precondition: ID and Name must be non-empty after loading.
type Archetype struct {
	ID                 string                   `yaml:"id"`
	Name               string                   `yaml:"name"`
	Description        string                   `yaml:"description"`
	ExperiencePerLevel int                      `yaml:"experience_per_level"`
	MaxLevel           int                      `yaml:"max_level"`
	BaseStats          map[string]int           `yaml:"base_stats"`
	StatGrowth         map[string]int           `yaml:"stat_growth"`
	Resources          []ResourceGrant          `yaml:"resources"`
	Unlocks            []Unlock                 `yaml:"unlocks"`
	SlotsByLevel       []SlotStep               `yaml:"slots_by_level"`
	SharedDelays       map[string]time.Duration `yaml:"shared_delays"`
	// AIPriorities lists action IDs in the order an NPC of this archetype prefers them.
	AIPriorities []string `yaml:"ai_priorities"`
}

// Validate checks all archetype invariants and reports every violation.
//
// Postcondition: Returns nil if the archetype is usable for building sheets.
func (a *Archetype) Validate() error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, errors.New("archetype id must not be empty"))
	}
	if a.Name == "" {
		errs = append(errs, fmt.Errorf("archetype %q: name must not be empty", a.ID))
	}
	if a.ExperiencePerLevel < 0 {
		errs = append(errs, fmt.Errorf("archetype %q: experience_per_level must be >= 0", a.ID))
	}
	if a.MaxLevel < 0 {
		errs = append(errs, fmt.Errorf("archetype %q: max_level must be >= 0", a.ID))
	}
	seen := make(map[string]bool, len(a.Resources))
	for _, g := range a.Resources {
		if err := g.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("archetype %q: %w", a.ID, err))
		}
		if seen[g.ID] {
			errs = append(errs, fmt.Errorf("archetype %q: duplicate resource %q", a.ID, g.ID))
		}
		seen[g.ID] = true
	}
	for _, u := range a.Unlocks {
		if u.Action == "" {
			errs = append(errs, fmt.Errorf("archetype %q: unlock with empty action", a.ID))
		}
		if u.Level < 1 {
			errs = append(errs, fmt.Errorf("archetype %q: unlock %q level must be >= 1", a.ID, u.Action))
		}
	}
	for _, s := range a.SlotsByLevel {
		if s.Level < 1 || s.Slots < 0 {
			errs = append(errs, fmt.Errorf("archetype %q: invalid slot step level=%d slots=%d", a.ID, s.Level, s.Slots))
		}
	}
	for cat, d := range a.SharedDelays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("archetype %q: shared delay %q must not be negative", a.ID, cat))
		}
	}
	return errors.Join(errs...)
}

// SlotCount returns the loadout size at level: the Slots of the highest step whose
// Level <= level, or 0 when no step applies.
func (a *Archetype) SlotCount(level int) int {
	best, count := 0, 0
	for _, s := range a.SlotsByLevel {
		if s.Level <= level && s.Level >= best {
			best, count = s.Level, s.Slots
		}
	}
	return count
}

// StatsAt returns base stats plus growth*(level-1) for every stat named in either map.
//
// Precondition: level >= 1.
// Postcondition: Returns a new map.
func (a *Archetype) StatsAt(level int) map[string]int {
	out := make(map[string]int, len(a.BaseStats))
	for k, v := range a.BaseStats {
		out[k] = v
	}
	for k, g := range a.StatGrowth {
		out[k] += g * (level - 1)
	}
	return out
}

// UnlocksThrough returns the action IDs granted at or below level, in content order.
func (a *Archetype) UnlocksThrough(level int) []string {
	var out []string
	for _, u := range a.Unlocks {
		if u.Level <= level {
			out = append(out, u.Action)
		}
	}
	return out
}

// UnlocksAt returns the action IDs granted exactly at level.
func (a *Archetype) UnlocksAt(level int) []string {
	var out []string
	for _, u := range a.Unlocks {
		if u.Level == level {
			out = append(out, u.Action)
		}
	}
	return out
}

// Resource returns the grant for resource id.
func (a *Archetype) Resource(id string) (ResourceGrant, bool) {
	for _, g := range a.Resources {
		if g.ID == id {
			return g, true
		}
	}
	return ResourceGrant{}, false
}

// ExperienceForNext returns the experience required to advance from level.
// Zero means the archetype does not level.
func (a *Archetype) ExperienceForNext(level int) int {
	return a.ExperiencePerLevel * level
}

// LoadArchetypes reads all .yaml files in dir and parses each as an Archetype.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed, validated archetypes ordered by ID, or a non-nil error.
func LoadArchetypes(dir string) ([]*Archetype, error) {
	files, err := YAMLFiles(dir)
	if err != nil {
		return nil, err
	}
	archetypes := make([]*Archetype, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var a Archetype
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&a); err != nil {
			return nil, fmt.Errorf("parsing archetype file %s: %w", path, err)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("validating archetype file %s: %w", path, err)
		}
		archetypes = append(archetypes, &a)
	}
	sort.Slice(archetypes, func(i, j int) bool { return archetypes[i].ID < archetypes[j].ID })
	return archetypes, nil
}
