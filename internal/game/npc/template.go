// Package npc defines NPC templates and spawns them as participating entities:
// each live NPC is an entity.Entity carrying a CharacterSheet built from its
// template's archetype, so it performs actions through the same executor as
// players.
package npc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// Template defines a reusable NPC loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Archetype   string `yaml:"archetype"`
	Level       int    `yaml:"level"`
	Team        string `yaml:"team"`
	// AIDomain is the HTN domain ID; empty falls back to the archetype's ai_priorities.
	AIDomain string `yaml:"ai_domain"`
	// Learn lists actions granted beyond what the archetype unlocks at Level.
	Learn []string `yaml:"learn"`
	// RespawnDelay is the duration string (e.g. "5m", "30s") before a defeated
	// NPC of this template respawns. Empty means the NPC does not respawn.
	RespawnDelay string `yaml:"respawn_delay"`
	// XPReward is the experience paid to whoever defeats the NPC. Zero falls
	// back to Level * DefaultXPPerLevel.
	XPReward int `yaml:"xp_reward"`
}

// DefaultXPPerLevel scales the reward of templates without an explicit xp_reward.
const DefaultXPPerLevel = 25

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID, Name, and Archetype are non-empty, Level >= 1,
// XPReward >= 0, and RespawnDelay is empty or a valid duration.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("npc template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.Archetype == "" {
		return fmt.Errorf("npc template %q: archetype must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("npc template %q: level must be >= 1", t.ID)
	}
	if t.XPReward < 0 {
		return fmt.Errorf("npc template %q: xp_reward must be >= 0", t.ID)
	}
	if t.RespawnDelay != "" {
		if _, err := time.ParseDuration(t.RespawnDelay); err != nil {
			return fmt.Errorf("npc template %q: respawn_delay %q is not a valid duration: %w", t.ID, t.RespawnDelay, err)
		}
	}
	return nil
}

// Respawn returns the parsed RespawnDelay, or 0 when the NPC does not respawn.
func (t *Template) Respawn() time.Duration {
	d, _ := time.ParseDuration(t.RespawnDelay)
	return d
}

// Experience returns the experience awarded for defeating an NPC of this template.
func (t *Template) Experience() int {
	if t.XPReward > 0 {
		return t.XPReward
	}
	return t.Level * DefaultXPPerLevel
}

// LoadTemplateFromBytes parses and validates a single NPC template.
//
// Postcondition: Returns a validated *Template, or an error. Unknown fields are rejected.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var tmpl Template
	if err := dec.Decode(&tmpl); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; duplicate IDs are an error.
func LoadTemplates(dir string) ([]*Template, error) {
	paths, err := ruleset.YAMLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}
	seen := make(map[string]string)
	var templates []*Template
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if prev, dup := seen[tmpl.ID]; dup {
			return nil, fmt.Errorf("loading %q: npc template %q already defined in %q", path, tmpl.ID, prev)
		}
		seen[tmpl.ID] = path
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// LoadSpawns reads a spawn table mapping location → spawn configs from path.
//
// Postcondition: Every config has a non-empty template and Max >= 1.
func LoadSpawns(path string) (map[string][]LocationSpawn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spawn table %q: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var out map[string][]LocationSpawn
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing spawn table %q: %w", path, err)
	}
	for loc, cfgs := range out {
		for _, c := range cfgs {
			if c.TemplateID == "" {
				return nil, fmt.Errorf("spawn table %q: location %q has an entry without a template", path, loc)
			}
			if c.Max < 1 {
				return nil, fmt.Errorf("spawn table %q: %s in %q: max must be >= 1", path, c.TemplateID, loc)
			}
		}
	}
	return out, nil
}
