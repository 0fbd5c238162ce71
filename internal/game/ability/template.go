// Package ability is the action execution core: the action catalog, the
// effect registry and its built-in routines, target resolution, and the
// executor that validates, pays for, dispatches, and times every action.
package ability

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/actioncore/internal/game/dice"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
)

// Targeting is the rule that turns a target hint into affected entities.
type Targeting string

const (
	TargetSelf           Targeting = "self"
	TargetSingleHostile  Targeting = "single-hostile"
	TargetSingleFriendly Targeting = "single-friendly"
	TargetArea           Targeting = "area-in-location"
)

// Valid reports whether t is a known rule.
func (t Targeting) Valid() bool {
	switch t {
	case TargetSelf, TargetSingleHostile, TargetSingleFriendly, TargetArea:
		return true
	}
	return false
}

// Single reports whether the rule names exactly one entity via the hint.
func (t Targeting) Single() bool {
	return t == TargetSingleHostile || t == TargetSingleFriendly
}

// Activation classifies how an action is triggered.
type Activation string

const (
	Active   Activation = "active"
	Passive  Activation = "passive"
	Reactive Activation = "reactive"
)

// Classification groups an action for display and AI selection.
type Classification struct {
	Activation Activation `yaml:"activation"`
	// Category is free-form, e.g. melee, ranged, utility.
	Category string `yaml:"category"`
}

// Costs is an ordered cost map. Content order is preserved so that the first
// unaffordable resource is reported deterministically.
type Costs []resource.Cost

// UnmarshalYAML decodes a YAML mapping of resource -> amount, keeping key order.
func (c *Costs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: cost must be a mapping of resource to amount", node.Line)
	}
	out := make(Costs, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		var amount float64
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&amount); err != nil {
			return fmt.Errorf("cost %q: %w", key, err)
		}
		if seen[key] {
			return fmt.Errorf("line %d: duplicate cost resource %q", node.Content[i].Line, key)
		}
		seen[key] = true
		out = append(out, resource.Cost{Resource: key, Amount: amount})
	}
	*c = out
	return nil
}

// Amount returns the cost for res, or 0.
func (c Costs) Amount(res string) float64 {
	for _, e := range c {
		if e.Resource == res {
			return e.Amount
		}
	}
	return 0
}

// SharedDelay names the category an action shares its delay with.
type SharedDelay struct {
	Category string `yaml:"category"`
	// Duration of zero is filled from the archetype shared-delay table at load.
	Duration time.Duration `yaml:"duration"`
}

// Scaling converts caster stats and level into a flat bonus.
type Scaling struct {
	Stats    map[string]float64 `yaml:"stats"`
	PerLevel float64            `yaml:"per_level"`
}

// Bonus returns sum(stat * multiplier) + PerLevel*level.
func (s Scaling) Bonus(stats map[string]int, level int) float64 {
	total := s.PerLevel * float64(level)
	for stat, mult := range s.Stats {
		total += float64(stats[stat]) * mult
	}
	return total
}

// Template is an immutable, content-defined action.
type Template struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Classification Classification `yaml:"classification"`
	Cost           Costs          `yaml:"cost"`
	Cooldown       time.Duration  `yaml:"cooldown"`
	SharedDelay    *SharedDelay   `yaml:"shared_delay"`
	// Effect names the routine in the EffectRegistry.
	Effect string `yaml:"effect"`
	// SecondaryEffects are condition IDs applied to every affected entity.
	SecondaryEffects []string  `yaml:"secondary_effects"`
	Targeting        Targeting `yaml:"targeting"`
	RequiresTarget   bool      `yaml:"requires_target"`
	LineOfEffect     bool      `yaml:"line_of_effect"`
	MinLevel         int       `yaml:"min_level"`
	// Archetype restricts the action to one archetype when set.
	Archetype string  `yaml:"archetype"`
	Scaling   Scaling `yaml:"scaling"`
	// Dice is the magnitude roll for strikes and restores, e.g. "2d6+1".
	Dice string `yaml:"dice"`
	// Params carries routine-specific settings.
	Params map[string]string `yaml:"params"`
}

// SharedCategory returns the shared-delay category, or "".
func (t *Template) SharedCategory() string {
	if t.SharedDelay == nil {
		return ""
	}
	return t.SharedDelay.Category
}

// Param returns Params[key] or def when unset.
func (t *Template) Param(key, def string) string {
	if v, ok := t.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// Validate checks the template's own fields. Cross-references (effects and
// secondary conditions) are checked by the Catalog.
//
// Postcondition: Returns nil or an error joining every problem found.
func (t *Template) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("action id must not be empty"))
	}
	if t.Name == "" {
		errs = append(errs, fmt.Errorf("action %q: name must not be empty", t.ID))
	}
	if t.Effect == "" {
		errs = append(errs, fmt.Errorf("action %q: effect must not be empty", t.ID))
	}
	if !t.Targeting.Valid() {
		errs = append(errs, fmt.Errorf("action %q: unknown targeting %q", t.ID, t.Targeting))
	} else if t.RequiresTarget && !t.Targeting.Single() {
		errs = append(errs, fmt.Errorf("action %q: requires_target applies only to single-target rules, not %q", t.ID, t.Targeting))
	}
	switch t.Classification.Activation {
	case "", Active, Passive, Reactive:
	default:
		errs = append(errs, fmt.Errorf("action %q: unknown activation %q", t.ID, t.Classification.Activation))
	}
	for _, c := range t.Cost {
		if c.Amount < 0 {
			errs = append(errs, fmt.Errorf("action %q: cost %q must not be negative", t.ID, c.Resource))
		}
	}
	if t.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("action %q: cooldown must not be negative", t.ID))
	}
	if t.SharedDelay != nil {
		if t.SharedDelay.Category == "" {
			errs = append(errs, fmt.Errorf("action %q: shared_delay category must not be empty", t.ID))
		}
		if t.SharedDelay.Duration < 0 {
			errs = append(errs, fmt.Errorf("action %q: shared_delay duration must not be negative", t.ID))
		}
	}
	if t.MinLevel < 0 {
		errs = append(errs, fmt.Errorf("action %q: min_level must not be negative", t.ID))
	}
	if t.Dice != "" {
		expr, err := dice.Parse(t.Dice)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("action %q: dice: %w", t.ID, err))
		case expr.Max() <= 0:
			errs = append(errs, fmt.Errorf("action %q: dice %q can never roll above zero", t.ID, t.Dice))
		}
	}
	return errors.Join(errs...)
}
