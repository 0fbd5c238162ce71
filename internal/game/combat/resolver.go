package combat

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/actioncore/internal/game/dice"
)

// DefaultDefense is used when a target has no defense stat.
const DefaultDefense = 10

// Roller is the subset of dice.Roller used by the resolver.
type Roller interface {
	Intn(n int) int
	Roll(expr dice.Expression) (dice.RollResult, error)
}

// Strike describes one attack about to be resolved.
type Strike struct {
	AttackerID string
	TargetID   string
	// Level is the attacker's level, feeding the proficiency bonus.
	Level int
	// Accuracy is the attacker's accuracy stat score.
	Accuracy int
	// Defense is the target's defense score.
	Defense int
	// Damage is rolled once per strike.
	Damage dice.Expression
	// Bonus is the flat scaling bonus added to the damage roll.
	Bonus float64
	// AutoHit skips the attack roll and always lands as a Success.
	AutoHit bool
}

// AttackResult holds the outcome of a single strike.
type AttackResult struct {
	AttackerID  string
	TargetID    string
	AttackRoll  int
	AttackTotal int
	Outcome     Outcome
	// BaseDamage is the damage roll plus Bonus, rounded to the nearest whole point.
	BaseDamage float64
	DamageRoll []int
}

// EffectiveDamage returns the damage dealt after applying the outcome multiplier.
//
// Postcondition: Returns >= 0.
func (r AttackResult) EffectiveDamage() float64 {
	return math.Max(0, r.BaseDamage*r.Outcome.Multiplier())
}

// ResolveStrike rolls the attack and the damage for s.
// Attack roll: d20 + AbilityMod(Accuracy) + ProficiencyBonus(Level) vs Defense.
// Damage: s.Damage + s.Bonus, floored at zero.
//
// Precondition: s.Damage must come from dice.Parse; r must be non-nil.
// Postcondition: Returns a fully populated AttackResult or a roll error.
func ResolveStrike(s Strike, r Roller) (AttackResult, error) {
	res := AttackResult{AttackerID: s.AttackerID, TargetID: s.TargetID, Outcome: Success}
	if !s.AutoHit {
		res.AttackRoll = r.Intn(20) + 1
		res.AttackTotal = res.AttackRoll + AbilityMod(s.Accuracy) + ProficiencyBonus(s.Level)
		res.Outcome = OutcomeFor(res.AttackTotal, s.Defense)
	}

	roll, err := r.Roll(s.Damage)
	if err != nil {
		return AttackResult{}, fmt.Errorf("rolling damage %q: %w", s.Damage.Raw, err)
	}
	res.DamageRoll = roll.Dice
	res.BaseDamage = math.Max(0, math.Round(float64(roll.Total())+s.Bonus))
	return res, nil
}
