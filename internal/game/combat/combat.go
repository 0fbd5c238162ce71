// Package combat holds the attack-roll and damage math used by strike effect
// routines. It is one exchangeable formula; effect routines that do not roll
// attacks never touch it.
package combat

// Outcome is the 4-tier attack result.
type Outcome int

const (
	CritSuccess Outcome = iota
	Success
	Failure
	CritFailure
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case CritSuccess:
		return "critical success"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case CritFailure:
		return "critical failure"
	default:
		return "unknown"
	}
}

// Multiplier returns the damage multiplier for the outcome.
//
// Postcondition: Returns 2 for CritSuccess, 1 for Success, 0 otherwise.
func (o Outcome) Multiplier() float64 {
	switch o {
	case CritSuccess:
		return 2
	case Success:
		return 1
	default:
		return 0
	}
}

// OutcomeFor determines the 4-tier attack outcome for a given roll vs defense.
// Precondition: roll >= 1.
// Postcondition: Returns one of CritSuccess, Success, Failure, CritFailure.
func OutcomeFor(roll, defense int) Outcome {
	switch {
	case roll >= defense+10:
		return CritSuccess
	case roll >= defense:
		return Success
	case roll >= defense-10:
		return Failure
	default:
		return CritFailure
	}
}

// ProficiencyBonus returns the simplified proficiency bonus for the given level.
// Formula: 2 + (level-1)/4, minimum 2.
// Precondition: level >= 1.
// Postcondition: Returns >= 2.
func ProficiencyBonus(level int) int {
	if level < 1 {
		level = 1
	}
	return 2 + (level-1)/4
}

// AbilityMod computes the standard ability modifier using floor division: floor((score - 10) / 2).
// Postcondition: Returns floor((score - 10) / 2).
func AbilityMod(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}
