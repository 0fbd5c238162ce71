// Package dice provides the randomness abstraction and roll-result types used
// by effect routines when they compute damage and healing.
package dice

import (
	"fmt"
	"strings"
)

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult is one evaluated expression: every die face and the modifier.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of the dice plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll for logs and effect summaries, e.g. "2d6+3: 4+5+3 = 12".
func (r RollResult) String() string {
	parts := make([]string, 0, len(r.Dice)+1)
	for _, d := range r.Dice {
		parts = append(parts, fmt.Sprint(d))
	}
	sum := strings.Join(parts, "+")
	switch {
	case r.Modifier > 0:
		sum += fmt.Sprintf("+%d", r.Modifier)
	case r.Modifier < 0:
		sum += fmt.Sprintf("%d", r.Modifier)
	}
	if r.Expression == "" {
		return fmt.Sprintf("%s = %d", sum, r.Total())
	}
	return fmt.Sprintf("%s: %s = %d", r.Expression, sum, r.Total())
}
