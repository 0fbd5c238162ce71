package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxDice bounds the die count of one expression.
const MaxDice = 100

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:([+-])(\d+))?$`)

// Expression is a parsed "NdS+M" roll.
//
// Invariant: 1 <= Count <= MaxDice; Sides >= 2.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// Parse reads "d20", "2d6", "2d6+3", or "4d8-2". Case and surrounding space
// are ignored.
//
// Postcondition: Returns an Expression satisfying its invariant, or an error
// naming the offending input.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", expr)
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	if count < 1 || count > MaxDice {
		return Expression{}, fmt.Errorf("dice: die count in %q must be 1-%d", expr, MaxDice)
	}
	sides, _ := strconv.Atoi(m[2])
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: %q needs at least 2 sides", expr)
	}
	mod := 0
	if m[4] != "" {
		mod, _ = strconv.Atoi(m[4])
		if m[3] == "-" {
			mod = -mod
		}
	}
	return Expression{Raw: s, Count: count, Sides: sides, Modifier: mod}, nil
}

// MustParse is Parse for expressions known at compile time. It panics on error.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// Min returns the lowest total the expression can roll.
func (e Expression) Min() int { return e.Count + e.Modifier }

// Max returns the highest total the expression can roll.
func (e Expression) Max() int { return e.Count*e.Sides + e.Modifier }

// String returns the canonical form, e.g. "2d6+3".
func (e Expression) String() string {
	switch {
	case e.Modifier > 0:
		return fmt.Sprintf("%dd%d+%d", e.Count, e.Sides, e.Modifier)
	case e.Modifier < 0:
		return fmt.Sprintf("%dd%d%d", e.Count, e.Sides, e.Modifier)
	}
	return fmt.Sprintf("%dd%d", e.Count, e.Sides)
}
