package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/actioncore/internal/game/dice"
)

func TestParse(t *testing.T) {
	cases := map[string]dice.Expression{
		"d20":     {Raw: "d20", Count: 1, Sides: 20},
		"2d6":     {Raw: "2d6", Count: 2, Sides: 6},
		" 2D6+3 ": {Raw: "2d6+3", Count: 2, Sides: 6, Modifier: 3},
		"4d8-2":   {Raw: "4d8-2", Count: 4, Sides: 8, Modifier: -2},
		"100d2+0": {Raw: "100d2+0", Count: 100, Sides: 2},
	}
	for in, want := range cases {
		got, err := dice.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "d", "2d", "d1", "0d6", "101d6", "2d6+", "2x6", "2d6+1d4", "-1d6", "4d6kh3"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("nope") })
	assert.NotPanics(t, func() { dice.MustParse("1d4") })
}

func TestExpressionBoundsAndString(t *testing.T) {
	e := dice.MustParse("3d6-2")
	assert.Equal(t, 1, e.Min())
	assert.Equal(t, 16, e.Max())
	assert.Equal(t, "3d6-2", e.String())
	assert.Equal(t, "1d20", dice.MustParse("d20").String())
}

func TestRollResultString(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
	assert.Equal(t, "2d6+3: 4+5+3 = 12", r.String())
	assert.Equal(t, "1-1 = 0", dice.RollResult{Dice: []int{1}, Modifier: -1}.String())
}

func TestPropertyRollWithinBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := dice.Expression{
			Count:    rapid.IntRange(1, dice.MaxDice).Draw(rt, "count"),
			Sides:    rapid.IntRange(2, 100).Draw(rt, "sides"),
			Modifier: rapid.IntRange(-50, 50).Draw(rt, "modifier"),
		}
		res := dice.Roll(e, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")))
		if len(res.Dice) != e.Count {
			rt.Fatalf("rolled %d dice, want %d", len(res.Dice), e.Count)
		}
		if total := res.Total(); total < e.Min() || total > e.Max() {
			rt.Fatalf("total %d outside [%d, %d]", total, e.Min(), e.Max())
		}
	})
}

// Canonical strings parse back to the same expression.
func TestPropertyStringParsesBack(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := dice.Expression{
			Count:    rapid.IntRange(1, dice.MaxDice).Draw(rt, "count"),
			Sides:    rapid.IntRange(2, 1000).Draw(rt, "sides"),
			Modifier: rapid.IntRange(-99, 99).Draw(rt, "modifier"),
		}
		got, err := dice.Parse(e.String())
		if err != nil {
			rt.Fatalf("Parse(%q): %v", e.String(), err)
		}
		e.Raw = e.String()
		if got != e {
			rt.Fatalf("got %+v, want %+v", got, e)
		}
	})
}

func TestCryptoSource_Intn(t *testing.T) {
	src := dice.NewCryptoSource()
	for range 1000 {
		v := src.Intn(6)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 6)
	}
	assert.Panics(t, func() { src.Intn(0) })
}
