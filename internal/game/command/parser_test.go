package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/actioncore/internal/game/command"
)

func TestParse_Empty(t *testing.T) {
	in := command.Parse("   ")
	assert.Equal(t, "", in.Command)
	assert.Nil(t, in.Args())
}

func TestParse_SingleWord(t *testing.T) {
	in := command.Parse("LOADOUT")
	assert.Equal(t, "loadout", in.Command)
	assert.Equal(t, "", in.RawArgs)
}

func TestParse_ExtraWhitespace(t *testing.T) {
	in := command.Parse("  perform   fireball   on goblin  ")
	assert.Equal(t, "perform", in.Command)
	assert.Equal(t, "fireball   on goblin", in.RawArgs)
	assert.Equal(t, []string{"fireball", "on", "goblin"}, in.Args())
}

func TestParsePerform(t *testing.T) {
	tests := []struct {
		raw, action, hint string
	}{
		{"Power-Strike on Goblin", "power-strike", "Goblin"},
		{"heal at old man", "heal", "old man"},
		{"mend to ally", "mend", "ally"},
		{"power-strike goblin", "power-strike", "goblin"},
		{"second-wind", "second-wind", ""},
	}
	for _, tt := range tests {
		action, hint, err := command.ParsePerform(tt.raw)
		assert.NoError(t, err, tt.raw)
		assert.Equal(t, tt.action, action, tt.raw)
		assert.Equal(t, tt.hint, hint, tt.raw)
	}
}

func TestParsePerform_NoAction(t *testing.T) {
	_, _, err := command.ParsePerform("  ")
	assert.ErrorIs(t, err, command.ErrNoAction)
}

func TestPropertyParseAlwaysLowercasesCommand(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[A-Za-z]{1,20}`).Draw(t, "word")
		in := command.Parse(word + " Rest")
		for _, c := range in.Command {
			if c >= 'A' && c <= 'Z' {
				t.Fatalf("command %q contains uppercase char in %q", word, in.Command)
			}
		}
		if in.RawArgs != "Rest" {
			t.Fatalf("raw args %q lost case", in.RawArgs)
		}
	})
}

func TestPropertyParsePerformActionNonEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 5).Draw(t, "words")
		raw := ""
		for _, w := range words {
			raw += " " + w
		}
		action, _, err := command.ParsePerform(raw)
		if err != nil || action != words[0] {
			t.Fatalf("ParsePerform(%q) = %q, %v", raw, action, err)
		}
	})
}
