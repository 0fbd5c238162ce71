package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestColorize(t *testing.T) {
	assert.Equal(t, "\033[31mdanger\033[0m", Colorize(Red, "danger"))
	assert.Equal(t, "plain", Colorize("", "plain"))
}

func TestStripANSI(t *testing.T) {
	input := "\033[31mred\033[0m normal \033[1m\033[32mbold green\033[0m"
	assert.Equal(t, "red normal bold green", StripANSI(input))
	assert.Equal(t, "", StripANSI(""))
	assert.Equal(t, "unterminated \033[31", StripANSI("unterminated \033[31"))
}

func TestPropertyStripANSIInversesColorize(t *testing.T) {
	styles := []string{Red, Green, Blue, Yellow, Cyan, White, Bold, Dim}
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 ]{0,50}`).Draw(t, "text")
		style := rapid.SampledFrom(styles).Draw(t, "style")
		assert.Equal(t, text, StripANSI(Colorize(style, text)))
	})
}

func TestPropertyStripANSINeverGrows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		assert.LessOrEqual(t, len(StripANSI(text)), len(text))
	})
}
