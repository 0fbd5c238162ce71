// Package telnet serves the play console: a plain telnet listener whose
// sessions issue commands and read colored notifications.
package telnet

import "strings"

// ANSI styles used by the console renderer.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
)

// Colorize wraps text in style and a trailing Reset. An empty style returns
// text unchanged.
func Colorize(style, text string) string {
	if style == "" {
		return text
	}
	return style + text + Reset
}

// StripANSI removes SGR escape sequences (ESC [ ... m) from s.
func StripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			if end := strings.IndexByte(s[i+2:], 'm'); end >= 0 {
				i += end + 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
