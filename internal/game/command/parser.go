package command

import (
	"errors"
	"strings"
)

// ErrNoAction is returned by ParsePerform when no action was named.
var ErrNoAction = errors.New("perform what?")

// targetWords separate the action from the target hint.
var targetWords = map[string]bool{"on": true, "at": true, "to": true}

// Input is one line of player input split into a command word and its
// arguments.
type Input struct {
	// Command is the first word, lowercased.
	Command string
	// RawArgs is the text after the command word, trimmed.
	RawArgs string
}

// Parse splits a text line into a command word and its arguments.
//
// Postcondition: Command is empty iff line is blank.
func Parse(line string) Input {
	line = strings.TrimSpace(line)
	if line == "" {
		return Input{}
	}
	cmd, rest, _ := strings.Cut(line, " ")
	return Input{Command: strings.ToLower(cmd), RawArgs: strings.TrimSpace(rest)}
}

// Args returns the whitespace-separated arguments, or nil when there are none.
func (in Input) Args() []string {
	if in.RawArgs == "" {
		return nil
	}
	return strings.Fields(in.RawArgs)
}

// ParsePerform splits the arguments of a perform command into an action ID
// and a target hint. "power-strike on goblin", "power-strike goblin", and
// "power-strike" are all accepted; the action ID is lowercased, the hint is
// kept as typed.
//
// Postcondition: action is non-empty unless err is ErrNoAction.
func ParsePerform(rawArgs string) (action, hint string, err error) {
	fields := strings.Fields(rawArgs)
	if len(fields) == 0 {
		return "", "", ErrNoAction
	}
	action = strings.ToLower(fields[0])
	rest := fields[1:]
	if len(rest) > 0 && targetWords[strings.ToLower(rest[0])] {
		rest = rest[1:]
	}
	return action, strings.Join(rest, " "), nil
}
