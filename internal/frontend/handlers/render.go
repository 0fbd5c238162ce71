package handlers

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/actioncore/internal/frontend/telnet"
)

// RenderEvent formats a bridge event for the player self. It returns "" for
// events the command reply already covered: self's own performed and failed
// actions.
func RenderEvent(evt *structpb.Struct, self string, names func(id string) string) string {
	f := evt.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	num := func(k string) float64 { return f[k].GetNumberValue() }
	actor := str("entity_id")

	switch str("kind") {
	case "action_performed":
		if actor == self {
			return ""
		}
		var targets []string
		for _, v := range f["targets"].GetListValue().GetValues() {
			if id := v.GetStringValue(); id == self {
				targets = append(targets, "you")
			} else {
				targets = append(targets, names(id))
			}
		}
		line := fmt.Sprintf("%s uses %s", names(actor), str("action_id"))
		if len(targets) > 0 {
			line += " on " + strings.Join(targets, ", ")
		}
		if s := str("summary"); s != "" {
			line += ": " + s
		}
		return telnet.Colorize(telnet.Yellow, line)
	case "action_failed":
		if actor == self {
			return ""
		}
		msg := f["failure"].GetStructValue().GetFields()["message"].GetStringValue()
		return telnet.Colorize(telnet.Red, fmt.Sprintf("%s fails %s: %s", names(actor), str("action_id"), msg))
	case "resource_changed":
		return telnet.Colorize(telnet.Green, fmt.Sprintf("%s %s: %g/%g", str("resource"), bar(num("current"), num("max")), num("current"), num("max")))
	case "cooldown_started":
		return telnet.Colorize(telnet.Dim, fmt.Sprintf("%s recharging (%gs)", str("action_id"), num("duration_seconds")))
	case "shared_delay_started":
		return telnet.Colorize(telnet.Dim, fmt.Sprintf("%s actions delayed (%gs)", str("category"), num("duration_seconds")))
	case "entity_defeated":
		var by string
		if ts := f["targets"].GetListValue().GetValues(); len(ts) > 0 {
			by = ts[0].GetStringValue()
		}
		switch {
		case actor == self:
			return telnet.Colorize(telnet.Red, fmt.Sprintf("You are defeated by %s.", names(by)))
		case by == self:
			line := fmt.Sprintf("You defeat %s", names(actor))
			if xp := num("experience"); xp > 0 {
				line += fmt.Sprintf(" (+%g xp)", xp)
			}
			return telnet.Colorize(telnet.Yellow, line+".")
		default:
			return telnet.Colorize(telnet.Yellow, fmt.Sprintf("%s defeats %s.", names(by), names(actor)))
		}
	case "level_gained":
		if actor != self {
			return telnet.Colorize(telnet.Cyan, fmt.Sprintf("%s reaches level %g.", names(actor), num("level")))
		}
		line := fmt.Sprintf("You reach level %g", num("level"))
		var learned []string
		for _, v := range f["learned"].GetListValue().GetValues() {
			learned = append(learned, v.GetStringValue())
		}
		if len(learned) > 0 {
			line += "; learned " + strings.Join(learned, ", ")
		}
		if n := num("new_slots"); n > 0 {
			line += fmt.Sprintf("; +%g action slot(s)", n)
		}
		return telnet.Colorize(telnet.Bold, line+".")
	default:
		return telnet.Colorize(telnet.Cyan, fmt.Sprintf("[%s] %s", str("kind"), names(actor)))
	}
}

// bar draws a ten-cell gauge of current/limit.
func bar(current, limit float64) string {
	const cells = 10
	filled := 0
	if limit > 0 {
		filled = int(current * cells / limit)
	}
	filled = min(max(filled, 0), cells)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", cells-filled) + "]"
}
