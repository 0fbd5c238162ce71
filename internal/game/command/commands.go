// Package command provides the command registry, parser, and the text
// handlers for the ability command surface.
package command

// Categories for organizing commands.
const (
	CategoryAbility = "ability"
	CategorySystem  = "system"
)

// Handler identifiers mapping commands to AbilityHandler operations.
const (
	HandlerPerform   = "perform"
	HandlerAbilities = "abilities"
	HandlerEquip     = "equip"
	HandlerUnequip   = "unequip"
	HandlerLoadout   = "loadout"
	HandlerStatus    = "status"
	HandlerHelp      = "help"
	HandlerQuit      = "quit"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed to players.
	Help string
	// Category groups the command.
	Category string
	// Handler names the operation that serves the command.
	Handler string
}

// BuiltinCommands returns all built-in commands.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "perform", Aliases: []string{"use", "cast"}, Help: "Perform an action (perform <action> [on <target>])", Category: CategoryAbility, Handler: HandlerPerform},
		{Name: "abilities", Aliases: []string{"ab"}, Help: "List your actions with cooldowns and costs", Category: CategoryAbility, Handler: HandlerAbilities},
		{Name: "equip", Aliases: []string{"eq"}, Help: "Place an action in a slot (equip <action> <slot>)", Category: CategoryAbility, Handler: HandlerEquip},
		{Name: "unequip", Aliases: []string{"ueq"}, Help: "Empty a slot (unequip <slot>)", Category: CategoryAbility, Handler: HandlerUnequip},
		{Name: "loadout", Aliases: []string{"lo"}, Help: "Show your action slots", Category: CategoryAbility, Handler: HandlerLoadout},
		{Name: "status", Aliases: []string{"st"}, Help: "Show your resources and conditions", Category: CategoryAbility, Handler: HandlerStatus},

		{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit"}, Help: "Disconnect", Category: CategorySystem, Handler: HandlerQuit},
	}
}
