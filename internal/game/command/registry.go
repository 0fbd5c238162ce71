package command

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves typed words to Commands. Names and aliases share one
// lowercase namespace.
type Registry struct {
	byWord map[string]*Command
	sorted []*Command
}

// NewRegistry indexes cmds by name and alias.
//
// Precondition: every command has a Name and a Handler.
// Postcondition: Returns an error when any word is claimed twice.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{byWord: make(map[string]*Command, len(cmds)*2)}
	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Name == "" || cmd.Handler == "" {
			return nil, fmt.Errorf("command %d: name and handler are required", i)
		}
		words := append([]string{cmd.Name}, cmd.Aliases...)
		for _, w := range words {
			w = strings.ToLower(w)
			if owner, taken := r.byWord[w]; taken {
				return nil, fmt.Errorf("%q claimed by both %q and %q", w, owner.Name, cmd.Name)
			}
			r.byWord[w] = cmd
		}
		r.sorted = append(r.sorted, cmd)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Name < r.sorted[j].Name })
	return r, nil
}

// DefaultRegistry indexes BuiltinCommands. It panics if they collide.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve finds the command for a name or alias, ignoring case.
func (r *Registry) Resolve(word string) (*Command, bool) {
	cmd, ok := r.byWord[strings.ToLower(word)]
	return cmd, ok
}

// Commands returns every command ordered by name.
func (r *Registry) Commands() []*Command {
	return append([]*Command(nil), r.sorted...)
}

// CommandsByCategory groups Commands by Category, keeping name order.
func (r *Registry) CommandsByCategory() map[string][]*Command {
	out := make(map[string][]*Command)
	for _, cmd := range r.sorted {
		out[cmd.Category] = append(out[cmd.Category], cmd)
	}
	return out
}

// HelpText lists every command under a heading per category.
func (r *Registry) HelpText() string {
	groups := r.CommandsByCategory()
	cats := make([]string, 0, len(groups))
	for c := range groups {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var b strings.Builder
	for i, c := range cats {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s commands:\n", strings.ToUpper(c[:1])+c[1:])
		for _, cmd := range groups[c] {
			label := cmd.Name
			if len(cmd.Aliases) > 0 {
				label += " (" + strings.Join(cmd.Aliases, ", ") + ")"
			}
			fmt.Fprintf(&b, "  %-22s %s\n", label, cmd.Help)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
