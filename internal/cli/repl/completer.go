package repl

import (
	"sort"
	"strings"
)

// Builtins are handled by the loop itself.
var Builtins = []string{"exit", "quit", "history"}

// Completer suggests commands by prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer for the given command paths, such as
// "session verify". Builtins are always included.
func NewCompleter(commands ...string) *Completer {
	seen := make(map[string]bool)
	var all []string
	for _, cmd := range append(append([]string{}, Builtins...), commands...) {
		cmd = strings.Join(strings.Fields(cmd), " ")
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		all = append(all, cmd)
	}
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns the commands starting with prefix, in order.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.TrimLeft(prefix, " ")
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is the first word of a command. Flags and
// every name of a completer without commands are accepted.
func (c *Completer) Known(name string) bool {
	if strings.HasPrefix(name, "-") || len(c.commands) == len(Builtins) {
		return true
	}
	for _, cmd := range c.commands {
		first, _, _ := strings.Cut(cmd, " ")
		if first == name {
			return true
		}
	}
	return false
}
