// Package command implements the in-proxy slash-command machinery: explicit
// parameter schemas, argument validation and the user-facing error channel.
package command

import (
	"fmt"
	"strings"
)

// Error is a command failure with a message meant for the player's chat box.
// It is recovered by the dispatcher, never propagated out of the session.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds a chat-facing command error.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Parameter describes one positional parameter of a command.
type Parameter struct {
	Name     string
	Required bool
	Default  string   // substituted when the argument is absent
	Options  []string // when set, the argument must equal one (case-insensitive)
	Variadic bool     // collects the remaining arguments; must be last
}

// Spec is a command's name, aliases and fixed parameter schema.
type Spec struct {
	Name    string
	Aliases []string
	Params  []Parameter
}

// ResolveArgs validates args against the schema and returns them with
// defaults substituted for absent optional parameters. invokedAs is the
// literal first token the player typed, used in error messages.
func (s *Spec) ResolveArgs(invokedAs string, args []string) ([]string, error) {
	var required int
	variadic := false
	for _, p := range s.Params {
		if p.Required {
			required++
		}
		if p.Variadic {
			variadic = true
		}
	}

	if len(s.Params) == 0 && len(args) > 0 {
		return nil, Errorf("§9§l∎ §4Command <%s> takes no arguments!", invokedAs)
	}
	if len(args) > len(s.Params) && !variadic {
		return nil, Errorf("§9§l∎ §4Command <%s> takes at most %d argument(s)!",
			invokedAs, len(s.Params))
	}
	if len(args) < required {
		names := make([]string, 0, required)
		for _, p := range s.Params {
			if p.Required {
				names = append(names, p.Name)
			}
		}
		return nil, Errorf("§9§l∎ §4Command <%s> needs at least %d argument(s)! (%s)",
			invokedAs, required, strings.Join(names, ", "))
	}

	for i, p := range s.Params {
		if len(p.Options) == 0 || i >= len(args) {
			continue
		}
		if !containsFold(p.Options, args[i]) {
			return nil, Errorf("§9§l∎ §4Invalid option '%s'. Please choose a correct argument! (%s)",
				args[i], strings.Join(p.Options, ", "))
		}
	}

	resolved := append([]string(nil), args...)
	for i := len(args); i < len(s.Params); i++ {
		if p := s.Params[i]; !p.Variadic && p.Default != "" {
			resolved = append(resolved, p.Default)
		}
	}
	return resolved, nil
}

func containsFold(options []string, arg string) bool {
	for _, opt := range options {
		if strings.EqualFold(opt, arg) {
			return true
		}
	}
	return false
}

// Names returns the canonical name plus all aliases.
func (s *Spec) Names() []string {
	return append([]string{s.Name}, s.Aliases...)
}
