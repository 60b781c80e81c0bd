package game

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms/structs"
)

// Handler runs a single command on behalf of an actor. Returning a
// *structs.CommandError publishes a soft error event to the issuer;
// any other error propagates to the caller.
type Handler func(ctx *Context) error

// Command binds a command type to its handler and routing metadata.
// Aliases are matched by prefix in registration order, so commands
// registered earlier shadow later ones on ambiguous prefixes.
type Command struct {
	Type        string
	Aliases     []string
	Kinds       []structs.ActorKind
	BuilderOnly bool
	Run         Handler
}

func (c *Command) allowsKind(kind structs.ActorKind) bool {
	if len(c.Kinds) == 0 {
		return true
	}
	for _, k := range c.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Registry holds the command table for one game instance.
type Registry struct {
	byType  map[string]*Command
	ordered []*Command
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]*Command{}}
}

func (r *Registry) Register(cmd *Command) error {
	if cmd.Type == "" {
		return errors.New("command type is empty")
	}
	if _, found := r.byType[cmd.Type]; found {
		return errors.Errorf("command %q is already registered", cmd.Type)
	}
	r.byType[cmd.Type] = cmd
	r.ordered = append(r.ordered, cmd)
	return nil
}

func (r *Registry) Get(commandType string) (*Command, bool) {
	cmd, found := r.byType[commandType]
	return cmd, found
}

// Resolve scans aliases in registration order and returns the first
// alias starting with the given prefix, together with its command.
func (r *Registry) Resolve(prefix string) (*Command, string, bool) {
	if prefix == "" {
		return nil, "", false
	}
	prefix = strings.ToLower(prefix)
	for _, cmd := range r.ordered {
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(alias, prefix) {
				return cmd, alias, true
			}
		}
	}
	return nil, "", false
}
