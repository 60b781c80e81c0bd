package game

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms/structs"
)

var (
	ErrActorNotFound   = errors.New("actor not found")
	ErrHandlerNotFound = errors.New("handler not found")
)

// Payload carries the parsed arguments of one dispatched command.
type Payload map[string]any

func (p Payload) Args() []string {
	if p == nil {
		return nil
	}
	args, _ := p["args"].([]string)
	return args
}

func (p Payload) Text() string {
	if p == nil {
		return ""
	}
	if text, found := p["text"].(string); found {
		return text
	}
	return strings.Join(p.Args(), " ")
}

func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

func (p Payload) Bool(key string) bool {
	if p == nil {
		return false
	}
	b, _ := p[key].(bool)
	return b
}

// Context is handed to command handlers. It pins the resolved actor
// and the connection the command arrived on, so success and error
// events land on the issuing session.
type Context struct {
	Ctx          context.Context
	Game         *Game
	Actor        structs.Actor
	Command      string
	Payload      Payload
	ConnectionID string
}

func (c *Context) Publish(event *structs.GameEvent) {
	c.Game.Publish(c.Ctx, event)
}

func (c *Context) PublishResult(result *structs.ActionResult) {
	if result == nil {
		return
	}
	for _, event := range result.Events {
		c.Publish(event)
	}
}

func (c *Context) PublishSuccess(data map[string]any, text string) {
	event := structs.NewEvent(fmt.Sprintf("%s.success", c.Command), c.Actor.ActorKey())
	event.ConnectionID = c.ConnectionID
	event.Data = data
	event.Text = text
	c.Publish(event)
}

func (c *Context) PublishError(message string, data map[string]any) {
	event := structs.NewEvent(fmt.Sprintf("%s.error", c.Command), c.Actor.ActorKey())
	event.ConnectionID = c.ConnectionID
	event.Data = data
	event.Text = message
	c.Publish(event)
}

// Dispatch resolves the actor and handler for one command and runs
// it. Unknown actors and handlers are returned as typed errors, a
// handler that rejects the actor kind only yields an error event.
func (g *Game) Dispatch(ctx context.Context, commandType string, kind structs.ActorKind, actorKey string, payload Payload, connectionID string) error {
	actor, err := g.storage.GetActor(ctx, kind, actorKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(ErrActorNotFound, "%s %q", kind, actorKey)
		}
		return errors.WithStack(err)
	}
	cmd, found := g.registry.Get(commandType)
	if !found {
		return errors.Wrapf(ErrHandlerNotFound, "command %q", commandType)
	}
	ec := &Context{
		Ctx:          ctx,
		Game:         g,
		Actor:        actor,
		Command:      commandType,
		Payload:      payload,
		ConnectionID: connectionID,
	}
	if !cmd.allowsKind(kind) {
		ec.PublishError(fmt.Sprintf("A %s cannot do that.", kind), map[string]any{"code": "unsupported_kind"})
		return nil
	}
	if cmd.BuilderOnly && !isBuilder(actor) {
		ec.PublishError("Only builders can do that.", map[string]any{"code": "builder_only"})
		return nil
	}
	if err := cmd.Run(ec); err != nil {
		cmdErr := &structs.CommandError{}
		if errors.As(err, &cmdErr) {
			ec.PublishError(cmdErr.Message, errorData(cmdErr))
			return nil
		}
		return errors.WithStack(err)
	}
	return nil
}

func errorData(cmdErr *structs.CommandError) map[string]any {
	data := map[string]any{}
	for key, value := range cmdErr.Data {
		data[key] = value
	}
	if cmdErr.Code != "" {
		data["code"] = cmdErr.Code
	}
	return data
}

func isBuilder(actor structs.Actor) bool {
	player, ok := actor.(*structs.Player)
	return ok && player.Builder
}

// LineOptions adjust how a raw input line is dispatched.
// TriggerOriginated marks lines emitted by trigger scripts, which
// disables the trigger fallback so scripts cannot recurse into
// themselves.
type LineOptions struct {
	TriggerOriginated bool
	SkipTriggers      bool
	IssuerScope       string
}

// DispatchLine parses one line of input and routes it. Lines starting
// with "/" name a command type directly, anything else goes through
// alias resolution and, failing that, the trigger fallback. A "--"
// token splits arguments from free text, which is kept verbatim.
func (g *Game) DispatchLine(ctx context.Context, kind structs.ActorKind, actorKey string, line string, connectionID string, opts LineOptions) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	head, text := splitText(line)
	tokens, err := shellwords.Split(head)
	if err != nil {
		tokens = strings.Fields(head)
	}
	if len(tokens) == 0 {
		return nil
	}
	payload := Payload{}
	if opts.TriggerOriginated {
		payload["triggerSource"] = true
	}
	if opts.SkipTriggers {
		payload["skipTriggers"] = true
	}
	if opts.IssuerScope != "" {
		payload["issuerScope"] = opts.IssuerScope
	}
	if text != "" {
		payload["text"] = text
	}

	if strings.HasPrefix(tokens[0], "/") {
		commandType := strings.TrimPrefix(tokens[0], "/")
		payload["args"] = tokens[1:]
		return g.Dispatch(ctx, commandType, kind, actorKey, payload, connectionID)
	}

	if cmd, alias, found := g.registry.Resolve(tokens[0]); found {
		payload["args"] = tokens[1:]
		payload["matched"] = alias
		if text == "" && len(tokens) > 1 {
			payload["text"] = strings.Join(tokens[1:], " ")
		}
		return g.Dispatch(ctx, cmd.Type, kind, actorKey, payload, connectionID)
	}

	if opts.TriggerOriginated || opts.SkipTriggers {
		return errors.Wrapf(ErrHandlerNotFound, "command %q", tokens[0])
	}
	handled, err := g.triggers.ExecuteFallback(ctx, kind, actorKey, line, connectionID)
	if err != nil {
		return errors.WithStack(err)
	}
	if !handled {
		event := structs.NewEvent("system.error", actorKey)
		event.ConnectionID = connectionID
		event.Text = fmt.Sprintf("Unknown command: %q", tokens[0])
		event.Data = map[string]any{"code": "unknown_command"}
		g.Publish(ctx, event)
	}
	return nil
}

// splitText cuts the line at the first standalone "--" token and
// returns the head and the verbatim remainder.
func splitText(line string) (string, string) {
	if strings.HasPrefix(line, "-- ") {
		return "", strings.TrimSpace(line[3:])
	}
	if idx := strings.Index(line, " -- "); idx >= 0 {
		return line[:idx], strings.TrimSpace(line[idx+4:])
	}
	if strings.HasSuffix(line, " --") {
		return strings.TrimSuffix(line, " --"), ""
	}
	return line, ""
}
