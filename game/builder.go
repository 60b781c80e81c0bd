package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/writtenrealms/writtenrealms/lang"
	"github.com/writtenrealms/writtenrealms/structs"
)

// actionForce dispatches a command line as another actor:
// /force <kind> <key> -- <line>
func (g *Game) actionForce(ec *Context) error {
	args := ec.Payload.Args()
	if len(args) < 2 {
		return structs.NewCommandError("usage", "Usage: /force <kind> <key> -- <command>")
	}
	line := ec.Payload.String("text")
	if line == "" {
		return structs.NewCommandError("usage", "Usage: /force <kind> <key> -- <command>")
	}
	kind := structs.ActorKind(args[0])
	if kind != structs.KindPlayer && kind != structs.KindMob {
		return structs.NewCommandError("invalid_kind", "Unknown actor kind %q.", args[0])
	}
	err := g.DispatchLine(ec.Ctx, kind, args[1], line, "", LineOptions{IssuerScope: "builder"})
	if err != nil {
		if errors.Is(err, ErrActorNotFound) {
			return structs.NewCommandError("actor_not_found", "No %s named %q.", kind, args[1])
		}
		if errors.Is(err, ErrHandlerNotFound) {
			return structs.NewCommandError("handler_not_found", "No such command in %q.", line)
		}
		return errors.WithStack(err)
	}
	ec.PublishSuccess(map[string]any{"kind": string(kind), "key": args[1]},
		fmt.Sprintf("Forced %s %s.", kind, args[1]))
	return nil
}

// actionLoad spawns an item or mob instance from a template into the
// builder's room: /load <item|mob> <templateID>
func (g *Game) actionLoad(ec *Context) error {
	args := ec.Payload.Args()
	if len(args) < 2 {
		return structs.NewCommandError("usage", "Usage: /load <item|mob> <template>")
	}
	templateID := args[1]
	roomID := ec.Actor.Room()
	name := ""
	switch args[0] {
	case "item":
		template, err := g.storage.GetItem(ec.Ctx, templateID)
		if err != nil {
			return structs.NewCommandError("template_not_found", "No item template %q.", templateID)
		}
		instance := *template
		instance.Id = uuid.NewString()
		instance.RoomID = roomID
		instance.TemplateID = template.Id
		instance.CreatedAt = structs.Now()
		if err := g.storage.SetItem(ec.Ctx, &instance); err != nil {
			return errors.WithStack(err)
		}
		name = instance.Name
	case "mob":
		template, err := g.storage.GetActor(ec.Ctx, structs.KindMob, templateID)
		if err != nil {
			return structs.NewCommandError("template_not_found", "No mob template %q.", templateID)
		}
		mob := *(template.(*structs.Mob))
		mob.Key = uuid.NewString()
		mob.RoomID = roomID
		mob.ZoneID = ec.Actor.Zone()
		mob.TemplateID = templateID
		mob.CreatedAt = structs.Now()
		if err := g.storage.SetActor(ec.Ctx, &mob); err != nil {
			return errors.WithStack(err)
		}
		name = mob.Name
	default:
		return structs.NewCommandError("usage", "Usage: /load <item|mob> <template>")
	}
	ec.PublishSuccess(map[string]any{"template": templateID}, fmt.Sprintf("Loaded %s.", lang.Indef(name)))
	witnesses, err := g.storage.RoomActorKeys(ec.Ctx, roomID, ec.Actor.ActorKey())
	if err != nil {
		return errors.WithStack(err)
	}
	if len(witnesses) > 0 {
		appeared := structs.NewEvent("room.spawn", witnesses...)
		appeared.Data["name"] = name
		appeared.Text = fmt.Sprintf("%s appears.", lang.Capitalize(lang.Indef(name)))
		g.Publish(ec.Ctx, appeared)
	}
	return nil
}

// actionPurge removes every spawned instance from the builder's room.
func (g *Game) actionPurge(ec *Context) error {
	count, err := g.storage.PurgeSpawned(ec.Ctx, ec.Actor.Room())
	if err != nil {
		return errors.WithStack(err)
	}
	ec.PublishSuccess(map[string]any{"count": count},
		fmt.Sprintf("Purged %s.", lang.Card(count, "spawned entity")))
	return nil
}

// actionTriggers lists the triggers reachable from the builder's
// position, in resolution order.
func (g *Game) actionTriggers(ec *Context) error {
	candidates, err := g.triggers.Resolve(ec.Ctx, ec.Actor)
	if err != nil {
		return errors.WithStack(err)
	}
	buf := &strings.Builder{}
	tbl := table.New("Id", "Scope", "Target", "Actions", "Gate", "Order").WithWriter(buf)
	for _, trigger := range candidates {
		target := string(trigger.TargetType)
		if trigger.TargetID != "" {
			target = fmt.Sprintf("%s %s", trigger.TargetType, trigger.TargetID)
		}
		tbl.AddRow(trigger.Id, trigger.Scope, target, trigger.Actions, trigger.GateDelay, trigger.Ordering)
	}
	tbl.Print()
	ec.PublishSuccess(map[string]any{"count": len(candidates)}, strings.TrimRight(buf.String(), "\n"))
	return nil
}
