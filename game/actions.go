package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms/lang"
	"github.com/writtenrealms/writtenrealms/structs"
)

// sayMaxRunes bounds the length of spoken text. Longer input is
// truncated, not rejected.
const sayMaxRunes = 2000

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func isMuted(actor structs.Actor) bool {
	player, isPlayer := actor.(*structs.Player)
	return isPlayer && player.Muted
}

// speechRecipients returns who hears the actor besides itself.
func (g *Game) speechRecipients(ctx context.Context, actor structs.Actor, scope structs.TriggerScope) ([]string, error) {
	switch scope {
	case structs.ScopeZone:
		return g.storage.ZoneActorKeys(ctx, actor.Zone(), actor.ActorKey())
	default:
		return g.storage.RoomActorKeys(ctx, actor.Room(), actor.ActorKey())
	}
}

// speak implements say and yell, which differ only in reach and verb.
func (g *Game) speak(ec *Context, scope structs.TriggerScope, verb string) error {
	text := strings.TrimSpace(ec.Payload.Text())
	if text == "" {
		return structs.NewCommandError("empty_text", "%s what?", lang.Capitalize(verb))
	}
	if isMuted(ec.Actor) {
		return structs.NewCommandError("muted", "You are muted.")
	}
	text = truncateRunes(text, sayMaxRunes)
	audience, err := g.speechRecipients(ec.Ctx, ec.Actor, scope)
	if err != nil {
		return errors.WithStack(err)
	}
	result := &structs.ActionResult{}
	success := structs.NewEvent(fmt.Sprintf("%s.success", ec.Command), ec.Actor.ActorKey())
	success.ConnectionID = ec.ConnectionID
	success.Data["text"] = text
	success.Text = fmt.Sprintf("You %s, %q", verb, text)
	result.Add(success)
	if len(audience) > 0 {
		heard := structs.NewEvent(fmt.Sprintf("%s.message", ec.Command), audience...)
		heard.Data["speaker"] = ec.Actor.ActorName()
		heard.Data["text"] = text
		heard.Text = fmt.Sprintf("%s %s, %q", ec.Actor.ActorName(), lang.ThirdPersonSingular(verb), text)
		result.Add(heard)
	}
	ec.PublishResult(result)
	return nil
}

func (g *Game) actionSay(ec *Context) error {
	return g.speak(ec, structs.ScopeRoom, "say")
}

func (g *Game) actionYell(ec *Context) error {
	return g.speak(ec, structs.ScopeZone, "yell")
}

func (g *Game) actionEmote(ec *Context) error {
	text := strings.TrimSpace(ec.Payload.Text())
	if text == "" {
		return structs.NewCommandError("empty_text", "Emote what?")
	}
	if isMuted(ec.Actor) {
		return structs.NewCommandError("muted", "You are muted.")
	}
	text = truncateRunes(text, sayMaxRunes)
	audience, err := g.speechRecipients(ec.Ctx, ec.Actor, structs.ScopeRoom)
	if err != nil {
		return errors.WithStack(err)
	}
	line := fmt.Sprintf("%s %s", ec.Actor.ActorName(), text)
	result := &structs.ActionResult{}
	success := structs.NewEvent("emote.success", ec.Actor.ActorKey())
	success.ConnectionID = ec.ConnectionID
	success.Text = line
	result.Add(success)
	if len(audience) > 0 {
		seen := structs.NewEvent("emote.message", audience...)
		seen.Data["actor"] = ec.Actor.ActorName()
		seen.Text = line
		result.Add(seen)
	}
	ec.PublishResult(result)
	return nil
}

// actionEcho sends text straight back to the issuer, or to the whole
// room with --room. Trigger scripts use it to narrate their effects.
func (g *Game) actionEcho(ec *Context) error {
	text := strings.TrimSpace(ec.Payload.Text())
	if text == "" {
		return structs.NewCommandError("empty_text", "Echo what?")
	}
	result := &structs.ActionResult{}
	success := structs.NewEvent("echo.success", ec.Actor.ActorKey())
	success.ConnectionID = ec.ConnectionID
	success.Data["text"] = text
	success.Text = text
	result.Add(success)
	toRoom := ec.Payload.Bool("room")
	for _, arg := range ec.Payload.Args() {
		if arg == "--room" {
			toRoom = true
		}
	}
	if toRoom {
		audience, err := g.speechRecipients(ec.Ctx, ec.Actor, structs.ScopeRoom)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(audience) > 0 {
			seen := structs.NewEvent("echo.message", audience...)
			seen.Data["text"] = text
			seen.Text = text
			result.Add(seen)
		}
	}
	ec.PublishResult(result)
	return nil
}

// actionLook describes the actor's room: its name, who else stands
// there, and the advertised trigger actions.
func (g *Game) actionLook(ec *Context) error {
	room, err := g.storage.GetRoom(ec.Ctx, ec.Actor.Room())
	if err != nil {
		return errors.WithStack(err)
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\n", lang.Capitalize(room.Name))
	others, err := g.storage.RoomActorKeys(ec.Ctx, room.Id, ec.Actor.ActorKey())
	if err != nil {
		return errors.WithStack(err)
	}
	names := []string{}
	for _, key := range others {
		other, err := g.storage.GetActor(ec.Ctx, structs.KindPlayer, key)
		if err != nil {
			if other, err = g.storage.GetActor(ec.Ctx, structs.KindMob, key); err != nil {
				continue
			}
		}
		if other.Invisible() {
			continue
		}
		names = append(names, other.ActorName())
	}
	if len(names) > 0 {
		fmt.Fprintf(&buf, "%s here.\n", lang.Enumerator{Tense: lang.Present}.Do(names...))
	}
	labels, err := g.triggers.ActionLabels(ec.Ctx, ec.Actor)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(labels) > 0 {
		fmt.Fprintf(&buf, "You could: %s.\n", lang.Enumerator{}.Do(labels...))
	}
	ec.PublishSuccess(map[string]any{
		"room":    room.Id,
		"actors":  names,
		"actions": labels,
	}, strings.TrimRight(buf.String(), "\n"))
	return nil
}
