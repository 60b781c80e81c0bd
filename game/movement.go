package game

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms/structs"
)

var directionAliases = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west", "u": "up", "d": "down",
	"north": "north", "south": "south", "east": "east", "west": "west", "up": "up", "down": "down",
}

var oppositeDirections = map[string]string{
	"north": "south", "south": "north", "east": "west", "west": "east", "up": "below", "down": "above",
}

// terrainCosts is the stamina price of leaving a room, by terrain.
var terrainCosts = map[string]int{
	"mountain": 3,
	"swamp":    2,
	"desert":   2,
}

const defaultMoveCost = 1

func moveCost(terrain string) int {
	if cost, found := terrainCosts[terrain]; found {
		return cost
	}
	return defaultMoveCost
}

// actionMove walks the actor through an exit. The direction comes
// from the matched alias ("north" for input "n") or the first
// argument of an explicit move command.
func (g *Game) actionMove(ec *Context) error {
	direction := ec.Payload.String("matched")
	if direction == "" || direction == "move" || direction == "go" {
		args := ec.Payload.Args()
		if len(args) == 0 {
			return structs.NewCommandError("missing_direction", "Go where?")
		}
		direction = args[0]
	}
	direction, known := directionAliases[strings.ToLower(direction)]
	if !known {
		return structs.NewCommandError("invalid_direction", "That is not a direction.")
	}

	origin, err := g.storage.GetRoom(ec.Ctx, ec.Actor.Room())
	if err != nil {
		return errors.WithStack(err)
	}
	exit, err := g.storage.GetExit(ec.Ctx, origin.Id, direction)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return structs.NewCommandError("no_exit", "You can't go %s from here.", direction)
		}
		return errors.WithStack(err)
	}
	if exit.Door && exit.Locked {
		return structs.NewCommandError("locked", "The door is locked.")
	}
	if exit.Door && exit.Closed {
		return structs.NewCommandError("closed", "The door is closed.")
	}
	destination, err := g.storage.GetRoom(ec.Ctx, exit.Destination)
	if err != nil {
		return errors.WithStack(err)
	}
	if destination.Water {
		hasBoat, err := g.storage.HasBoat(ec.Ctx, origin.Id)
		if err != nil {
			return errors.WithStack(err)
		}
		if !hasBoat {
			return structs.NewCommandError("no_boat", "You need a boat to go there.")
		}
	}
	if player, isPlayer := ec.Actor.(*structs.Player); isPlayer {
		cost := moveCost(origin.Terrain)
		if player.Stamina < cost {
			return structs.NewCommandError("exhausted", "You are too exhausted to move.")
		}
		player.Stamina -= cost
		if err := g.storage.SetActor(ec.Ctx, player); err != nil {
			return errors.WithStack(err)
		}
	}

	originOthers, err := g.storage.RoomActorKeys(ec.Ctx, origin.Id, ec.Actor.ActorKey())
	if err != nil {
		return errors.WithStack(err)
	}
	destinationOthers, err := g.storage.RoomActorKeys(ec.Ctx, destination.Id, ec.Actor.ActorKey())
	if err != nil {
		return errors.WithStack(err)
	}
	if err := g.storage.MoveActor(ec.Ctx, ec.Actor, destination.Id, destination.ZoneID); err != nil {
		return errors.WithStack(err)
	}

	ec.PublishSuccess(map[string]any{
		"direction": direction,
		"from":      origin.Id,
		"to":        destination.Id,
	}, fmt.Sprintf("You head %s.", direction))

	if ec.Actor.Invisible() {
		return nil
	}
	name := ec.Actor.ActorName()
	if len(originOthers) > 0 {
		left := structs.NewEvent("room.exit", originOthers...)
		left.Data["actor"] = name
		left.Data["direction"] = direction
		left.Text = fmt.Sprintf("%s leaves %s.", name, direction)
		g.Publish(ec.Ctx, left)
	}
	if len(destinationOthers) > 0 {
		from := oppositeDirections[direction]
		entered := structs.NewEvent("room.enter", destinationOthers...)
		entered.Data["actor"] = name
		entered.Data["from"] = from
		if from == "above" || from == "below" {
			entered.Text = fmt.Sprintf("%s arrives from %s.", name, from)
		} else {
			entered.Text = fmt.Sprintf("%s arrives from the %s.", name, from)
		}
		g.Publish(ec.Ctx, entered)
	}
	return nil
}
