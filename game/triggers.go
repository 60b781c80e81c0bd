package game

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms/match"
	"github.com/writtenrealms/writtenrealms/structs"
)

// ConditionEvaluator decides whether a trigger's conditions hold for
// an actor. The detail is shown to the actor when the trigger opts
// into surfacing failures.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, actor structs.Actor, expression string) (ok bool, detail string, err error)
}

// factConditions evaluates condition expressions against facts about
// the actor and its room: the actor kind, builder and muted state,
// and the room's terrain.
type factConditions struct {
	storage triggerStore
}

func (f *factConditions) Evaluate(ctx context.Context, actor structs.Actor, expression string) (bool, string, error) {
	if strings.TrimSpace(expression) == "" {
		return true, "", nil
	}
	facts := []string{string(actor.ActorKind()), actor.ActorName()}
	if player, isPlayer := actor.(*structs.Player); isPlayer {
		if player.Builder {
			facts = append(facts, "builder")
		}
		if player.Muted {
			facts = append(facts, "muted")
		}
	}
	if actor.Invisible() {
		facts = append(facts, "invisible")
	}
	if room, err := f.storage.GetRoom(ctx, actor.Room()); err == nil {
		if room.Terrain != "" {
			facts = append(facts, room.Terrain)
		}
		if room.Water {
			facts = append(facts, "water")
		}
	}
	matcher := func(literal string) bool {
		for _, fact := range facts {
			if match.Phrase(fact)(literal) {
				return true
			}
		}
		return false
	}
	ok, err := match.Evaluate(expression, matcher, true)
	if err != nil {
		return false, "", errors.WithStack(err)
	}
	if ok {
		return true, "", nil
	}
	literal, _ := match.FirstLiteral(expression)
	detail := "The conditions are not right."
	if literal != "" {
		detail = fmt.Sprintf("This calls for %s.", literal)
	}
	return false, detail, nil
}

// triggerStore is the slice of storage the trigger engine reads.
type triggerStore interface {
	GetActor(ctx context.Context, kind structs.ActorKind, key string) (structs.Actor, error)
	GetRoom(ctx context.Context, id string) (*structs.Room, error)
	RoomItems(ctx context.Context, roomID string) ([]structs.Item, error)
	RoomMobs(ctx context.Context, roomID string) ([]structs.Mob, error)
	ScopeTriggers(ctx context.Context, worldID string, zoneID string, roomID string) ([]structs.Trigger, error)
	TargetTriggers(ctx context.Context, targetType structs.TargetType, targetIDs []string) ([]structs.Trigger, error)
}

// TriggerEngine resolves and runs command triggers for free-text
// input that no registered command claimed.
type TriggerEngine struct {
	game       *Game
	storage    triggerStore
	conditions ConditionEvaluator
	gate       GateCache
}

func NewTriggerEngine(game *Game, store triggerStore, conditions ConditionEvaluator, gate GateCache) *TriggerEngine {
	if conditions == nil {
		conditions = &factConditions{storage: store}
	}
	return &TriggerEngine{game: game, storage: store, conditions: conditions, gate: gate}
}

// Resolve returns the candidate triggers for an actor's position:
// world, zone and room scope triggers plus the triggers attached to
// the items and mobs in the room (by instance or template id), in
// deterministic order.
func (e *TriggerEngine) Resolve(ctx context.Context, actor structs.Actor) ([]structs.Trigger, error) {
	candidates, err := e.storage.ScopeTriggers(ctx, actor.World(), actor.Zone(), actor.Room())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	itemIDs := []string{}
	items, err := e.storage.RoomItems(ctx, actor.Room())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, item := range items {
		itemIDs = append(itemIDs, item.Id)
		if item.TemplateID != "" {
			itemIDs = append(itemIDs, item.TemplateID)
		}
	}
	mobIDs := []string{}
	mobs, err := e.storage.RoomMobs(ctx, actor.Room())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, mob := range mobs {
		mobIDs = append(mobIDs, mob.Key)
		if mob.TemplateID != "" {
			mobIDs = append(mobIDs, mob.TemplateID)
		}
	}
	itemTriggers, err := e.storage.TargetTriggers(ctx, structs.TargetItem, itemIDs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	candidates = append(candidates, itemTriggers...)
	mobTriggers, err := e.storage.TargetTriggers(ctx, structs.TargetMob, mobIDs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	candidates = append(candidates, mobTriggers...)
	seen := map[string]bool{}
	result := candidates[:0]
	for _, trigger := range candidates {
		if seen[trigger.Id] {
			continue
		}
		seen[trigger.Id] = true
		result = append(result, trigger)
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Scope.Rank() != b.Scope.Rank() {
			return a.Scope.Rank() < b.Scope.Rank()
		}
		if a.Ordering != b.Ordering {
			return a.Ordering < b.Ordering
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.Id < b.Id
	})
	return result, nil
}

// gateTTL converts the authored gate delay to a cache lifetime.
// Negative delays hold the gate until restart.
func gateTTL(trigger *structs.Trigger) time.Duration {
	if trigger.GateDelay < 0 {
		return gateForever
	}
	return time.Duration(trigger.GateDelay) * time.Second
}

// gateScopeKey picks the entity the gate is shared across: the
// trigger's own target when it has one, otherwise the actor's scope
// entity.
func gateScopeKey(trigger *structs.Trigger, actor structs.Actor) string {
	if trigger.TargetID != "" {
		return trigger.TargetID
	}
	switch trigger.Scope {
	case structs.ScopeRoom:
		return actor.Room()
	case structs.ScopeZone:
		return actor.Zone()
	}
	return actor.World()
}

// ExecuteFallback runs every matching trigger for one line of free
// text. It reports whether any trigger claimed the input, either by
// firing or by surfacing a condition failure.
func (e *TriggerEngine) ExecuteFallback(ctx context.Context, kind structs.ActorKind, actorKey string, line string, connectionID string) (bool, error) {
	actor, err := e.storage.GetActor(ctx, kind, actorKey)
	if err != nil {
		return false, errors.WithStack(err)
	}
	candidates, err := e.Resolve(ctx, actor)
	if err != nil {
		return false, errors.WithStack(err)
	}
	matcher := match.Exact(line)

	fired := false
	failureMessage := ""
	nestedError := ""
	for i := range candidates {
		trigger := &candidates[i]
		if !matchesAlternative(trigger, matcher) {
			continue
		}
		ok, detail, err := e.conditions.Evaluate(ctx, actor, trigger.Conditions)
		if err != nil {
			return false, errors.WithStack(err)
		}
		if !ok {
			if trigger.ShowDetailsOnFailure && failureMessage == "" {
				failureMessage = trigger.FailureMessage
				if failureMessage == "" {
					failureMessage = detail
				}
			}
			continue
		}
		if trigger.GateDelay != 0 {
			key := gateKey(trigger, gateScopeKey(trigger, actor))
			if !e.gate.TryAcquire(key, gateTTL(trigger)) {
				e.publishGated(ctx, actor, connectionID)
				return true, nil
			}
		}
		segments := trigger.ScriptSegments()
		if len(segments) == 0 {
			fired = true
			continue
		}
		if err := e.game.DispatchLine(ctx, kind, actorKey, segments[0], connectionID, LineOptions{TriggerOriginated: true}); err != nil {
			if nestedError == "" {
				nestedError = err.Error()
			}
		}
		if len(segments) > 1 {
			if err := e.game.scheduler.Schedule(ctx, actor, segments[1:], e.game.config.Heartbeat, e.game.config.Heartbeat); err != nil {
				return true, errors.WithStack(err)
			}
		}
		fired = true
	}
	if fired {
		if nestedError != "" {
			event := structs.NewEvent("trigger.error", actor.ActorKey())
			event.ConnectionID = connectionID
			event.Text = nestedError
			e.game.Publish(ctx, event)
		}
		return true, nil
	}
	if failureMessage != "" {
		event := structs.NewEvent("trigger.failure", actor.ActorKey())
		event.ConnectionID = connectionID
		event.Text = failureMessage
		e.game.Publish(ctx, event)
		return true, nil
	}
	return false, nil
}

func (e *TriggerEngine) publishGated(ctx context.Context, actor structs.Actor, connectionID string) {
	event := structs.NewEvent("trigger.gated", actor.ActorKey())
	event.ConnectionID = connectionID
	event.Text = "More time is needed before that can happen again."
	e.game.Publish(ctx, event)
}

func matchesAlternative(trigger *structs.Trigger, matcher match.TermMatcher) bool {
	for _, alternative := range trigger.Alternatives() {
		if matcher(alternative) {
			return true
		}
	}
	return false
}

// ActionLabels returns the distinct advertised action labels visible
// to the actor: the first alternative of each display-enabled trigger
// whose conditions hold and whose gate is currently open. The gate is
// inspected without being taken.
func (e *TriggerEngine) ActionLabels(ctx context.Context, actor structs.Actor) ([]string, error) {
	candidates, err := e.Resolve(ctx, actor)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	labels := []string{}
	seen := map[string]bool{}
	for i := range candidates {
		trigger := &candidates[i]
		if !trigger.DisplayActionInRoom {
			continue
		}
		ok, _, err := e.conditions.Evaluate(ctx, actor, trigger.Conditions)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if !ok {
			continue
		}
		if trigger.GateDelay != 0 && e.gate.Gated(gateKey(trigger, gateScopeKey(trigger, actor))) {
			continue
		}
		alternatives := trigger.Alternatives()
		if len(alternatives) == 0 {
			continue
		}
		label := alternatives[0]
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels, nil
}
