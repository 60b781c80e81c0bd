package game

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms"
	"github.com/writtenrealms/writtenrealms/storage"
	"github.com/writtenrealms/writtenrealms/structs"
)

// Config tunes a game instance. The zero value is usable.
type Config struct {
	// Heartbeat is the spacing between deferred trigger script
	// segments.
	Heartbeat time.Duration
	// Forwarder, when set, receives every published event for
	// external consumers. Best effort.
	Forwarder Forwarder
	// Conditions overrides the default fact-based condition
	// evaluator.
	Conditions ConditionEvaluator
}

const defaultHeartbeat = time.Second

// Game owns the command registry, the trigger engine and the event
// fan-out for one world server.
type Game struct {
	storage       *storage.Storage
	registry      *Registry
	publisher     *Publisher
	switchboard   *Switchboard
	subscriptions *SubscriptionHub
	triggers      *TriggerEngine
	scheduler     *storage.Scheduler
	config        Config
}

func New(s *storage.Storage, config Config) (*Game, error) {
	if config.Heartbeat <= 0 {
		config.Heartbeat = defaultHeartbeat
	}
	g := &Game{
		storage:       s,
		registry:      NewRegistry(),
		switchboard:   NewSwitchboard(),
		subscriptions: NewSubscriptionHub(),
		config:        config,
	}
	g.publisher = NewPublisher(g.switchboard)
	g.publisher.AddObserver(g.subscriptions.Notify)
	if config.Forwarder != nil {
		g.publisher.SetForwarder(config.Forwarder)
	}
	g.triggers = NewTriggerEngine(g, s, config.Conditions, NewGateCache())
	g.scheduler = storage.NewScheduler(s, g.runScheduled)
	if err := g.registerCommands(); err != nil {
		return nil, errors.WithStack(err)
	}
	return g, nil
}

// runScheduled executes one deferred trigger script segment. The
// segment keeps the trigger origin flag so it cannot re-enter the
// trigger fallback.
func (g *Game) runScheduled(ctx context.Context, kind structs.ActorKind, actorKey string, line string) {
	if err := g.DispatchLine(ctx, kind, actorKey, line, "", LineOptions{TriggerOriginated: true}); err != nil {
		log.Printf("deferred segment %q for %s %s: %v", line, kind, actorKey, err)
		if trace := writtenrealms.StackTrace(err); trace != "" {
			log.Println(trace)
		}
	}
}

// Start loads persisted deferred segments and runs the scheduler
// until the context is done.
func (g *Game) Start(ctx context.Context) error {
	if err := g.scheduler.Load(ctx); err != nil {
		return errors.WithStack(err)
	}
	return g.scheduler.Start(ctx)
}

func (g *Game) Close() {
	g.scheduler.Close()
}

func (g *Game) Publish(ctx context.Context, event *structs.GameEvent) {
	if err := g.publisher.Publish(ctx, event); err != nil {
		log.Printf("publishing %s: %v", event.Type, err)
	}
}

func (g *Game) Switchboard() *Switchboard {
	return g.switchboard
}

func (g *Game) Subscriptions() *SubscriptionHub {
	return g.subscriptions
}

func (g *Game) Triggers() *TriggerEngine {
	return g.triggers
}

// registerCommands installs the built-in command table. Registration
// order is alias resolution order, so the directions come early and
// "s" means south, not say.
func (g *Game) registerCommands() error {
	commands := []*Command{
		{
			Type:    "look",
			Aliases: []string{"look", "l"},
			Kinds:   []structs.ActorKind{structs.KindPlayer},
			Run:     g.actionLook,
		},
		{
			Type: "move",
			Aliases: []string{
				"north", "south", "east", "west", "up", "down",
				"n", "s", "e", "w", "u", "d", "go",
			},
			Run: g.actionMove,
		},
		{
			Type:    "say",
			Aliases: []string{"say", "'"},
			Run:     g.actionSay,
		},
		{
			Type:    "yell",
			Aliases: []string{"yell"},
			Run:     g.actionYell,
		},
		{
			Type:    "emote",
			Aliases: []string{"emote", ":"},
			Run:     g.actionEmote,
		},
		{
			Type:    "echo",
			Aliases: []string{"echo"},
			Run:     g.actionEcho,
		},
		{
			Type:        "force",
			Aliases:     []string{"force"},
			Kinds:       []structs.ActorKind{structs.KindPlayer},
			BuilderOnly: true,
			Run:         g.actionForce,
		},
		{
			Type:        "load",
			Aliases:     []string{"load"},
			Kinds:       []structs.ActorKind{structs.KindPlayer},
			BuilderOnly: true,
			Run:         g.actionLoad,
		},
		{
			Type:        "purge",
			Aliases:     []string{"purge"},
			Kinds:       []structs.ActorKind{structs.KindPlayer},
			BuilderOnly: true,
			Run:         g.actionPurge,
		},
		{
			Type:        "triggers",
			Aliases:     []string{"triggers"},
			Kinds:       []structs.ActorKind{structs.KindPlayer},
			BuilderOnly: true,
			Run:         g.actionTriggers,
		},
	}
	for _, cmd := range commands {
		if err := g.registry.Register(cmd); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
