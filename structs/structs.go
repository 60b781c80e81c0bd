package structs

import (
	"fmt"
	"strings"
	"time"

	"github.com/writtenrealms/writtenrealms/match"
)

type ActorKind string

const (
	KindPlayer ActorKind = "player"
	KindMob    ActorKind = "mob"
)

// Actor is the common surface of anything that can issue or receive commands.
// The store owns actor state; values handed to the engine are per-dispatch
// snapshots.
type Actor interface {
	ActorKey() string
	ActorKind() ActorKind
	ActorName() string
	Room() string
	Zone() string
	World() string
	Invisible() bool
}

// Player is a human-controlled actor.
type Player struct {
	Key       string `sqly:"pkey"`
	Name      string
	WorldID   string
	ZoneID    string
	RoomID    string
	Muted     bool
	Builder   bool
	Invis     bool
	Stamina   int
	CreatedAt int64
}

func (p *Player) ActorKey() string     { return p.Key }
func (p *Player) ActorKind() ActorKind { return KindPlayer }
func (p *Player) ActorName() string    { return p.Name }
func (p *Player) Room() string         { return p.RoomID }
func (p *Player) Zone() string         { return p.ZoneID }
func (p *Player) World() string        { return p.WorldID }
func (p *Player) Invisible() bool      { return p.Invis }

// Mob is a non-player actor. TemplateID links a spawned instance back to the
// template it was loaded from.
type Mob struct {
	Key        string `sqly:"pkey"`
	Name       string
	WorldID    string
	ZoneID     string
	RoomID     string
	TemplateID string
	Invis      bool
	CreatedAt  int64
}

func (m *Mob) ActorKey() string     { return m.Key }
func (m *Mob) ActorKind() ActorKind { return KindMob }
func (m *Mob) ActorName() string    { return m.Name }
func (m *Mob) Room() string         { return m.RoomID }
func (m *Mob) Zone() string         { return m.ZoneID }
func (m *Mob) World() string        { return m.WorldID }
func (m *Mob) Invisible() bool      { return m.Invis }

type WorldRecord struct {
	Id        string `sqly:"pkey"`
	Name      string
	CreatedAt int64
}

type Zone struct {
	Id      string `sqly:"pkey"`
	WorldID string
	Name    string
}

type Room struct {
	Id      string `sqly:"pkey"`
	WorldID string
	ZoneID  string
	Name    string
	Terrain string
	Water   bool
}

type Exit struct {
	Id          string `sqly:"pkey"`
	RoomID      string
	Direction   string
	Destination string
	Door        bool
	Closed      bool
	Locked      bool
}

// Item is a thing lying in a room. TemplateID is empty for templates
// themselves and set for spawned instances.
type Item struct {
	Id         string `sqly:"pkey"`
	WorldID    string
	RoomID     string
	TemplateID string
	Name       string
	Boat       bool
	CreatedAt  int64
}

type TriggerScope string

const (
	ScopeRoom  TriggerScope = "room"
	ScopeZone  TriggerScope = "zone"
	ScopeWorld TriggerScope = "world"
)

// Rank orders scopes by specificity, most specific first.
func (s TriggerScope) Rank() int {
	switch s {
	case ScopeRoom:
		return 0
	case ScopeZone:
		return 1
	case ScopeWorld:
		return 2
	}
	return 3
}

type TargetType string

const (
	TargetRoom  TargetType = "room"
	TargetZone  TargetType = "zone"
	TargetWorld TargetType = "world"
	TargetItem  TargetType = "item"
	TargetMob   TargetType = "mob"
)

const TriggerKindCommand = "command"

// Trigger is authored externally and read-only to the engine.
type Trigger struct {
	Id                   string `sqly:"pkey"`
	WorldID              string
	Scope                TriggerScope
	Kind                 string
	TargetType           TargetType
	TargetID             string
	Actions              string
	Script               string
	Conditions           string
	ShowDetailsOnFailure bool
	FailureMessage       string
	DisplayActionInRoom  bool
	GateDelay            int
	Ordering             int
	IsActive             bool
	CreatedAt            int64
}

// Validate enforces the author-time invariants: the scope must agree with the
// target's entity type, a world-scope trigger may only target its own world
// (or nothing, meaning the whole world), and both match expressions must
// parse.
func (t *Trigger) Validate() error {
	switch t.Scope {
	case ScopeRoom:
		switch t.TargetType {
		case TargetRoom, TargetItem, TargetMob:
		default:
			return fmt.Errorf("room-scope trigger %q targets %q", t.Id, t.TargetType)
		}
		if t.TargetID == "" {
			return fmt.Errorf("room-scope trigger %q has no target", t.Id)
		}
	case ScopeZone:
		if t.TargetType != TargetZone || t.TargetID == "" {
			return fmt.Errorf("zone-scope trigger %q must target a zone", t.Id)
		}
	case ScopeWorld:
		if t.TargetType == "" && t.TargetID == "" {
			break
		}
		if t.TargetType != TargetWorld || t.TargetID != t.WorldID {
			return fmt.Errorf("world-scope trigger %q must target its own world", t.Id)
		}
	default:
		return fmt.Errorf("trigger %q has unknown scope %q", t.Id, t.Scope)
	}
	if err := match.Validate(t.Actions); err != nil {
		return fmt.Errorf("trigger %q actions: %v", t.Id, err)
	}
	if err := match.Validate(t.Conditions); err != nil {
		return fmt.Errorf("trigger %q conditions: %v", t.Id, err)
	}
	return nil
}

// Alternatives splits the actions field on the literal word " or " into the
// trigger's alternative phrases.
func (t *Trigger) Alternatives() []string {
	result := []string{}
	for _, alt := range strings.Split(t.Actions, " or ") {
		if alt = strings.TrimSpace(alt); alt != "" {
			result = append(result, alt)
		}
	}
	return result
}

// ScriptSegments splits the script into command lines: newlines first, then
// `&&` within each line.
func (t *Trigger) ScriptSegments() []string {
	result := []string{}
	for _, line := range strings.Split(t.Script, "\n") {
		for _, segment := range strings.Split(line, "&&") {
			if segment = strings.TrimSpace(segment); segment != "" {
				result = append(result, segment)
			}
		}
	}
	return result
}

// GameEvent is a single outbound notification, created per dispatch and
// discarded after publishing.
type GameEvent struct {
	Type         string
	Data         map[string]any
	Recipients   []string
	Text         string
	ConnectionID string
}

func NewEvent(eventType string, recipients ...string) *GameEvent {
	return &GameEvent{
		Type:       eventType,
		Data:       map[string]any{},
		Recipients: recipients,
	}
}

func (e *GameEvent) WithText(text string) *GameEvent {
	e.Text = text
	return e
}

func (e *GameEvent) WithData(key string, value any) *GameEvent {
	e.Data[key] = value
	return e
}

// ActionResult is what an action hands back to its handler: the events to
// publish plus optional ancillary data for the caller.
type ActionResult struct {
	Events []*GameEvent
	Data   map[string]any
}

func (r *ActionResult) Add(events ...*GameEvent) *ActionResult {
	r.Events = append(r.Events, events...)
	return r
}

func (r *ActionResult) Merge(other *ActionResult) *ActionResult {
	if other == nil {
		return r
	}
	r.Events = append(r.Events, other.Events...)
	for k, v := range other.Data {
		if r.Data == nil {
			r.Data = map[string]any{}
		}
		r.Data[k] = v
	}
	return r
}

// CommandError is a recoverable business-rule failure. Handlers convert it
// into a `<command>.error` event; it never propagates past the handler.
type CommandError struct {
	Message string
	Code    string
	Data    map[string]any
}

func (e *CommandError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

func NewCommandError(code string, format string, args ...any) *CommandError {
	return &CommandError{
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

func Now() int64 {
	return time.Now().UnixNano()
}
