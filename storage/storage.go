// Package storage is the sqlite-backed store the engine reads world state
// and triggers from. The engine itself never holds references across
// dispatches; everything goes through accessors here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/zond/sqly"
	_ "modernc.org/sqlite"

	"github.com/writtenrealms/writtenrealms"
	"github.com/writtenrealms/writtenrealms/structs"
)

type Storage struct {
	sql *sqly.DB
}

func New(ctx context.Context, dir string) (*Storage, error) {
	db, err := sqly.Open("sqlite", filepath.Join(dir, "sqlite.db"))
	if err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	for _, prototype := range []any{
		structs.WorldRecord{},
		structs.Zone{},
		structs.Room{},
		structs.Exit{},
		structs.Item{},
		structs.Player{},
		structs.Mob{},
		structs.Trigger{},
		ScheduledSegment{},
	} {
		if err := db.CreateTableIfNotExists(ctx, prototype); err != nil {
			return nil, writtenrealms.WithStack(err)
		}
	}
	return &Storage{sql: db}, nil
}

// notFoundOr converts sql.ErrNoRows into os.ErrNotExist so callers can use a
// single sentinel for missing records.
func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(os.ErrNotExist, "%v", err)
	}
	return writtenrealms.WithStack(err)
}

func (s *Storage) GetActor(ctx context.Context, kind structs.ActorKind, key string) (structs.Actor, error) {
	switch kind {
	case structs.KindPlayer:
		player := &structs.Player{}
		if err := s.sql.GetContext(ctx, player, "SELECT * FROM Player WHERE Key = ?", key); err != nil {
			return nil, notFoundOr(err)
		}
		return player, nil
	case structs.KindMob:
		mob := &structs.Mob{}
		if err := s.sql.GetContext(ctx, mob, "SELECT * FROM Mob WHERE Key = ?", key); err != nil {
			return nil, notFoundOr(err)
		}
		return mob, nil
	}
	return nil, errors.Errorf("unknown actor kind %q", kind)
}

func (s *Storage) SetActor(ctx context.Context, actor structs.Actor) error {
	return writtenrealms.WithStack(s.sql.Write(ctx, func(tx *sqly.Tx) error {
		switch a := actor.(type) {
		case *structs.Player:
			return tx.Upsert(ctx, a, true)
		case *structs.Mob:
			return tx.Upsert(ctx, a, true)
		}
		return errors.Errorf("unknown actor type %T", actor)
	}))
}

// MoveActor updates the actor's room and zone in the store and in the given
// snapshot.
func (s *Storage) MoveActor(ctx context.Context, actor structs.Actor, roomID string, zoneID string) error {
	switch a := actor.(type) {
	case *structs.Player:
		a.RoomID, a.ZoneID = roomID, zoneID
	case *structs.Mob:
		a.RoomID, a.ZoneID = roomID, zoneID
	default:
		return errors.Errorf("unknown actor type %T", actor)
	}
	return writtenrealms.WithStack(s.SetActor(ctx, actor))
}

func (s *Storage) GetWorld(ctx context.Context, id string) (*structs.WorldRecord, error) {
	world := &structs.WorldRecord{}
	if err := s.sql.GetContext(ctx, world, "SELECT * FROM WorldRecord WHERE Id = ?", id); err != nil {
		return nil, notFoundOr(err)
	}
	return world, nil
}

func (s *Storage) GetZone(ctx context.Context, id string) (*structs.Zone, error) {
	zone := &structs.Zone{}
	if err := s.sql.GetContext(ctx, zone, "SELECT * FROM Zone WHERE Id = ?", id); err != nil {
		return nil, notFoundOr(err)
	}
	return zone, nil
}

func (s *Storage) GetRoom(ctx context.Context, id string) (*structs.Room, error) {
	room := &structs.Room{}
	if err := s.sql.GetContext(ctx, room, "SELECT * FROM Room WHERE Id = ?", id); err != nil {
		return nil, notFoundOr(err)
	}
	return room, nil
}

// GetExit returns the exit leading in direction out of the room, or
// os.ErrNotExist if the room has none.
func (s *Storage) GetExit(ctx context.Context, roomID string, direction string) (*structs.Exit, error) {
	exit := &structs.Exit{}
	if err := s.sql.GetContext(ctx, exit,
		"SELECT * FROM Exit WHERE RoomID = ? AND Direction = ?", roomID, direction); err != nil {
		return nil, notFoundOr(err)
	}
	return exit, nil
}

func (s *Storage) GetItem(ctx context.Context, id string) (*structs.Item, error) {
	item := &structs.Item{}
	if err := s.sql.GetContext(ctx, item, "SELECT * FROM Item WHERE Id = ?", id); err != nil {
		return nil, notFoundOr(err)
	}
	return item, nil
}

// HasBoat reports whether the room contains a boat item.
func (s *Storage) HasBoat(ctx context.Context, roomID string) (bool, error) {
	count := 0
	if err := s.sql.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM Item WHERE RoomID = ? AND Boat", roomID); err != nil {
		return false, writtenrealms.WithStack(err)
	}
	return count > 0, nil
}

// RoomItems returns the items standing in the room, oldest first.
func (s *Storage) RoomItems(ctx context.Context, roomID string) ([]structs.Item, error) {
	items := []structs.Item{}
	if err := s.sql.SelectContext(ctx, &items,
		"SELECT * FROM Item WHERE RoomID = ? ORDER BY CreatedAt", roomID); err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	return items, nil
}

// RoomMobs returns the mobs standing in the room, oldest first.
func (s *Storage) RoomMobs(ctx context.Context, roomID string) ([]structs.Mob, error) {
	mobs := []structs.Mob{}
	if err := s.sql.SelectContext(ctx, &mobs,
		"SELECT * FROM Mob WHERE RoomID = ? ORDER BY CreatedAt", roomID); err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	return mobs, nil
}

// RoomActorKeys returns the keys of every actor (player or mob) in the room,
// minus the excluded keys.
func (s *Storage) RoomActorKeys(ctx context.Context, roomID string, exclude ...string) ([]string, error) {
	return s.actorKeys(ctx, "RoomID", roomID, exclude)
}

// ZoneActorKeys returns the keys of every actor in the zone, minus the
// excluded keys.
func (s *Storage) ZoneActorKeys(ctx context.Context, zoneID string, exclude ...string) ([]string, error) {
	return s.actorKeys(ctx, "ZoneID", zoneID, exclude)
}

func (s *Storage) actorKeys(ctx context.Context, column string, id string, exclude []string) ([]string, error) {
	keys := []string{}
	for _, table := range []string{"Player", "Mob"} {
		part := []string{}
		query := fmt.Sprintf("SELECT Key FROM %s WHERE %s = ? ORDER BY CreatedAt", table, column)
		if err := s.sql.SelectContext(ctx, &part, query, id); err != nil {
			return nil, writtenrealms.WithStack(err)
		}
		keys = append(keys, part...)
	}
	if len(exclude) == 0 {
		return keys, nil
	}
	excluded := map[string]bool{}
	for _, key := range exclude {
		excluded[key] = true
	}
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if !excluded[key] {
			result = append(result, key)
		}
	}
	return result, nil
}

// triggerOrder is the deterministic candidate ordering: scope specificity
// first (room before zone before world), then authored ordering, then
// creation time, then id.
const triggerOrder = ` ORDER BY CASE Scope WHEN 'room' THEN 0 WHEN 'zone' THEN 1 ELSE 2 END, Ordering, CreatedAt, Id`

// ScopeTriggers returns the active command triggers reachable from an actor
// standing in the given room: world-scope triggers of its world (wildcard or
// self-targeted), zone-scope triggers of its zone, and room-scope triggers of
// its room.
func (s *Storage) ScopeTriggers(ctx context.Context, worldID string, zoneID string, roomID string) ([]structs.Trigger, error) {
	triggers := []structs.Trigger{}
	query := `SELECT * FROM ` + "`Trigger`" + ` WHERE WorldID = ? AND Kind = ? AND IsActive AND (
		(Scope = 'world' AND (TargetID = '' OR TargetID = WorldID)) OR
		(Scope = 'zone' AND TargetID = ?) OR
		(Scope = 'room' AND TargetType = 'room' AND TargetID = ?))` + triggerOrder
	if err := s.sql.SelectContext(ctx, &triggers, query,
		worldID, structs.TriggerKindCommand, zoneID, roomID); err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	return triggers, nil
}

// TargetTriggers returns the active command triggers attached directly to any
// of the given target ids (an instance and, if known, its template).
func (s *Storage) TargetTriggers(ctx context.Context, targetType structs.TargetType, targetIDs []string) ([]structs.Trigger, error) {
	if len(targetIDs) == 0 {
		return []structs.Trigger{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM `+"`Trigger`"+
		` WHERE Kind = ? AND IsActive AND TargetType = ? AND TargetID IN (?)`+triggerOrder,
		structs.TriggerKindCommand, targetType, targetIDs)
	if err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	triggers := []structs.Trigger{}
	if err := s.sql.SelectContext(ctx, &triggers, s.sql.Rebind(query), args...); err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	return triggers, nil
}

// SetTrigger validates and stores a trigger. The CRUD surface proper lives
// outside this repo; this is what it (and the tests) write through.
func (s *Storage) SetTrigger(ctx context.Context, trigger *structs.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return writtenrealms.WithStack(err)
	}
	if trigger.CreatedAt == 0 {
		trigger.CreatedAt = structs.Now()
	}
	return writtenrealms.WithStack(s.sql.Write(ctx, func(tx *sqly.Tx) error {
		return tx.Upsert(ctx, trigger, true)
	}))
}

func (s *Storage) SetWorld(ctx context.Context, world *structs.WorldRecord) error {
	return s.upsert(ctx, world)
}

func (s *Storage) SetZone(ctx context.Context, zone *structs.Zone) error {
	return s.upsert(ctx, zone)
}

func (s *Storage) SetRoom(ctx context.Context, room *structs.Room) error {
	return s.upsert(ctx, room)
}

func (s *Storage) SetExit(ctx context.Context, exit *structs.Exit) error {
	return s.upsert(ctx, exit)
}

func (s *Storage) SetItem(ctx context.Context, item *structs.Item) error {
	return s.upsert(ctx, item)
}

func (s *Storage) upsert(ctx context.Context, record any) error {
	return writtenrealms.WithStack(s.sql.Write(ctx, func(tx *sqly.Tx) error {
		return tx.Upsert(ctx, record, true)
	}))
}

// PurgeSpawned deletes every spawned (template-derived) item and mob in the
// room and returns how many records went away.
func (s *Storage) PurgeSpawned(ctx context.Context, roomID string) (int, error) {
	removed := 0
	err := s.sql.Write(ctx, func(tx *sqly.Tx) error {
		for _, query := range []string{
			"DELETE FROM Item WHERE RoomID = ? AND TemplateID != ''",
			"DELETE FROM Mob WHERE RoomID = ? AND TemplateID != ''",
		} {
			res, err := tx.ExecContext(ctx, query, roomID)
			if err != nil {
				return writtenrealms.WithStack(err)
			}
			if count, err := res.RowsAffected(); err == nil {
				removed += int(count)
			}
		}
		return nil
	})
	return removed, writtenrealms.WithStack(err)
}

func (s *Storage) Close() error {
	return writtenrealms.WithStack(s.sql.Close())
}
