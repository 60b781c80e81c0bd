package storage

import (
	"context"

	"github.com/zond/sqly"

	"github.com/writtenrealms/writtenrealms"
	"github.com/writtenrealms/writtenrealms/structs"
)

// Snapshot is a full dump of the world database, used by the loader
// tool for backup and restore.
type Snapshot struct {
	Worlds   []structs.WorldRecord
	Zones    []structs.Zone
	Rooms    []structs.Room
	Exits    []structs.Exit
	Items    []structs.Item
	Players  []structs.Player
	Mobs     []structs.Mob
	Triggers []structs.Trigger
}

func (s *Storage) Dump(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}
	for table, dest := range map[string]any{
		"WorldRecord": &snapshot.Worlds,
		"Zone":        &snapshot.Zones,
		"Room":        &snapshot.Rooms,
		"Exit":        &snapshot.Exits,
		"Item":        &snapshot.Items,
		"Player":      &snapshot.Players,
		"Mob":         &snapshot.Mobs,
		"`Trigger`":   &snapshot.Triggers,
	} {
		if err := s.sql.SelectContext(ctx, dest, "SELECT * FROM "+table); err != nil {
			return nil, writtenrealms.WithStack(err)
		}
	}
	return snapshot, nil
}

// Restore writes every record of the snapshot, overwriting rows that
// share a primary key.
func (s *Storage) Restore(ctx context.Context, snapshot *Snapshot) error {
	return s.sql.Write(ctx, func(tx *sqly.Tx) error {
		records := []any{}
		for i := range snapshot.Worlds {
			records = append(records, &snapshot.Worlds[i])
		}
		for i := range snapshot.Zones {
			records = append(records, &snapshot.Zones[i])
		}
		for i := range snapshot.Rooms {
			records = append(records, &snapshot.Rooms[i])
		}
		for i := range snapshot.Exits {
			records = append(records, &snapshot.Exits[i])
		}
		for i := range snapshot.Items {
			records = append(records, &snapshot.Items[i])
		}
		for i := range snapshot.Players {
			records = append(records, &snapshot.Players[i])
		}
		for i := range snapshot.Mobs {
			records = append(records, &snapshot.Mobs[i])
		}
		for i := range snapshot.Triggers {
			records = append(records, &snapshot.Triggers[i])
		}
		for _, record := range records {
			if err := tx.Upsert(ctx, record, true); err != nil {
				return writtenrealms.WithStack(err)
			}
		}
		return nil
	})
}
