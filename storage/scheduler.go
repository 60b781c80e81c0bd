package storage

import (
	"context"
	"log"
	"sync"
	"time"

	bstd "github.com/deneonet/benc/std"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zond/sqly"

	"github.com/writtenrealms/writtenrealms"
	"github.com/writtenrealms/writtenrealms/heap"
	"github.com/writtenrealms/writtenrealms/structs"
)

// ScheduledSegment is a persisted deferred trigger-script segment. Payload is
// a benc-encoded segment so pending script continuations survive a restart.
type ScheduledSegment struct {
	Id      string `sqly:"pkey"`
	At      int64
	Payload []byte
}

type segment struct {
	ActorKind string
	ActorKey  string
	Line      string
}

func (s *segment) marshal() []byte {
	size := bstd.SizeString(s.ActorKind) + bstd.SizeString(s.ActorKey) + bstd.SizeString(s.Line)
	b := make([]byte, size)
	n := bstd.MarshalString(0, b, s.ActorKind)
	n = bstd.MarshalString(n, b, s.ActorKey)
	bstd.MarshalString(n, b, s.Line)
	return b
}

func unmarshalSegment(b []byte) (*segment, error) {
	result := &segment{}
	n, kind, err := bstd.UnmarshalString(0, b)
	if err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	n, key, err := bstd.UnmarshalString(n, b)
	if err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	_, line, err := bstd.UnmarshalString(n, b)
	if err != nil {
		return nil, writtenrealms.WithStack(err)
	}
	result.ActorKind, result.ActorKey, result.Line = kind, key, line
	return result, nil
}

// Runner executes one deferred script line on behalf of an actor.
type Runner func(ctx context.Context, kind structs.ActorKind, actorKey string, line string)

// Scheduler runs deferred trigger-script segments. Segments are ordered
// relative to each other by their timestamps but carry no ordering guarantee
// against unrelated concurrent dispatches. There is no cancellation of
// already-scheduled segments.
type Scheduler struct {
	storage *Storage
	runner  Runner
	delays  *heap.Heap[*ScheduledSegment]

	mu      sync.Mutex
	wake    chan struct{} // Buffered(1), signals a new earliest entry
	done    chan struct{} // Closed when Start() exits
	started bool
	closed  bool
}

func NewScheduler(s *Storage, runner Runner) *Scheduler {
	return &Scheduler{
		storage: s,
		runner:  runner,
		delays: heap.New(func(a, b *ScheduledSegment) bool {
			return a.At < b.At
		}),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Load reads persisted segments back into the delay queue. Call once before
// Start.
func (s *Scheduler) Load(ctx context.Context) error {
	rows := []ScheduledSegment{}
	if err := s.storage.sql.SelectContext(ctx, &rows, "SELECT * FROM ScheduledSegment ORDER BY At"); err != nil {
		return writtenrealms.WithStack(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rows {
		row := rows[i]
		s.delays.Push(&row)
	}
	s.signal()
	return nil
}

// Schedule persists and queues the given script lines for actor, the first
// after delay and each following line one step later than the last.
func (s *Scheduler) Schedule(ctx context.Context, actor structs.Actor, lines []string, delay time.Duration, step time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Errorf("scheduler is closed")
	}
	s.mu.Unlock()

	at := time.Now().Add(delay)
	rows := make([]*ScheduledSegment, 0, len(lines))
	err := s.storage.sql.Write(ctx, func(tx *sqly.Tx) error {
		for _, line := range lines {
			seg := &segment{
				ActorKind: string(actor.ActorKind()),
				ActorKey:  actor.ActorKey(),
				Line:      line,
			}
			row := &ScheduledSegment{
				Id:      uuid.NewString(),
				At:      at.UnixNano(),
				Payload: seg.marshal(),
			}
			if err := tx.Upsert(ctx, row, false); err != nil {
				return writtenrealms.WithStack(err)
			}
			rows = append(rows, row)
			at = at.Add(step)
		}
		return nil
	})
	if err != nil {
		return writtenrealms.WithStack(err)
	}

	s.mu.Lock()
	for _, row := range rows {
		s.delays.Push(row)
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close signals the scheduler to stop and waits for Start to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()
	s.signal()
	if started {
		<-s.done
	}
}

// Start runs the delay loop, invoking the runner for each segment when its
// time arrives. Blocks until Close or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	defer close(s.done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		now := time.Now().UnixNano()
		due := []*ScheduledSegment{}
		for {
			row, found := s.delays.PopIf(func(top *ScheduledSegment) bool {
				return top.At <= now
			})
			if !found {
				break
			}
			due = append(due, row)
		}
		next, pending := s.delays.Peek()
		s.mu.Unlock()

		for _, row := range due {
			s.fire(ctx, row)
		}

		wait := time.Hour
		if pending {
			if wait = time.Duration(next.At - time.Now().UnixNano()); wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return writtenrealms.WithStack(ctx.Err())
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, row *ScheduledSegment) {
	if err := s.storage.sql.Write(ctx, func(tx *sqly.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM ScheduledSegment WHERE Id = ?", row.Id)
		return err
	}); err != nil {
		log.Printf("trying to delete scheduled segment %s: %v", row.Id, err)
	}
	seg, err := unmarshalSegment(row.Payload)
	if err != nil {
		log.Printf("trying to decode scheduled segment %s: %v", row.Id, err)
		return
	}
	s.runner(ctx, structs.ActorKind(seg.ActorKind), seg.ActorKey, seg.Line)
}
