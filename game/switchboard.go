package game

import (
	"github.com/writtenrealms/writtenrealms"
)

// Session receives published messages for one connected client. SSH
// sessions render the text form, websocket sessions write the raw
// JSON.
type Session interface {
	Send(message *Message) error
}

// Switchboard maps actor keys to their live sessions. One actor may
// hold several sessions at once, one per connection id. The per-actor
// maps are replaced wholesale on registration changes, so readers
// always iterate an immutable snapshot.
type Switchboard struct {
	sessions *writtenrealms.SyncMap[string, map[string]Session]
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{sessions: writtenrealms.NewSyncMap[string, map[string]Session]()}
}

func (s *Switchboard) Register(actorKey string, connectionID string, session Session) {
	s.sessions.WithLock(actorKey, func() {
		next := map[string]Session{}
		for id, existing := range s.sessions.Get(actorKey) {
			next[id] = existing
		}
		next[connectionID] = session
		s.sessions.Set(actorKey, next)
	})
}

func (s *Switchboard) Unregister(actorKey string, connectionID string) {
	s.sessions.WithLock(actorKey, func() {
		current := s.sessions.Get(actorKey)
		if _, found := current[connectionID]; !found {
			return
		}
		next := map[string]Session{}
		for id, existing := range current {
			if id != connectionID {
				next[id] = existing
			}
		}
		if len(next) == 0 {
			s.sessions.Del(actorKey)
			return
		}
		s.sessions.Set(actorKey, next)
	})
}

// Deliver writes the message to the recipient's sessions. A pinned
// connection id narrows delivery to that single session. Unknown
// recipients and connections are a no-op.
func (s *Switchboard) Deliver(recipientKey string, message *Message, connectionID string) {
	snapshot := s.sessions.Get(recipientKey)
	if connectionID != "" {
		if session, found := snapshot[connectionID]; found {
			_ = session.Send(message)
		}
		return
	}
	for _, session := range snapshot {
		_ = session.Send(message)
	}
}
