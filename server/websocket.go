package server

import (
	"log"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/writtenrealms/writtenrealms/game"
	"github.com/writtenrealms/writtenrealms/structs"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsSession writes published messages as JSON frames.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSession) Send(message *game.Message) error {
	raw, err := message.Encode()
	if err != nil {
		return errors.WithStack(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.WithStack(s.conn.WriteMessage(websocket.TextMessage, raw))
}

// wsFrame is one inbound client frame: either a raw input line or a
// pre-resolved command with its payload.
type wsFrame struct {
	Line         string         `json:"line,omitempty"`
	Command      string         `json:"command,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	SkipTriggers bool           `json:"skipTriggers,omitempty"`
}

// handleWS runs one WebSocket connection for the player named by the
// actor query parameter.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorKey := r.URL.Query().Get("actor")
	actor, err := s.storage.GetActor(ctx, structs.KindPlayer, actorKey)
	if err != nil {
		http.Error(w, "unknown actor", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrading %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	connectionID := uuid.NewString()
	session := &wsSession{conn: conn}
	s.game.Switchboard().Register(actor.ActorKey(), connectionID, session)
	defer s.game.Switchboard().Unregister(actor.ActorKey(), connectionID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame := &wsFrame{}
		if err := json.Unmarshal(raw, frame); err != nil {
			frame = &wsFrame{Line: string(raw)}
		}
		if frame.Command != "" {
			err = s.game.Dispatch(ctx, frame.Command, structs.KindPlayer, actor.ActorKey(), game.Payload(frame.Payload), connectionID)
		} else {
			err = s.game.DispatchLine(ctx, structs.KindPlayer, actor.ActorKey(), frame.Line, connectionID, game.LineOptions{SkipTriggers: frame.SkipTriggers})
		}
		if err != nil {
			switch {
			case errors.Is(err, game.ErrHandlerNotFound):
				_ = session.Send(&game.Message{Type: "system.error", Text: "That is not a command."})
			case errors.Is(err, game.ErrActorNotFound):
				_ = session.Send(&game.Message{Type: "system.error", Text: "You are no longer here."})
				return
			default:
				log.Printf("dispatching for %s: %v", actor.ActorKey(), err)
				_ = session.Send(&game.Message{Type: "system.error", Text: "Something went wrong."})
			}
		}
	}
}
