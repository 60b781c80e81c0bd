package server

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/writtenrealms/writtenrealms/game"
	"github.com/writtenrealms/writtenrealms/structs"
)

// sshSession renders published messages onto the player's terminal.
// Messages without a text form fall back to their JSON encoding.
type sshSession struct {
	mu   sync.Mutex
	term *term.Terminal
}

func (s *sshSession) Send(message *game.Message) error {
	line := message.Text
	if line == "" {
		raw, err := message.Encode()
		if err != nil {
			return errors.WithStack(err)
		}
		line = string(raw)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.term.Write([]byte(line + "\n"))
	return errors.WithStack(err)
}

// handleSSH runs one SSH session. The SSH username names the player;
// unknown players are turned away, creation happens elsewhere.
func (s *Server) handleSSH(sess ssh.Session) {
	ctx := sess.Context()
	actor, err := s.storage.GetActor(ctx, structs.KindPlayer, sess.User())
	if err != nil {
		fmt.Fprintf(sess, "No player %q here.\n", sess.User())
		return
	}
	terminal := term.NewTerminal(sess, "> ")
	connectionID := uuid.NewString()
	session := &sshSession{term: terminal}
	s.game.Switchboard().Register(actor.ActorKey(), connectionID, session)
	defer s.game.Switchboard().Unregister(actor.ActorKey(), connectionID)

	fmt.Fprintf(sess, "Welcome, %s.\n", actor.ActorName())
	for {
		line, err := terminal.ReadLine()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("reading from %s: %v", sess.RemoteAddr(), err)
			return
		}
		if err := s.game.DispatchLine(ctx, structs.KindPlayer, actor.ActorKey(), line, connectionID, game.LineOptions{}); err != nil {
			switch {
			case errors.Is(err, game.ErrHandlerNotFound):
				_ = session.Send(&game.Message{Text: "That is not a command."})
			case errors.Is(err, game.ErrActorNotFound):
				_ = session.Send(&game.Message{Text: "You are no longer here."})
				return
			default:
				log.Printf("dispatching %q for %s: %v", line, actor.ActorKey(), err)
				_ = session.Send(&game.Message{Text: "Something went wrong."})
			}
		}
	}
}
