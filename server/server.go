// Package server exposes a running game over SSH and WebSocket. Both
// transports are thin: they turn connections into switchboard
// sessions, feed input lines to the dispatcher, and render published
// messages.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/writtenrealms/writtenrealms/game"
	"github.com/writtenrealms/writtenrealms/pemfile"
	"github.com/writtenrealms/writtenrealms/storage"
)

type Config struct {
	SSHAddr string
	WSAddr  string
	Dir     string

	Heartbeat time.Duration
}

func DefaultConfig() Config {
	return Config{
		SSHAddr: "127.0.0.1:15000",
		WSAddr:  "127.0.0.1:15001",
		Dir:     filepath.Join(os.Getenv("HOME"), ".writtenrealms"),
	}
}

type Server struct {
	config  Config
	storage *storage.Storage
	game    *game.Game
}

func New(config Config) (*Server, error) {
	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, errors.WithStack(err)
	}
	store, err := storage.New(context.Background(), config.Dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	g, err := game.New(store, game.Config{Heartbeat: config.Heartbeat})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Server{config: config, storage: store, game: g}, nil
}

func (s *Server) Game() *game.Game {
	return s.game
}

// Start runs the scheduler and both listeners until the context is
// cancelled or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	keys, err := pemfile.Ensure(s.config.Dir, "writtenrealms")
	if err != nil {
		return errors.WithStack(err)
	}
	hostKey, err := os.ReadFile(keys.KeyPath)
	if err != nil {
		return errors.WithStack(err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.game.Start(ctx)
	})
	group.Go(func() error {
		sshServer := &ssh.Server{
			Addr:    s.config.SSHAddr,
			Handler: s.handleSSH,
		}
		if err := sshServer.SetOption(ssh.HostKeyPEM(hostKey)); err != nil {
			return errors.WithStack(err)
		}
		go func() {
			<-ctx.Done()
			_ = sshServer.Close()
		}()
		return errors.WithStack(sshServer.ListenAndServe())
	})
	group.Go(func() error {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWS)
		httpServer := &http.Server{Addr: s.config.WSAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = httpServer.Close()
		}()
		return errors.WithStack(httpServer.ListenAndServe())
	})
	defer s.game.Close()
	return group.Wait()
}
