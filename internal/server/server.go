// Package server serves the pin browser and its commands over SSH.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/config"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Server is the SSH server for vpin-tui.
type Server struct {
	config        *config.Config
	resolver      atomic.Pointer[access.Resolver]
	sessionMgr    *SessionManager
	authenticator *Authenticator
	sshServer     *ssh.Server
	tuiHandler    bubbletea.Handler
	cliHandler    func(ssh.Session)
}

// NewServer creates a new SSH server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		config:        cfg,
		sessionMgr:    NewSessionManager(),
		authenticator: NewAuthenticator(cfg),
	}
	s.resolver.Store(cfg.BuildResolver())
	return s
}

// Resolver returns the access rules currently in force.
func (s *Server) Resolver() *access.Resolver {
	return s.resolver.Load()
}

// UpdateResolver swaps the access rules. Open sessions see the new rules
// on their next save.
func (s *Server) UpdateResolver(r *access.Resolver) {
	s.resolver.Store(r)
}

// SetTUIHandler sets the Bubble Tea handler for interactive sessions.
func (s *Server) SetTUIHandler(handler bubbletea.Handler) {
	s.tuiHandler = handler
}

// SetCLIHandler sets the handler for CLI commands.
func (s *Server) SetCLIHandler(handler func(ssh.Session)) {
	s.cliHandler = handler
}

func (s *Server) build() (*ssh.Server, error) {
	hostKey := s.config.HostKeyPath()
	if err := os.MkdirAll(filepath.Dir(hostKey), 0700); err != nil {
		return nil, fmt.Errorf("failed to create host key directory: %w", err)
	}

	// Order matters: last middleware wraps first
	middleware := []wish.Middleware{
		s.routingMiddleware(),
		BrowseMiddleware(s.Resolver),
		SessionMiddleware(s.sessionMgr),
		LoggingMiddleware(),
	}

	opts := []ssh.Option{
		wish.WithAddress(s.config.ListenAddr()),
		wish.WithHostKeyPath(hostKey),
		wish.WithPublicKeyAuth(s.authenticator.PublicKeyHandler()),
		wish.WithKeyboardInteractiveAuth(s.authenticator.KeyboardInteractiveHandler()),
		wish.WithMiddleware(middleware...),
	}
	if d := s.config.GetIdleTimeout(); d > 0 {
		opts = append(opts, wish.WithIdleTimeout(d))
	}
	if d := s.config.GetMaxTimeout(); d > 0 {
		opts = append(opts, wish.WithMaxTimeout(d))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH server: %w", err)
	}
	return server, nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr(), err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully. Sessions still open after the timeout are closed.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	server, err := s.build()
	if err != nil {
		l.Close()
		return err
	}
	s.sshServer = server

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting SSH server on %s", l.Addr())
		if err := server.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			return fmt.Errorf("SSH server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down SSH server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			server.Close()
			return fmt.Errorf("failed to shut down SSH server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessionMgr
}

// routingMiddleware routes requests to either TUI or CLI handler.
func (s *Server) routingMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if len(sess.Command()) > 0 {
				if s.cliHandler != nil {
					s.cliHandler(sess)
				} else {
					wish.Fatalln(sess, "CLI commands are not available")
				}
				return
			}

			_, _, hasPty := sess.Pty()
			if !hasPty {
				wish.Fatalln(sess, "PTY required for interactive mode. Use -t flag or provide a command.")
				return
			}

			if s.tuiHandler == nil {
				wish.Fatalln(sess, "TUI is not available")
				return
			}
			bubbletea.Middleware(s.tuiHandler)(next)(sess)
		}
	}
}
