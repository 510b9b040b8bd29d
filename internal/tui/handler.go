package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/server"
)

// SessionOptions configures the browser served to SSH sessions.
type SessionOptions struct {
	Connect bridge.Connector
	// Resolver returns the current access rules. It is called on every save
	// so a config reload applies to sessions that are already open.
	Resolver  func() *access.Resolver
	QueueSize int
	Show      string
}

// Handler returns a bubbletea middleware handler for SSH sessions. Each
// session gets its own bridge worker, stopped when the session ends.
func Handler(opts SessionOptions) bubbletea.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		user := server.GetUserFromContext(s.Context())
		pty, _, ok := s.Pty()
		if !ok {
			// This shouldn't happen as routing middleware checks for PTY
			return nil, nil
		}

		writer := bridge.AuthorizerFunc(func(level string) bool {
			return opts.Resolver().Resolve(user, level).CanWrite()
		})

		inbox := NewInbox(opts.QueueSize)
		worker := bridge.NewWorker(opts.Connect, inbox.Notify,
			bridge.WithQueueSize(opts.QueueSize),
			bridge.WithAuthorizer(writer),
		)
		worker.Start(s.Context())

		app := NewApp(Options{
			Worker:     worker,
			Inbox:      inbox,
			User:       user,
			Author:     user.Author(),
			Permission: opts.Resolver().Highest(user),
			Writer:     writer,
			Show:       opts.Show,
			Width:      pty.Window.Width,
			Height:     pty.Window.Height,
		})

		go func() {
			<-s.Context().Done()
			app.Shutdown()
			inbox.Close()
			worker.Wait()
		}()

		return app, []tea.ProgramOption{
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
		}
	}
}
