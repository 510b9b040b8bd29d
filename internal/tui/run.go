package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"golang.org/x/term"
)

// RunOptions configures a browser on the local terminal.
type RunOptions struct {
	Connect    bridge.Connector
	User       *access.UserInfo
	Author     string
	Permission access.Permission
	Writer     bridge.Authorizer
	Show       string
	QueueSize  int
}

// Run opens the browser on the local terminal and blocks until it exits.
// The worker is stopped and joined before Run returns.
func Run(ctx context.Context, opts RunOptions) error {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 120, 40
	}

	inbox := NewInbox(opts.QueueSize)
	workerOpts := []bridge.Option{bridge.WithQueueSize(opts.QueueSize)}
	if opts.Writer != nil {
		workerOpts = append(workerOpts, bridge.WithAuthorizer(opts.Writer))
	}
	worker := bridge.NewWorker(opts.Connect, inbox.Notify, workerOpts...)
	worker.Start(ctx)

	app := NewApp(Options{
		Worker:     worker,
		Inbox:      inbox,
		User:       opts.User,
		Author:     opts.Author,
		Permission: opts.Permission,
		Writer:     opts.Writer,
		Show:       opts.Show,
		Width:      width,
		Height:     height,
	})

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	app.Shutdown()
	inbox.Close()
	worker.Wait()

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return app.Err()
}
