// Package cli implements the command-line interface for both SSH and local modes.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/ssh"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/server"
)

// Handler handles CLI commands over SSH or locally.
type Handler struct {
	connect  bridge.Connector
	resolver func() *access.Resolver
	version  string
}

// NewHandler creates a new CLI handler. resolver returns the access rules
// in force when a command runs.
func NewHandler(connect bridge.Connector, resolver func() *access.Resolver, version string) *Handler {
	return &Handler{
		connect:  connect,
		resolver: resolver,
		version:  version,
	}
}

// LocalContext wraps command execution for local (non-SSH) mode.
type LocalContext struct {
	User *access.UserInfo
	Args []string
	Out  io.Writer
	Err  io.Writer
}

// NewLocalContext creates a context for local CLI execution.
func NewLocalContext(user *access.UserInfo, args []string, out, errOut io.Writer) *LocalContext {
	return &LocalContext{
		User: user,
		Args: args,
		Out:  out,
		Err:  errOut,
	}
}

// HandleLocal processes a CLI command in local mode (no SSH session).
func (h *Handler) HandleLocal(ctx context.Context, lctx *LocalContext) error {
	if len(lctx.Args) == 0 {
		fmt.Fprintln(lctx.Out, "No command specified. Run 'help' for usage.")
		return nil
	}

	cctx := &CommandContext{
		ctx:  access.WithUser(ctx, lctx.User),
		Args: lctx.Args[1:],
		Out:  lctx.Out,
		Err:  lctx.Err,
	}

	h.routeCommand(lctx.Args[0], cctx)

	if cctx.exitCode != 0 {
		return fmt.Errorf("command failed with exit code %d", cctx.exitCode)
	}
	return nil
}

// Handle processes an SSH session with a CLI command.
func (h *Handler) Handle(s ssh.Session) {
	cmd := s.Command()
	if len(cmd) == 0 {
		fmt.Fprintln(s, "No command specified. Run 'help' for usage.")
		return
	}

	ctx := access.WithUser(s.Context(), server.GetUserFromContext(s.Context()))
	if session := server.GetSessionFromSSH(s); session != nil {
		ctx = access.WithSession(ctx, session.Info())
	}

	cctx := &CommandContext{
		ctx:      ctx,
		Session:  s,
		Args:     cmd[1:],
		Out:      s,
		Err:      s.Stderr(),
		exitCode: 0,
	}

	h.routeCommand(cmd[0], cctx)

	s.Exit(cctx.exitCode)
}

// routeCommand routes a command to its handler.
func (h *Handler) routeCommand(cmd string, ctx *CommandContext) {
	switch cmd {
	// Catalog commands
	case "packages":
		h.cmdPackages(ctx)
	case "versions":
		h.cmdVersions(ctx)
	case "shows", "roles", "platforms", "sites":
		h.cmdNames(ctx, cmd)
	case "levels":
		h.cmdLevels(ctx)

	// Pin commands
	case "pins":
		h.cmdPins(ctx)
	case "withs":
		h.cmdWiths(ctx)
	case "set":
		h.cmdSet(ctx)

	// Audit commands
	case "history":
		h.cmdHistory(ctx)
	case "changes":
		h.cmdChanges(ctx)

	// Admin commands
	case "sessions":
		h.cmdSessions(ctx)

	// Utility commands
	case "whoami":
		h.cmdWhoami(ctx)
	case "help":
		h.cmdHelp(ctx)
	case "version":
		h.cmdVersion(ctx)

	default:
		fmt.Fprintf(ctx.Err, "Unknown command: %s\n", cmd)
		fmt.Fprintln(ctx.Err, "Run 'help' for usage.")
		ctx.Exit(1)
	}
}

// CommandContext provides context for command execution.
type CommandContext struct {
	ctx      context.Context
	Session  ssh.Session // nil in local mode
	Args     []string
	Out      io.Writer
	Err      io.Writer
	exitCode int
}

// Context returns the context carrying the caller's user and session.
func (c *CommandContext) Context() context.Context {
	return c.ctx
}

// User returns the caller.
func (c *CommandContext) User() *access.UserInfo {
	user, _ := access.UserFromContext(c.ctx)
	return user
}

// Exit sets the exit code (used instead of calling Session.Exit directly).
func (c *CommandContext) Exit(code int) {
	c.exitCode = code
}

// Fail reports an error and sets a non-zero exit code.
func (c *CommandContext) Fail(format string, args ...any) {
	fmt.Fprintf(c.Err, format+"\n", args...)
	c.Exit(1)
}

// GetSessionID returns the session ID or empty string.
func (c *CommandContext) GetSessionID() string {
	if session, ok := access.SessionFromContext(c.ctx); ok {
		return session.ID
	}
	return ""
}

// RequireArg ensures a positional argument is provided.
func (c *CommandContext) RequireArg(index int, name string) (string, bool) {
	args := c.GetPositionalArgs()
	if index >= len(args) {
		c.Fail("Missing required argument: %s", name)
		return "", false
	}
	return args[index], true
}

// GetFlag returns a flag value from args (e.g., --format=json).
func (c *CommandContext) GetFlag(name string) string {
	prefix := "--" + name + "="
	shortPrefix := "-" + name + "="
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
		if strings.HasPrefix(arg, shortPrefix) {
			return strings.TrimPrefix(arg, shortPrefix)
		}
	}
	return ""
}

// GetPositionalArgs returns args that are not flags.
func (c *CommandContext) GetPositionalArgs() []string {
	var result []string
	for _, arg := range c.Args {
		if !strings.HasPrefix(arg, "-") {
			result = append(result, arg)
		}
	}
	return result
}

// RequireBrowse checks that the caller may read pins somewhere.
func (h *Handler) RequireBrowse(ctx *CommandContext) bool {
	if !h.resolver().CanBrowse(ctx.User()) {
		ctx.Fail("Access denied: no read access")
		return false
	}
	return true
}

// RequireAdmin checks if user has admin access.
func (h *Handler) RequireAdmin(ctx *CommandContext) bool {
	if !h.resolver().Highest(ctx.User()).CanAdmin() {
		ctx.Fail("Access denied: admin access required")
		return false
	}
	return true
}
