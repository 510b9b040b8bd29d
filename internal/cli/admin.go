package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/vpin-tui/internal/server"
)

// cmdWhoami shows current user information.
func (h *Handler) cmdWhoami(ctx *CommandContext) {
	user := ctx.User()
	if user == nil {
		fmt.Fprintln(ctx.Out, "Not authenticated")
		return
	}
	permission := h.resolver().Highest(user)

	if ctx.GetFlag("format") == "json" {
		info := map[string]any{
			"name":       user.DisplayName(),
			"admin":      permission.CanAdmin(),
			"anonymous":  user.IsAnonymous,
			"permission": permission.String(),
			"session_id": ctx.GetSessionID(),
		}
		if user.PublicKeyFP != "" {
			info["public_key_fp"] = user.PublicKeyFP
		}
		printJSON(ctx.Out, info)
		return
	}

	printTable(ctx.Out, []string{"User:", user.DisplayName()}, [][]string{
		{"Permission:", permission.String()},
		{"Anonymous:", fmt.Sprint(user.IsAnonymous)},
		{"Key:", user.PublicKeyFP},
		{"Session:", ctx.GetSessionID()},
	})
}

// cmdSessions lists active SSH sessions.
func (h *Handler) cmdSessions(ctx *CommandContext) {
	if !h.RequireAdmin(ctx) {
		return
	}
	if ctx.Session == nil {
		ctx.Fail("sessions command is only available in SSH server mode")
		return
	}
	sessionMgr := server.GetSessionMgrFromSSH(ctx.Session)
	if sessionMgr == nil {
		ctx.Fail("Session manager not available")
		return
	}

	sessions := sessionMgr.ListActiveSessions()
	rows := make([][]string, 0, len(sessions))
	result := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID[:8], s.User.DisplayName(), s.RemoteAddr,
			humanize.RelTime(s.StartTime, time.Now(), "", ""),
		})
		result = append(result, map[string]any{
			"id":          s.ID,
			"user":        s.User.DisplayName(),
			"remote_addr": s.RemoteAddr,
			"started_at":  s.StartTime,
		})
	}
	ctx.render(output{headers: []string{"ID", "USER", "REMOTE", "DURATION"}, rows: rows, value: result})
}

// cmdHelp shows help information.
func (h *Handler) cmdHelp(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()
	if len(args) > 0 {
		h.showCommandHelp(ctx, args[0])
		return
	}

	fmt.Fprintln(ctx.Out, `vpin-tui - version pin browser

USAGE:
  ssh host command [arguments] [options]
  vpin-tui <database> command [arguments] [options]

CATALOG COMMANDS:
  packages                         List packages
  versions <package>               List the versions of a package
  shows                            List shows
  roles                            List roles
  platforms                        List platforms
  sites                            List sites
  levels <show>                    List the sequences and shots of a show

PIN COMMANDS:
  pins [filters]                   List version pins
  withs <pin-id>                   List the packages bundled with a pin
  set <pin-id> <version>           Change the version of a pin (write access)

AUDIT COMMANDS:
  history                          List recent revisions
  changes <revision>               List the changes of a revision

ADMIN COMMANDS (requires admin access):
  sessions                         List active sessions

UTILITY COMMANDS:
  whoami                           Show current user info
  help [command]                   Show help
  version                          Show version

COMMON OPTIONS:
  --format=json                    Output in JSON format
  --format=csv                     Output in CSV format

Run 'help <command>' for detailed help on a specific command.`)
}

// showCommandHelp shows help for a specific command.
func (h *Handler) showCommandHelp(ctx *CommandContext, command string) {
	help := map[string]string{
		"pins": `pins - List version pins

USAGE:
  pins [options]

OPTIONS:
  --package=NAME     Only pins of this package
  --level=LEVEL      Pins at this level and below (e.g. dev01.RD)
  --role=ROLE        Pins of this role and its sub-roles
  --platform=NAME    Pins of this platform
  --site=NAME        Pins of this site
  --format=json      Output as JSON
  --format=csv       Output as CSV

EXAMPLES:
  pins --package=maya
  pins --level=dev01 --format=json`,

		"set": `set - Change the version of a pin

USAGE:
  set <pin-id> <version> [--comment="why"]

Records a revision authored by the connected user. Requires write access
at the level of the pin.

EXAMPLE:
  set 12 2022.1 --comment="maya 2022 for dev01"`,

		"history": `history - List recent revisions

USAGE:
  history [options]

OPTIONS:
  --author=NAME    Only revisions by this author
  --limit=N        Number of revisions (default: 20)`,

		"levels": `levels - List the sequences and shots of a show

USAGE:
  levels <show>

EXAMPLE:
  levels dev01`,
	}

	if text, ok := help[command]; ok {
		fmt.Fprintln(ctx.Out, text)
	} else {
		fmt.Fprintf(ctx.Out, "No detailed help available for '%s'\n", command)
	}
}

// cmdVersion shows version information.
func (h *Handler) cmdVersion(ctx *CommandContext) {
	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, map[string]string{"version": h.version})
		return
	}
	fmt.Fprintf(ctx.Out, "vpin-tui %s\n", h.version)
}
