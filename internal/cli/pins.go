package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
)

const defaultHistoryLimit = 20

type pinJSON struct {
	ID       int64  `json:"id"`
	Package  string `json:"package"`
	Version  string `json:"version"`
	Level    string `json:"level"`
	Role     string `json:"role"`
	Platform string `json:"platform"`
	Site     string `json:"site"`
	Withs    int    `json:"withs"`
}

type revisionJSON struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Changes   int       `json:"changes"`
}

type changeJSON struct {
	PinID      int64  `json:"pin_id"`
	Package    string `json:"package"`
	Level      string `json:"level"`
	Role       string `json:"role"`
	Platform   string `json:"platform"`
	Site       string `json:"site"`
	OldVersion string `json:"old_version"`
	NewVersion string `json:"new_version"`
}

// query runs a single request in its own bridge session.
func (h *Handler) query(ctx *CommandContext, req bridge.Request) (*collector, bool) {
	if !h.RequireBrowse(ctx) {
		return nil, false
	}
	s := h.open(ctx)
	defer s.close()
	if !s.do(req) {
		return nil, false
	}
	return s.results, true
}

func (h *Handler) printNames(ctx *CommandContext, header string, names []string) {
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	ctx.render(output{headers: []string{header}, rows: rows, value: names})
}

// cmdPackages lists package names.
func (h *Handler) cmdPackages(ctx *CommandContext) {
	res, ok := h.query(ctx, bridge.TreeGetPackages{})
	if !ok {
		return
	}
	h.printNames(ctx, "PACKAGE", res.names)
}

// cmdVersions lists the distributions of a package.
func (h *Handler) cmdVersions(ctx *CommandContext) {
	pkg, ok := ctx.RequireArg(0, "package")
	if !ok {
		return
	}
	res, ok := h.query(ctx, bridge.TreeGetPackageDists{Package: pkg})
	if !ok {
		return
	}
	h.printNames(ctx, "VERSION", res.versions)
}

// cmdNames lists shows, roles, platforms or sites.
func (h *Handler) cmdNames(ctx *CommandContext, what string) {
	var req bridge.Request
	switch what {
	case "shows":
		req = bridge.ToolbarGetShows{}
	case "roles":
		req = bridge.ToolbarGetRoles{}
	case "platforms":
		req = bridge.ToolbarGetPlatforms{}
	default:
		req = bridge.ToolbarGetSites{}
	}
	res, ok := h.query(ctx, req)
	if !ok {
		return
	}
	h.printNames(ctx, strings.ToUpper(strings.TrimSuffix(what, "s")), res.names)
}

// cmdLevels lists the sequences and shots of a show.
func (h *Handler) cmdLevels(ctx *CommandContext) {
	show, ok := ctx.RequireArg(0, "show")
	if !ok {
		return
	}
	res, ok := h.query(ctx, bridge.DialogGetLevels{Show: show})
	if !ok {
		return
	}

	var rows [][]string
	for _, seq := range res.levels.Sequences() {
		rows = append(rows, []string{seq, strings.Join(res.levels[seq], " ")})
	}
	ctx.render(output{headers: []string{"SEQUENCE", "SHOTS"}, rows: rows, value: res.levels})
}

// cmdPins lists the version pins matching the filter flags.
func (h *Handler) cmdPins(ctx *CommandContext) {
	q := database.PinQuery{
		Package:  ctx.GetFlag("package"),
		Level:    ctx.GetFlag("level"),
		Role:     ctx.GetFlag("role"),
		Platform: ctx.GetFlag("platform"),
		Site:     ctx.GetFlag("site"),
	}
	res, ok := h.query(ctx, bridge.GetVpins{Query: q})
	if !ok {
		return
	}

	rows := make([][]string, 0, len(res.pins))
	pins := make([]pinJSON, 0, len(res.pins))
	for _, p := range res.pins {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10), p.Package, p.Version, p.Level,
			p.Role, p.Platform, p.Site, strconv.Itoa(p.WithsCount),
		})
		pins = append(pins, pinJSON{
			ID: p.ID, Package: p.Package, Version: p.Version, Level: p.Level,
			Role: p.Role, Platform: p.Platform, Site: p.Site, Withs: p.WithsCount,
		})
	}
	ctx.render(output{
		headers: []string{"ID", "PACKAGE", "VERSION", "LEVEL", "ROLE", "PLATFORM", "SITE", "WITHS"},
		rows:    rows,
		value:   pins,
	})
}

// cmdWiths lists the packages bundled with a pin.
func (h *Handler) cmdWiths(ctx *CommandContext) {
	id, ok := requireID(ctx, 0, "pin-id")
	if !ok {
		return
	}
	res, ok := h.query(ctx, bridge.GetPackageWiths{PinID: id})
	if !ok {
		return
	}
	h.printNames(ctx, "WITH", res.withs)
}

// cmdSet points a pin at another version of its package and records a
// revision.
func (h *Handler) cmdSet(ctx *CommandContext) {
	id, ok := requireID(ctx, 0, "pin-id")
	if !ok {
		return
	}
	version, ok := ctx.RequireArg(1, "version")
	if !ok {
		return
	}
	if !h.RequireBrowse(ctx) {
		return
	}

	s := h.open(ctx)
	defer s.close()

	if !s.do(bridge.GetVpins{}) {
		return
	}
	var pin *database.VersionPin
	for i := range s.results.pins {
		if s.results.pins[i].ID == id {
			pin = &s.results.pins[i]
		}
	}
	if pin == nil {
		ctx.Fail("Error: pin %d not found", id)
		return
	}
	if pin.Version == version {
		ctx.Fail("Error: pin %d is already at %s", id, version)
		return
	}

	change := database.PinChange{PinID: pin.ID, Package: pin.Package, Level: pin.Level, Version: version}
	if !s.do(bridge.SaveVpinChanges{
		Changes: []database.PinChange{change},
		User:    authorName(ctx.User()),
		Comment: ctx.GetFlag("comment"),
	}) {
		return
	}
	if !s.results.savedOK {
		ctx.Fail("Error: nothing saved")
		return
	}

	ctx.render(output{
		headers: []string{"REVISION", "PIN", "PACKAGE", "LEVEL", "OLD", "NEW"},
		rows: [][]string{{
			strconv.FormatInt(s.results.savedRev, 10), strconv.FormatInt(pin.ID, 10),
			pin.Package, pin.Level, pin.Version, version,
		}},
		value: map[string]any{"revision": s.results.savedRev, "pin_id": pin.ID, "version": version},
	})
}

// cmdHistory lists recent revisions.
func (h *Handler) cmdHistory(ctx *CommandContext) {
	q := database.RevisionQuery{Author: ctx.GetFlag("author"), Limit: defaultHistoryLimit}
	if l := ctx.GetFlag("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			ctx.Fail("Invalid limit: %s", l)
			return
		}
		q.Limit = n
	}
	res, ok := h.query(ctx, bridge.GetRevisions{Query: q})
	if !ok {
		return
	}

	rows := make([][]string, 0, len(res.revisions))
	revs := make([]revisionJSON, 0, len(res.revisions))
	for _, r := range res.revisions {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10), r.Author, humanize.Time(r.CreatedAt),
			strconv.Itoa(r.Changes), r.Comment,
		})
		revs = append(revs, revisionJSON{
			ID: r.ID, Author: r.Author, Comment: r.Comment, CreatedAt: r.CreatedAt, Changes: r.Changes,
		})
	}
	ctx.render(output{
		headers: []string{"ID", "AUTHOR", "WHEN", "CHANGES", "COMMENT"},
		rows:    rows,
		value:   revs,
	})
}

// cmdChanges lists the pin changes of one revision.
func (h *Handler) cmdChanges(ctx *CommandContext) {
	id, ok := requireID(ctx, 0, "revision")
	if !ok {
		return
	}
	res, ok := h.query(ctx, bridge.GetChanges{RevisionID: id})
	if !ok {
		return
	}

	rows := make([][]string, 0, len(res.changes))
	changes := make([]changeJSON, 0, len(res.changes))
	for _, c := range res.changes {
		rows = append(rows, []string{
			strconv.FormatInt(c.PinID, 10), c.Package, c.Level, c.Role, c.Platform, c.Site,
			c.OldVersion, c.NewVersion,
		})
		changes = append(changes, changeJSON{
			PinID: c.PinID, Package: c.Package, Level: c.Level, Role: c.Role,
			Platform: c.Platform, Site: c.Site, OldVersion: c.OldVersion, NewVersion: c.NewVersion,
		})
	}
	ctx.render(output{
		headers: []string{"PIN", "PACKAGE", "LEVEL", "ROLE", "PLATFORM", "SITE", "OLD", "NEW"},
		rows:    rows,
		value:   changes,
	})
}

func requireID(ctx *CommandContext, index int, name string) (int64, bool) {
	arg, ok := ctx.RequireArg(index, name)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		ctx.Fail("Invalid %s: %s", name, arg)
		return 0, false
	}
	return id, true
}
