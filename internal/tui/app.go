// Package tui is the interactive pin browser. All database work goes through
// a bridge worker; the App only submits requests and applies the responses
// the bridge handler dispatches to it.
package tui

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
)

const (
	historyLimit  = 100
	statusTimeout = 4 * time.Second
)

type mode int

const (
	modeBrowse mode = iota
	modeDialog
	modeComment
	modeHistory
	modeHelp
)

// Options configures an App.
type Options struct {
	Worker *bridge.Worker
	Inbox  *Inbox

	User       *access.UserInfo
	Author     string
	Permission access.Permission
	// Writer decides which levels may be edited. Nil allows every level.
	Writer bridge.Authorizer

	// Show selected once the show list arrives
	Show string

	Width, Height int
}

// App is the main TUI application model.
type App struct {
	// Dependencies
	worker   *bridge.Worker
	inbox    *Inbox
	handler  *bridge.Handler
	shutdown *bridge.Shutdown

	user       *access.UserInfo
	author     string
	permission access.Permission
	writer     bridge.Authorizer

	// Window size
	width, height int

	focus Focus
	mode  mode

	// Toolbar filters
	show, role, platform, site selector
	packageFilter string
	initialShow   string

	packages packagesPane
	pins     pinsPane
	withs    withsPane
	dialog   vpinDialog
	history  historyPane

	// Pending edits, keyed by pin id, in the order they were made
	staged      map[int64]database.PinChange
	stagedOrder []int64
	saving      bool

	// Submitted requests awaiting a response, oldest first. answering is
	// the request the notification being handled responds to.
	inflight  []bridge.Request
	answering bridge.Request

	comment textinput.Model
	help    help.Model

	status    string
	statusErr bool
	statusSeq int
	cmds      []tea.Cmd

	fatal error
	keys  KeyMap
}

// NewApp creates a new TUI application. The worker may already be running.
func NewApp(opts Options) *App {
	pinsTable := table.New(
		table.WithColumns(pinColumns(opts.Width)),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(max(opts.Height-8, 3)),
	)
	pinsTable.SetStyles(table.Styles{
		Header:   tableHeaderStyle,
		Cell:     tableCellStyle,
		Selected: tableSelectedRowStyle,
	})

	comment := textinput.New()
	comment.Placeholder = "describe the change"
	comment.Prompt = "comment> "
	comment.PromptStyle = promptStyle
	comment.CharLimit = 200

	a := &App{
		worker:      opts.Worker,
		inbox:       opts.Inbox,
		shutdown:    bridge.NewShutdown(opts.Worker),
		user:        opts.User,
		author:      opts.Author,
		permission:  opts.Permission,
		writer:      opts.Writer,
		width:       opts.Width,
		height:      opts.Height,
		focus:       FocusPins,
		show:        newSelector("show"),
		role:        newSelector("role"),
		platform:    newSelector("platform"),
		site:        newSelector("site"),
		initialShow: opts.Show,
		pins:        pinsPane{table: pinsTable},
		staged:      make(map[int64]database.PinChange),
		comment:     comment,
		help:        help.New(),
		keys:        DefaultKeyMap(),
	}
	a.help.ShowAll = true
	a.handler = bridge.NewHandler(opts.Worker, a.views())
	a.updateFocus()
	return a
}

// Err returns the error that ended the session, if any.
func (a *App) Err() error {
	return a.fatal
}

// Shutdown asks the worker to stop. It is safe to call from every exit path.
func (a *App) Shutdown() {
	if err := a.shutdown.Trigger(); err != nil {
		log.Printf("tui: failed to stop worker: %v", err)
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.refresh()
	return a.drain(tea.Batch(a.inbox.Next(), textinput.Blink))
}

func (a *App) refresh() {
	a.submit(bridge.TreeGetPackages{})
	a.submit(bridge.ToolbarGetShows{})
	a.submit(bridge.ToolbarGetRoles{})
	a.submit(bridge.ToolbarGetPlatforms{})
	a.submit(bridge.ToolbarGetSites{})
	a.requestPins()
}

func (a *App) submit(req bridge.Request) {
	err := a.worker.Submit(req)
	if err == nil {
		a.inflight = append(a.inflight, req)
		return
	}
	if errors.Is(err, bridge.ErrWorkerExited) {
		return
	}
	a.setError(err.Error())
}

// answered pops the request the next response belongs to. Responses come
// back in submit order.
func (a *App) answered() bridge.Request {
	if len(a.inflight) == 0 {
		return nil
	}
	req := a.inflight[0]
	a.inflight[0] = nil
	a.inflight = a.inflight[1:]
	return req
}

func (a *App) pinQuery() database.PinQuery {
	return database.PinQuery{
		Package:  a.packageFilter,
		Level:    a.show.value(),
		Role:     a.role.value(),
		Platform: a.platform.value(),
		Site:     a.site.value(),
	}
}

func (a *App) requestPins() {
	a.submit(bridge.GetVpins{Query: a.pinQuery()})
}

func (a *App) requestWiths() {
	pin, ok := a.pins.current()
	if !ok {
		a.withs = withsPane{}
		return
	}
	a.withs.stale = true
	a.submit(bridge.GetPackageWiths{PinID: pin.ID, Row: a.pins.selected})
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case NotificationMsg:
		a.answering = a.answered()
		err := a.handler.OnNotification(msg.Tag)
		a.answering = nil
		if err != nil {
			log.Printf("tui: %v", err)
			a.fatal = err
			a.Shutdown()
			return a, tea.Quit
		}
		return a, a.drain(a.inbox.Next())

	case tea.KeyMsg:
		model, cmd := a.handleKey(msg)
		return model, a.drain(cmd)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case statusTimeoutMsg:
		if msg.seq == a.statusSeq && !a.statusErr {
			a.status = ""
		}
		return a, nil
	}

	if a.mode == modeComment {
		var cmd tea.Cmd
		a.comment, cmd = a.comment.Update(msg)
		return a, cmd
	}
	return a, nil
}

// drain batches cmd with the commands queued by view callbacks.
func (a *App) drain(cmd tea.Cmd) tea.Cmd {
	cmds := append(a.cmds, cmd)
	a.cmds = nil
	return tea.Batch(cmds...)
}

func (a *App) setInfo(msg string) {
	a.status = msg
	a.statusErr = false
	a.statusSeq++
	seq := a.statusSeq
	a.cmds = append(a.cmds, tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return statusTimeoutMsg{seq: seq}
	}))
}

func (a *App) setError(msg string) {
	a.status = msg
	a.statusErr = true
	a.statusSeq++
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		a.Shutdown()
		return a, tea.Quit
	}

	switch a.mode {
	case modeHelp:
		if key.Matches(msg, a.keys.Back) || key.Matches(msg, a.keys.Help) {
			a.mode = modeBrowse
		}
		return a, nil
	case modeDialog:
		return a.handleDialogKey(msg)
	case modeComment:
		return a.handleCommentKey(msg)
	case modeHistory:
		return a.handleHistoryKey(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.Shutdown()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.mode = modeHelp

	case key.Matches(msg, a.keys.NextPane), key.Matches(msg, a.keys.Right):
		a.focus = (a.focus + 1) % paneCount
		a.updateFocus()

	case key.Matches(msg, a.keys.PrevPane), key.Matches(msg, a.keys.Left):
		a.focus = (a.focus + paneCount - 1) % paneCount
		a.updateFocus()

	case key.Matches(msg, a.keys.Up):
		a.move(-1)

	case key.Matches(msg, a.keys.Down):
		a.move(1)

	case key.Matches(msg, a.keys.Select):
		a.handleSelect()

	case key.Matches(msg, a.keys.Show):
		a.show.next()
		a.requestPins()
	case key.Matches(msg, a.keys.Role):
		a.role.next()
		a.requestPins()
	case key.Matches(msg, a.keys.Platform):
		a.platform.next()
		a.requestPins()
	case key.Matches(msg, a.keys.Site):
		a.site.next()
		a.requestPins()

	case key.Matches(msg, a.keys.Edit):
		a.openDialog()

	case key.Matches(msg, a.keys.Save):
		return a, a.startSave()

	case key.Matches(msg, a.keys.Discard):
		if len(a.staged) > 0 {
			a.clearStaged()
			a.setInfo("discarded pending changes")
		}

	case key.Matches(msg, a.keys.History):
		a.mode = modeHistory
		a.history.changes = nil
		a.history.changesFor = 0
		a.submit(bridge.GetRevisions{Query: database.RevisionQuery{Limit: historyLimit}})

	case key.Matches(msg, a.keys.Refresh):
		a.refresh()
	}
	return a, nil
}

func (a *App) move(delta int) {
	switch a.focus {
	case FocusPackages:
		next := a.packages.selected + delta
		if next >= 0 && next < len(a.packages.names) {
			a.packages.selected = next
		}
	case FocusPins:
		next := a.pins.selected + delta
		if next >= 0 && next < len(a.pins.pins) {
			a.pins.selected = next
			a.pins.table.SetCursor(next)
			a.requestWiths()
		}
	}
}

// handleSelect toggles the package filter from the packages pane.
func (a *App) handleSelect() {
	if a.focus != FocusPackages {
		return
	}
	pkg := a.packages.current()
	if pkg == "" {
		return
	}
	if a.packageFilter == pkg {
		a.packageFilter = ""
		a.packages.expanded = ""
	} else {
		a.packageFilter = pkg
		a.packages.expanded = pkg
		a.submit(bridge.TreeGetPackageDists{Package: pkg})
	}
	a.pins.selected = 0
	a.requestPins()
}

func (a *App) canEdit(level string) bool {
	if !a.permission.CanWrite() {
		return false
	}
	return a.writer == nil || a.writer.CanWriteLevel(level)
}

func (a *App) openDialog() {
	pin, ok := a.pins.current()
	if !ok {
		return
	}
	if !a.canEdit(pin.Level) {
		a.setError(fmt.Sprintf("no write access at %s", pin.Level))
		return
	}

	a.dialog.reset(pin, a.packages.versions[pin.Package])
	if change, ok := a.staged[pin.ID]; ok {
		for i, v := range a.dialog.versions {
			if v == change.Version {
				a.dialog.index = i
			}
		}
	}
	a.mode = modeDialog

	a.submit(bridge.TreeGetPackageDists{Package: pin.Package})
	if a.dialog.show != "" {
		a.submit(bridge.DialogGetLevels{Show: a.dialog.show})
	}
	a.submit(bridge.DialogGetRoles{})
	a.submit(bridge.DialogGetPlatforms{})
	a.submit(bridge.DialogGetSites{})
}

func (a *App) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := &a.dialog
	switch {
	case key.Matches(msg, a.keys.Back):
		d.open = false
		a.mode = modeBrowse
	case key.Matches(msg, a.keys.Left), key.Matches(msg, a.keys.Up):
		if d.index > 0 {
			d.index--
		}
	case key.Matches(msg, a.keys.Right), key.Matches(msg, a.keys.Down):
		if d.index < len(d.versions)-1 {
			d.index++
		}
	case key.Matches(msg, a.keys.Select):
		if v := d.version(); v != "" {
			a.stage(d.pin, v)
			a.updatePinsTable()
		}
		d.open = false
		a.mode = modeBrowse
	}
	return a, nil
}

func (a *App) stage(pin database.VersionPin, version string) {
	_, exists := a.staged[pin.ID]
	if version == pin.Version {
		if exists {
			delete(a.staged, pin.ID)
			for i, id := range a.stagedOrder {
				if id == pin.ID {
					a.stagedOrder = append(a.stagedOrder[:i], a.stagedOrder[i+1:]...)
					break
				}
			}
		}
		return
	}
	if !exists {
		a.stagedOrder = append(a.stagedOrder, pin.ID)
	}
	a.staged[pin.ID] = database.PinChange{
		PinID:   pin.ID,
		Package: pin.Package,
		Level:   pin.Level,
		Version: version,
	}
}

func (a *App) stagedChanges() []database.PinChange {
	changes := make([]database.PinChange, 0, len(a.stagedOrder))
	for _, id := range a.stagedOrder {
		changes = append(changes, a.staged[id])
	}
	return changes
}

func (a *App) clearStaged() {
	a.staged = make(map[int64]database.PinChange)
	a.stagedOrder = nil
	a.updatePinsTable()
}

func (a *App) startSave() tea.Cmd {
	if a.saving {
		return nil
	}
	if len(a.staged) == 0 {
		a.setInfo("no pending changes")
		return nil
	}
	a.mode = modeComment
	a.comment.SetValue("")
	return a.comment.Focus()
}

func (a *App) handleCommentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.comment.Blur()
		a.mode = modeBrowse
		return a, nil
	case key.Matches(msg, a.keys.Select):
		a.comment.Blur()
		a.mode = modeBrowse
		a.saving = true
		a.submit(bridge.SaveVpinChanges{
			Changes: a.stagedChanges(),
			User:    a.author,
			Comment: a.comment.Value(),
		})
		return a, nil
	}

	var cmd tea.Cmd
	a.comment, cmd = a.comment.Update(msg)
	return a, cmd
}

func (a *App) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	h := &a.history
	switch {
	case key.Matches(msg, a.keys.Back), key.Matches(msg, a.keys.History):
		a.mode = modeBrowse
	case key.Matches(msg, a.keys.Quit):
		a.Shutdown()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Up):
		if h.selected > 0 {
			h.selected--
		}
	case key.Matches(msg, a.keys.Down):
		if h.selected < len(h.revisions)-1 {
			h.selected++
		}
	case key.Matches(msg, a.keys.Select):
		if rev, ok := h.current(); ok {
			a.submit(bridge.GetChanges{RevisionID: rev.ID})
		}
	case key.Matches(msg, a.keys.Refresh):
		a.submit(bridge.GetRevisions{Query: database.RevisionQuery{Limit: historyLimit}})
	}
	return a, nil
}

func (a *App) updateFocus() {
	a.pins.table.Blur()
	if a.focus == FocusPins {
		a.pins.table.Focus()
	}
}

func (a *App) offline() bool {
	select {
	case <-a.worker.Done():
		return true
	default:
		return false
	}
}
