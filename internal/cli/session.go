package cli

import (
	"errors"

	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
)

// session is a headless bridge: the worker's notifier feeds a channel and
// the command goroutine plays the event loop, handing each tag to the
// bridge handler.
type session struct {
	ctx     *CommandContext
	worker  *bridge.Worker
	handler *bridge.Handler
	tags    chan string
	results *collector
}

func (h *Handler) open(ctx *CommandContext) *session {
	user := ctx.User()
	resolver := h.resolver
	writer := bridge.AuthorizerFunc(func(level string) bool {
		return resolver().Resolve(user, level).CanWrite()
	})

	s := &session{
		ctx:     ctx,
		tags:    make(chan string, 2),
		results: &collector{},
	}
	s.worker = bridge.NewWorker(h.connect, s.notify,
		bridge.WithQueueSize(2),
		bridge.WithAuthorizer(writer),
	)
	s.handler = bridge.NewHandler(s.worker, s.results.views())
	s.worker.Start(ctx.Context())
	return s
}

func (s *session) notify(tag string) {
	s.tags <- tag
}

// do sends one request and applies its response. A worker error is
// reported on the command's stderr.
func (s *session) do(req bridge.Request) bool {
	s.results.alert = ""
	if err := s.worker.Submit(req); err != nil {
		if errors.Is(err, bridge.ErrWorkerExited) && s.drain() {
			return false
		}
		s.ctx.Fail("Error: %v", err)
		return false
	}

	select {
	case tag := <-s.tags:
		if err := s.handler.OnNotification(tag); err != nil {
			s.ctx.Fail("Error: %v", err)
			return false
		}
	case <-s.ctx.Context().Done():
		s.ctx.Fail("Error: %v", s.ctx.Context().Err())
		return false
	}

	if s.results.alert != "" {
		s.ctx.Fail("Error: %s", s.results.alert)
		return false
	}
	return true
}

// drain reports a response the worker left behind when it exited, such
// as a connection failure.
func (s *session) drain() bool {
	select {
	case tag := <-s.tags:
		if err := s.handler.OnNotification(tag); err != nil {
			s.ctx.Fail("Error: %v", err)
			return true
		}
		if s.results.alert != "" {
			s.ctx.Fail("Error: %s", s.results.alert)
			return true
		}
	default:
	}
	return false
}

func (s *session) close() {
	if err := bridge.NewShutdown(s.worker).Trigger(); err != nil && !errors.Is(err, bridge.ErrWorkerExited) {
		s.ctx.Fail("Error: %v", err)
	}
	s.worker.Wait()
}

// collector receives every response family of a command session.
type collector struct {
	names     []string
	versions  []string
	levels    database.LevelMap
	withs     []string
	pins      []database.VersionPin
	revisions []database.Revision
	changes   []database.Change
	savedOK   bool
	savedRev  int64
	alert     string
}

func (c *collector) views() bridge.Views {
	return bridge.Views{
		Packages:   c,
		Toolbar:    c,
		Dialog:     c,
		Withs:      c,
		MainWindow: c,
		Alerts:     c,
	}
}

func (c *collector) SetPackages(names []string)                  { c.names = names }
func (c *collector) SetPackageDists(_ string, versions []string) { c.versions = versions }
func (c *collector) SetShows(names []string)                     { c.names = names }
func (c *collector) SetRoles(names []string)                     { c.names = names }
func (c *collector) SetPlatforms(names []string)                 { c.names = names }
func (c *collector) SetSites(names []string)                     { c.names = names }

func (c *collector) SetLevels(_ string, levels database.LevelMap) { c.levels = levels }

func (c *collector) SetWiths(_ int64, _ int, withs []string) { c.withs = withs }

func (c *collector) SetVpins(_ database.PinQuery, pins []database.VersionPin) { c.pins = pins }
func (c *collector) SetRevisions(revs []database.Revision)                    { c.revisions = revs }
func (c *collector) SetChanges(_ int64, changes []database.Change)            { c.changes = changes }

func (c *collector) VpinChangesSaved(ok bool, revisionID int64) {
	c.savedOK = ok
	c.savedRev = revisionID
}

func (c *collector) Alert(message string) { c.alert = message }

// authorName is the author recorded for revisions saved by user.
func authorName(user *access.UserInfo) string {
	if author := user.Author(); author != "" {
		return author
	}
	return "unknown"
}
