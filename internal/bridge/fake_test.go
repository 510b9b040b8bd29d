package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
)

var errBoom = errors.New("boom")

// fakeStore answers every query with canned data. Methods named in fail
// return errBoom instead.
type fakeStore struct {
	fail map[string]bool

	mu     sync.Mutex
	closed bool
	saves  int
}

func (f *fakeStore) check(method string) error {
	if f.fail[method] {
		return fmt.Errorf("%s: %w", method, errBoom)
	}
	return nil
}

func (f *fakeStore) Packages(context.Context) ([]string, error) {
	if err := f.check("Packages"); err != nil {
		return nil, err
	}
	return []string{"maya", "nuke"}, nil
}

func (f *fakeStore) PackageDists(_ context.Context, pkg string) ([]string, error) {
	if err := f.check("PackageDists"); err != nil {
		return nil, err
	}
	return []string{pkg + "-1", pkg + "-2"}, nil
}

func (f *fakeStore) Shows(context.Context) ([]string, error) {
	if err := f.check("Shows"); err != nil {
		return nil, err
	}
	return []string{"dev01"}, nil
}

func (f *fakeStore) Roles(context.Context) ([]string, error) {
	if err := f.check("Roles"); err != nil {
		return nil, err
	}
	return []string{"any", "model"}, nil
}

func (f *fakeStore) Platforms(context.Context) ([]string, error) {
	if err := f.check("Platforms"); err != nil {
		return nil, err
	}
	return []string{"any", "cent7_64"}, nil
}

func (f *fakeStore) Sites(context.Context) ([]string, error) {
	if err := f.check("Sites"); err != nil {
		return nil, err
	}
	return []string{"any", "portland"}, nil
}

func (f *fakeStore) Levels(_ context.Context, show string) (database.LevelMap, error) {
	if err := f.check("Levels"); err != nil {
		return nil, err
	}
	return database.LevelMap{"RD": {"0001"}}, nil
}

func (f *fakeStore) VersionPins(context.Context, database.PinQuery) ([]database.VersionPin, error) {
	if err := f.check("VersionPins"); err != nil {
		return nil, err
	}
	return []database.VersionPin{{ID: 1, Package: "maya", Version: "2022.1", Level: "facility"}}, nil
}

func (f *fakeStore) PackageWiths(context.Context, int64) ([]string, error) {
	if err := f.check("PackageWiths"); err != nil {
		return nil, err
	}
	return []string{"python"}, nil
}

func (f *fakeStore) Revisions(context.Context, database.RevisionQuery) ([]database.Revision, error) {
	if err := f.check("Revisions"); err != nil {
		return nil, err
	}
	return []database.Revision{{ID: 1, Author: "jdoe"}}, nil
}

func (f *fakeStore) Changes(_ context.Context, revisionID int64) ([]database.Change, error) {
	if err := f.check("Changes"); err != nil {
		return nil, err
	}
	return []database.Change{{ID: 1, RevisionID: revisionID}}, nil
}

func (f *fakeStore) ApplyChanges(_ context.Context, changes []database.PinChange, _, _ string) (int64, error) {
	if len(changes) == 0 {
		return 0, database.ErrEmptyChange
	}
	if err := f.check("ApplyChanges"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return int64(f.saves), nil
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStore) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// events records view calls in the order the handler makes them. It is only
// touched from the goroutine that calls OnNotification.
type events struct {
	log []string
}

func (e *events) add(format string, args ...any) {
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) last() string {
	if len(e.log) == 0 {
		return ""
	}
	return e.log[len(e.log)-1]
}

type packagesRec struct{ *events }

func (r packagesRec) SetPackages(names []string) { r.add("packages %v", names) }
func (r packagesRec) SetPackageDists(pkg string, versions []string) {
	r.add("dists %s %v", pkg, versions)
}

type toolbarRec struct{ *events }

func (r toolbarRec) SetShows(names []string)     { r.add("toolbar.shows %v", names) }
func (r toolbarRec) SetRoles(names []string)     { r.add("toolbar.roles %v", names) }
func (r toolbarRec) SetPlatforms(names []string) { r.add("toolbar.platforms %v", names) }
func (r toolbarRec) SetSites(names []string)     { r.add("toolbar.sites %v", names) }

type dialogRec struct{ *events }

func (r dialogRec) SetLevels(show string, levels database.LevelMap) {
	r.add("dialog.levels %s %v", show, levels.Sequences())
}
func (r dialogRec) SetRoles(names []string)     { r.add("dialog.roles %v", names) }
func (r dialogRec) SetPlatforms(names []string) { r.add("dialog.platforms %v", names) }
func (r dialogRec) SetSites(names []string)     { r.add("dialog.sites %v", names) }

type withsRec struct{ *events }

func (r withsRec) SetWiths(pinID int64, row int, withs []string) {
	r.add("withs %d %d %v", pinID, row, withs)
}

type mainRec struct{ *events }

func (r mainRec) SetVpins(_ database.PinQuery, pins []database.VersionPin) {
	r.add("vpins %d", len(pins))
}
func (r mainRec) SetRevisions(revs []database.Revision) { r.add("revisions %d", len(revs)) }
func (r mainRec) SetChanges(revisionID int64, changes []database.Change) {
	r.add("changes %d %d", revisionID, len(changes))
}
func (r mainRec) VpinChangesSaved(ok bool, revisionID int64) {
	r.add("saved %t %d", ok, revisionID)
}

type alertRec struct{ *events }

func (r alertRec) Alert(message string) { r.add("alert %s", message) }

func recordingViews(e *events) bridge.Views {
	return bridge.Views{
		Packages:   packagesRec{e},
		Toolbar:    toolbarRec{e},
		Dialog:     dialogRec{e},
		Withs:      withsRec{e},
		MainWindow: mainRec{e},
		Alerts:     alertRec{e},
	}
}

// harness wires a worker to a handler the way the TUI does, with a channel
// standing in for the event loop.
type harness struct {
	worker  *bridge.Worker
	handler *bridge.Handler
	tags    chan string
	events  *events
}

func newHarness(connect bridge.Connector, opts ...bridge.Option) *harness {
	h := &harness{
		tags:   make(chan string, 1024),
		events: &events{},
	}
	opts = append([]bridge.Option{bridge.WithLogger(log.New(io.Discard, "", 0))}, opts...)
	h.worker = bridge.NewWorker(connect, func(tag string) { h.tags <- tag }, opts...)
	h.handler = bridge.NewHandler(h.worker, recordingViews(h.events))
	return h
}

func fakeConnector(store *fakeStore) bridge.Connector {
	return func(context.Context) (bridge.Store, error) {
		return store, nil
	}
}

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// pump delivers n notifications to the handler and returns their tags.
func (h *harness) pump(t fataler, n int) []string {
	t.Helper()
	var seen []string
	for i := 0; i < n; i++ {
		select {
		case tag := <-h.tags:
			seen = append(seen, tag)
			if err := h.handler.OnNotification(tag); err != nil {
				t.Fatalf("OnNotification(%q) failed: %v", tag, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for notification %d of %d", i+1, n)
		}
	}
	return seen
}

func (h *harness) submit(t fataler, reqs ...bridge.Request) {
	t.Helper()
	for _, req := range reqs {
		if err := h.worker.Submit(req); err != nil {
			t.Fatalf("Submit(%T) failed: %v", req, err)
		}
	}
}

func waitDone(t *testing.T, w *bridge.Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
}
