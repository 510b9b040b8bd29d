package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
	"github.com/johan-st/vpin-tui/internal/testutil"
	"pgregory.net/rapid"
)

func TestWorker_SQLiteRoundTrip(t *testing.T) {
	path, cleanup := testutil.TestDB(t, "pins.sql")
	defer cleanup()

	h := newHarness(bridge.SQLiteConnector(path, database.DefaultOpenOptions()))
	h.worker.Start(context.Background())
	defer func() {
		bridge.NewShutdown(h.worker).Trigger()
		h.worker.Wait()
	}()

	h.submit(t,
		bridge.TreeGetPackages{},
		bridge.ToolbarGetShows{},
		bridge.DialogGetLevels{Show: "dev01"},
		bridge.GetVpins{Query: database.PinQuery{Package: "maya"}},
		bridge.GetPackageWiths{PinID: 1, Row: 4},
	)
	tags := h.pump(t, 5)

	wantTags := []string{
		"PackagesTree::GetPackages",
		"MainToolbar::UpdateShows",
		"VpinDialog::UpdateLevels",
		"MainWindow::UpdateVpins",
		"PackageWiths::UpdateWiths",
	}
	if !reflect.DeepEqual(tags, wantTags) {
		t.Errorf("tags = %v, want %v", tags, wantTags)
	}

	wantEvents := []string{
		"packages [gcc houdini maya nuke python vray]",
		"toolbar.shows [bayou dev01]",
		"dialog.levels dev01 [AA RD]",
		"vpins 2",
		"withs 1 4 [python vray]",
	}
	if !reflect.DeepEqual(h.events.log, wantEvents) {
		t.Errorf("events = %v, want %v", h.events.log, wantEvents)
	}
}

func TestWorker_SaveThroughSQLite(t *testing.T) {
	path, cleanup := testutil.TestDB(t, "pins.sql")
	defer cleanup()

	h := newHarness(bridge.SQLiteConnector(path, database.DefaultOpenOptions()))
	h.worker.Start(context.Background())
	defer func() {
		bridge.NewShutdown(h.worker).Trigger()
		h.worker.Wait()
	}()

	h.submit(t,
		bridge.SaveVpinChanges{
			Changes: []database.PinChange{{PinID: 1, Package: "maya", Level: "facility", Version: "2022.1"}},
			User:    "jdoe",
			Comment: "maya 2022",
		},
		bridge.GetRevisions{},
		bridge.GetChanges{RevisionID: 2},
		bridge.SaveVpinChanges{User: "jdoe"},
	)
	h.pump(t, 4)

	want := []string{
		"saved true 2",
		"revisions 2",
		"changes 2 1",
		"saved false 0",
	}
	if !reflect.DeepEqual(h.events.log, want) {
		t.Errorf("events = %v, want %v", h.events.log, want)
	}
}

func TestWorker_QueryFailureBecomesError(t *testing.T) {
	store := &fakeStore{fail: map[string]bool{"Shows": true}}
	h := newHarness(fakeConnector(store))
	h.worker.Start(context.Background())
	defer h.worker.Wait()
	defer bridge.NewShutdown(h.worker).Trigger()

	h.submit(t, bridge.ToolbarGetShows{}, bridge.ToolbarGetRoles{})
	tags := h.pump(t, 2)

	if tags[0] != "Error" {
		t.Errorf("failed query notified %q, want Error", tags[0])
	}
	if tags[1] != "MainToolbar::UpdateRoles" {
		t.Errorf("worker must keep serving after a failure, got %q", tags[1])
	}
	if !strings.Contains(h.events.log[0], "boom") {
		t.Errorf("alert should carry the failure, got %q", h.events.log[0])
	}
}

func TestWorker_ConnectionFailure(t *testing.T) {
	connect := func(context.Context) (bridge.Store, error) {
		return nil, errors.New("no such host")
	}
	h := newHarness(connect)
	h.worker.Start(context.Background())

	tags := h.pump(t, 1)
	if tags[0] != "Error" {
		t.Fatalf("tag = %q, want Error", tags[0])
	}
	if got := h.events.last(); got != "alert connection failed: no such host" {
		t.Errorf("alert = %q", got)
	}

	waitDone(t, h.worker)
	if err := h.worker.Submit(bridge.TreeGetPackages{}); !errors.Is(err, bridge.ErrWorkerExited) {
		t.Errorf("Submit after exit = %v, want ErrWorkerExited", err)
	}
	if err := h.handler.OnNotification("Error"); !errors.Is(err, bridge.ErrDesync) {
		t.Errorf("stray notification after exit = %v, want ErrDesync", err)
	}
	if err := bridge.NewShutdown(h.worker).Trigger(); err != nil {
		t.Errorf("Trigger on exited worker = %v, want nil", err)
	}
}

func TestWorker_Terminate(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(fakeConnector(store))
	h.worker.Start(context.Background())

	shutdown := bridge.NewShutdown(h.worker)
	h.submit(t, bridge.GetVpins{})
	if err := shutdown.Trigger(); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if err := shutdown.Trigger(); err != nil {
		t.Fatalf("second Trigger failed: %v", err)
	}
	h.worker.Wait()

	if !store.isClosed() {
		t.Error("store must be closed once Wait returns")
	}
	// Terminate is the last request processed and has no response.
	h.pump(t, 1)
	if len(h.tags) != 0 {
		t.Errorf("unexpected notifications after terminate: %d", len(h.tags))
	}
	if err := h.worker.Submit(bridge.GetVpins{}); !errors.Is(err, bridge.ErrWorkerExited) {
		t.Errorf("Submit after terminate = %v, want ErrWorkerExited", err)
	}
}

func TestWorker_ContextCancel(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(fakeConnector(store))
	ctx, cancel := context.WithCancel(context.Background())
	h.worker.Start(ctx)

	cancel()
	waitDone(t, h.worker)
	if !store.isClosed() {
		t.Error("store must be closed after cancellation")
	}
}

func TestWorker_SubmitNeverDrops(t *testing.T) {
	n := bridge.DefaultQueueSize*2 + 7
	h := newHarness(fakeConnector(&fakeStore{}))

	var want []string
	for i := 0; i < n; i++ {
		pkg := fmt.Sprintf("pkg%03d", i)
		if err := h.worker.Submit(bridge.TreeGetPackageDists{Package: pkg}); err != nil {
			t.Fatalf("Submit #%d before Start failed: %v", i, err)
		}
		want = append(want, fmt.Sprintf("dists %s [%s-1 %s-2]", pkg, pkg, pkg))
	}
	// Wait on a worker that never started does not block.
	h.worker.Wait()

	h.worker.Start(context.Background())
	h.pump(t, n)
	if err := bridge.NewShutdown(h.worker).Trigger(); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	h.worker.Wait()

	if !reflect.DeepEqual(h.events.log, want) {
		t.Errorf("got %d responses, want %d in submit order", len(h.events.log), n)
	}
}

func TestWorker_SubmitAfterExit(t *testing.T) {
	h := newHarness(fakeConnector(&fakeStore{}))
	h.worker.Start(context.Background())

	if err := bridge.NewShutdown(h.worker).Trigger(); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	waitDone(t, h.worker)

	for i := 0; i < 1000; i++ {
		if err := h.worker.Submit(bridge.TreeGetPackages{}); !errors.Is(err, bridge.ErrWorkerExited) {
			t.Fatalf("Submit #%d after exit = %v, want ErrWorkerExited", i, err)
		}
	}
}

func TestWorker_Authorizer(t *testing.T) {
	store := &fakeStore{}
	allow := bridge.AuthorizerFunc(func(level string) bool {
		return level == "dev01" || strings.HasPrefix(level, "dev01.")
	})
	h := newHarness(fakeConnector(store), bridge.WithAuthorizer(allow))
	h.worker.Start(context.Background())
	defer h.worker.Wait()
	defer bridge.NewShutdown(h.worker).Trigger()

	tests := []struct {
		name    string
		changes []database.PinChange
		wantTag string
	}{
		{"allowed", []database.PinChange{{PinID: 5, Level: "dev01", Version: "1"}}, "MainWindow::SaveVpinChanges"},
		{"denied", []database.PinChange{{PinID: 1, Level: "facility", Version: "1"}}, "Error"},
		{"partly denied", []database.PinChange{
			{PinID: 6, Level: "dev01.RD", Version: "1"},
			{PinID: 1, Level: "facility", Version: "1"},
		}, "Error"},
		{"missing level", []database.PinChange{{PinID: 5, Version: "1"}}, "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.submit(t, bridge.SaveVpinChanges{Changes: tt.changes, User: "jdoe"})
			tags := h.pump(t, 1)
			if tags[0] != tt.wantTag {
				t.Errorf("tag = %q, want %q (last event %q)", tags[0], tt.wantTag, h.events.last())
			}
		})
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saves != 1 {
		t.Errorf("store saw %d saves, want 1", store.saves)
	}
}

// call pairs a request with the store method it hits and the tag of its
// successful response.
type call struct {
	req    bridge.Request
	method string
	tag    bridge.Tag
}

var calls = []call{
	{bridge.TreeGetPackages{}, "Packages", bridge.TagPackagesTreeGetPackages},
	{bridge.TreeGetPackageDists{Package: "maya"}, "PackageDists", bridge.TagPackagesTreeGetPackageDists},
	{bridge.ToolbarGetShows{}, "Shows", bridge.TagMainToolbarUpdateShows},
	{bridge.ToolbarGetRoles{}, "Roles", bridge.TagMainToolbarUpdateRoles},
	{bridge.ToolbarGetPlatforms{}, "Platforms", bridge.TagMainToolbarUpdatePlatforms},
	{bridge.ToolbarGetSites{}, "Sites", bridge.TagMainToolbarUpdateSites},
	{bridge.DialogGetLevels{Show: "dev01"}, "Levels", bridge.TagVpinDialogUpdateLevels},
	{bridge.DialogGetRoles{}, "Roles", bridge.TagVpinDialogUpdateRoles},
	{bridge.DialogGetPlatforms{}, "Platforms", bridge.TagVpinDialogUpdatePlatforms},
	{bridge.DialogGetSites{}, "Sites", bridge.TagVpinDialogUpdateSites},
	{bridge.GetPackageWiths{PinID: 1}, "PackageWiths", bridge.TagPackageWithsUpdateWiths},
	{bridge.GetVpins{}, "VersionPins", bridge.TagMainWindowUpdateVpins},
	{bridge.GetRevisions{}, "Revisions", bridge.TagMainWindowUpdateRevisions},
	{bridge.GetChanges{RevisionID: 1}, "Changes", bridge.TagMainWindowUpdateChanges},
	{bridge.SaveVpinChanges{
		Changes: []database.PinChange{{PinID: 1, Version: "2"}},
		User:    "jdoe",
	}, "ApplyChanges", bridge.TagMainWindowSaveVpinChanges},
}

var methods = []string{
	"Packages", "PackageDists", "Shows", "Roles", "Platforms", "Sites",
	"Levels", "PackageWiths", "VersionPins", "Revisions", "Changes", "ApplyChanges",
}

func TestWorker_PairingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fail := make(map[string]bool)
		for _, m := range methods {
			fail[m] = rapid.Bool().Draw(t, "fail "+m)
		}
		seq := rapid.SliceOfN(rapid.SampledFrom(calls), 0, 40).Draw(t, "calls")

		store := &fakeStore{fail: fail}
		h := newHarness(fakeConnector(store))
		h.worker.Start(context.Background())

		var want []string
		for _, c := range seq {
			h.submit(t, c.req)
			if fail[c.method] {
				want = append(want, bridge.TagError.String())
			} else {
				want = append(want, c.tag.String())
			}
		}
		got := h.pump(t, len(seq))

		if err := bridge.NewShutdown(h.worker).Trigger(); err != nil {
			t.Fatalf("Trigger failed: %v", err)
		}
		h.worker.Wait()

		if !reflect.DeepEqual(got, want) {
			t.Fatalf("tags = %v, want %v", got, want)
		}
		if len(h.events.log) != len(seq) {
			t.Fatalf("dispatched %d responses for %d requests", len(h.events.log), len(seq))
		}
		if len(h.tags) != 0 || len(h.worker.Responses()) != 0 {
			t.Fatalf("leftover tags %d, responses %d", len(h.tags), len(h.worker.Responses()))
		}
		if !store.isClosed() {
			t.Fatal("store not closed")
		}
	})
}
