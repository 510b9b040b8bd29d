package database_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/johan-st/vpin-tui/internal/database"
	"github.com/johan-st/vpin-tui/internal/testutil"
)

func TestStore_Lists(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(context.Context) ([]string, error)
		want []string
	}{
		{"packages", store.Packages, []string{"gcc", "houdini", "maya", "nuke", "python", "vray"}},
		{"shows", store.Shows, []string{"bayou", "dev01"}},
		{"roles", store.Roles, []string{"any", "anim", "fx", "model", "model.beta"}},
		{"platforms", store.Platforms, []string{"any", "cent7_64", "win10_64"}},
		{"sites", store.Sites, []string{"any", "montreal", "portland"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_PackageDists(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")

	got, err := store.PackageDists(context.Background(), "maya")
	if err != nil {
		t.Fatalf("PackageDists failed: %v", err)
	}
	want := []string{"2020.4", "2022.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PackageDists(maya) = %v, want %v", got, want)
	}

	got, err = store.PackageDists(context.Background(), "missing")
	if err != nil {
		t.Fatalf("PackageDists failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no versions for unknown package, got %v", got)
	}
}

func TestStore_Levels(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	t.Run("show with sequences", func(t *testing.T) {
		levels, err := store.Levels(ctx, "dev01")
		if err != nil {
			t.Fatalf("Levels failed: %v", err)
		}
		want := database.LevelMap{
			"AA": {"0100"},
			"RD": {"0001", "9999"},
		}
		if !reflect.DeepEqual(levels, want) {
			t.Errorf("Levels(dev01) = %v, want %v", levels, want)
		}
		if seqs := levels.Sequences(); !reflect.DeepEqual(seqs, []string{"AA", "RD"}) {
			t.Errorf("Sequences() = %v", seqs)
		}
	})

	t.Run("show without sequences", func(t *testing.T) {
		levels, err := store.Levels(ctx, "bayou")
		if err != nil {
			t.Fatalf("Levels failed: %v", err)
		}
		if len(levels) != 0 {
			t.Errorf("expected empty level map, got %v", levels)
		}
	})

	t.Run("unknown show", func(t *testing.T) {
		_, err := store.Levels(ctx, "nope")
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("facility is not a show", func(t *testing.T) {
		if _, err := store.Levels(ctx, database.FacilityLevel); err == nil {
			t.Error("expected error for facility level")
		}
	})
}

func TestStore_VersionPins(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	tests := []struct {
		name    string
		query   database.PinQuery
		wantIDs []int64
	}{
		{"all", database.PinQuery{}, []int64{7, 6, 2, 5, 1, 3, 4, 8}},
		{"by package", database.PinQuery{Package: "maya"}, []int64{5, 1}},
		{"level includes descendants", database.PinQuery{Level: "dev01"}, []int64{6, 5, 8}},
		{"role includes descendants", database.PinQuery{Role: "model"}, []int64{5}},
		{"platform", database.PinQuery{Platform: "cent7_64"}, []int64{7}},
		{"site", database.PinQuery{Site: "portland"}, []int64{8}},
		{"no match", database.PinQuery{Package: "maya", Site: "montreal"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pins, err := store.VersionPins(ctx, tt.query)
			if err != nil {
				t.Fatalf("VersionPins failed: %v", err)
			}
			var ids []int64
			for _, p := range pins {
				ids = append(ids, p.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("pin ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}

	pins, err := store.VersionPins(ctx, database.PinQuery{Package: "maya", Level: database.FacilityLevel})
	if err != nil {
		t.Fatalf("VersionPins failed: %v", err)
	}
	if len(pins) != 1 {
		t.Fatalf("expected 1 pin, got %d", len(pins))
	}
	if pins[0].DistributionName() != "maya-2020.4" || pins[0].WithsCount != 2 {
		t.Errorf("unexpected pin: %+v", pins[0])
	}
}

func TestStore_PackageWiths(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	withs, err := store.PackageWiths(ctx, 1)
	if err != nil {
		t.Fatalf("PackageWiths failed: %v", err)
	}
	if !reflect.DeepEqual(withs, []string{"python", "vray"}) {
		t.Errorf("PackageWiths(1) = %v", withs)
	}

	withs, err = store.PackageWiths(ctx, 2)
	if err != nil {
		t.Fatalf("PackageWiths failed: %v", err)
	}
	if len(withs) != 0 {
		t.Errorf("expected no withs, got %v", withs)
	}

	if _, err := store.PackageWiths(ctx, 999); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ApplyChanges(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	changes := []database.PinChange{
		{PinID: 1, Package: "maya", Level: "facility", Version: "2022.1"},
		{PinID: 4, Package: "python", Level: "facility", Version: "3.9.5"},
	}
	revID, err := store.ApplyChanges(ctx, changes, "jdoe", "bump maya and python")
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if revID != 2 {
		t.Errorf("revision id = %d, want 2", revID)
	}

	pins, err := store.VersionPins(ctx, database.PinQuery{Level: database.FacilityLevel, Package: "maya"})
	if err != nil {
		t.Fatalf("VersionPins failed: %v", err)
	}
	if pins[0].ID != 1 || pins[0].Version != "2022.1" {
		t.Errorf("pin 1 not updated: %+v", pins[0])
	}

	revs, err := store.Revisions(ctx, database.RevisionQuery{})
	if err != nil {
		t.Fatalf("Revisions failed: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}
	if revs[0].ID != revID || revs[0].Author != "jdoe" || revs[0].Changes != 2 {
		t.Errorf("unexpected newest revision: %+v", revs[0])
	}
	if revs[0].CreatedAt.IsZero() {
		t.Error("expected revision timestamp to be parsed")
	}

	recorded, err := store.Changes(ctx, revID)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(recorded))
	}
	if recorded[0].OldVersion != "2020.4" || recorded[0].NewVersion != "2022.1" || recorded[0].Package != "maya" {
		t.Errorf("unexpected change: %+v", recorded[0])
	}
}

func TestStore_ApplyChanges_Atomic(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	changes := []database.PinChange{
		{PinID: 1, Version: "2022.1"},
		{PinID: 4, Version: "9.9.9"}, // no such distribution
	}
	if _, err := store.ApplyChanges(ctx, changes, "jdoe", "broken"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	pins, err := store.VersionPins(ctx, database.PinQuery{Level: database.FacilityLevel, Package: "maya"})
	if err != nil {
		t.Fatalf("VersionPins failed: %v", err)
	}
	if pins[0].Version != "2020.4" {
		t.Errorf("failed batch must not update pins, got %s", pins[0].Version)
	}

	revs, err := store.Revisions(ctx, database.RevisionQuery{})
	if err != nil {
		t.Fatalf("Revisions failed: %v", err)
	}
	if len(revs) != 1 {
		t.Errorf("failed batch must not record a revision, got %d revisions", len(revs))
	}
}

func TestStore_ApplyChanges_Invalid(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	tests := []struct {
		name    string
		changes []database.PinChange
		author  string
		wantErr error
	}{
		{"empty batch", nil, "jdoe", database.ErrEmptyChange},
		{"missing pin", []database.PinChange{{PinID: 42, Version: "1"}}, "jdoe", database.ErrNotFound},
		{"missing author", []database.PinChange{{PinID: 1, Version: "2022.1"}}, " ", nil},
		{"package mismatch", []database.PinChange{{PinID: 1, Package: "nuke", Version: "13.0v1"}}, "jdoe", nil},
		{"level mismatch", []database.PinChange{{PinID: 1, Level: "dev01", Version: "2022.1"}}, "jdoe", nil},
		{"same version", []database.PinChange{{PinID: 1, Version: "2020.4"}}, "jdoe", database.ErrUnchanged},
		{"one unchanged in batch", []database.PinChange{
			{PinID: 5, Version: "2020.4"},
			{PinID: 1, Version: "2020.4"},
		}, "jdoe", database.ErrUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ApplyChanges(ctx, tt.changes, tt.author, "")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Nothing from the failed batches was recorded.
	revs, err := store.Revisions(ctx, database.RevisionQuery{})
	if err != nil {
		t.Fatalf("Revisions failed: %v", err)
	}
	if len(revs) != 1 {
		t.Errorf("got %d revisions, want only the fixture's", len(revs))
	}
}

func TestStore_Revisions_Filter(t *testing.T) {
	store := testutil.TestStore(t, "pins.sql")
	ctx := context.Background()

	if _, err := store.ApplyChanges(ctx, []database.PinChange{{PinID: 3, Version: "13.0v1"}}, "jdoe", "nuke 13"); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	revs, err := store.Revisions(ctx, database.RevisionQuery{Author: "jgerber"})
	if err != nil {
		t.Fatalf("Revisions failed: %v", err)
	}
	if len(revs) != 1 || revs[0].Author != "jgerber" {
		t.Errorf("unexpected revisions: %+v", revs)
	}

	revs, err = store.Revisions(ctx, database.RevisionQuery{Limit: 1})
	if err != nil {
		t.Fatalf("Revisions failed: %v", err)
	}
	if len(revs) != 1 || revs[0].Author != "jdoe" {
		t.Errorf("expected newest revision only, got %+v", revs)
	}

	if _, err := store.Changes(ctx, 77); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown revision, got %v", err)
	}
}
