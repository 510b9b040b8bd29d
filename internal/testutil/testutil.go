// Package testutil provides test utilities for vpin-tui tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/johan-st/vpin-tui/internal/database"
	_ "modernc.org/sqlite"
)

// TestDB creates a temporary pin database, migrated and loaded with the
// named SQL fixture from testdata/fixtures.
// Returns the path to the database and a cleanup function.
func TestDB(t *testing.T, fixtureName string) (string, func()) {
	t.Helper()

	dbPath, cleanup := EmptyDB(t)

	fixture, err := os.ReadFile(filepath.Join(FindFixturesDir(t), fixtureName))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", fixtureName, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open %s: %v", dbPath, err)
	}
	defer db.Close()

	MustExec(t, db, string(fixture))
	return dbPath, cleanup
}

// EmptyDB creates a new database holding only the pin schema.
func EmptyDB(t *testing.T) (string, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "pins.db")

	conn, err := database.Open(context.Background(), dbPath, database.DefaultOpenOptions())
	if err != nil {
		t.Fatalf("failed to create empty db: %v", err)
	}
	conn.Close()

	cleanup := func() {
		os.Remove(dbPath)
		os.Remove(dbPath + "-shm")
		os.Remove(dbPath + "-wal")
	}

	return dbPath, cleanup
}

// TestStore opens a Store over a fresh copy of the fixture. The store is
// closed when the test finishes.
func TestStore(t *testing.T, fixtureName string) *database.Store {
	t.Helper()

	dbPath, cleanup := TestDB(t, fixtureName)
	store, err := database.OpenStore(context.Background(), dbPath, database.DefaultOpenOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		cleanup()
	})
	return store
}

// FindFixturesDir locates the testdata/fixtures directory.
func FindFixturesDir(t *testing.T) string {
	t.Helper()

	// Walk up from current directory looking for testdata
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for i := 0; i < 10; i++ {
		fixturesDir := filepath.Join(dir, "testdata", "fixtures")
		if info, err := os.Stat(fixturesDir); err == nil && info.IsDir() {
			return fixturesDir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatalf("could not find testdata/fixtures directory")
	return ""
}

// MustExec executes SQL or fails the test.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("MustExec failed: %v\nQuery: %s", err, query)
	}
}

// MustQueryRow executes a query and scans the first row into dest.
func MustQueryRow(t *testing.T, db *sql.DB, query string, dest ...any) {
	t.Helper()
	if err := db.QueryRow(query).Scan(dest...); err != nil {
		t.Fatalf("MustQueryRow failed: %v\nQuery: %s", err, query)
	}
}
