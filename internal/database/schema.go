package database

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// FacilityLevel is the root of the level hierarchy. Pins at this level apply
// to every show.
const FacilityLevel = "facility"

// AnyValue is the wildcard role, platform and site.
const AnyValue = "any"

var (
	// ErrNotFound is returned when a referenced pin, distribution or revision
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyChange is returned by ApplyChanges for an empty batch.
	ErrEmptyChange = errors.New("no changes to apply")
	// ErrUnchanged is returned when a change sets a pin to the version it
	// already has.
	ErrUnchanged = errors.New("pin already at that version")
)

// LevelMap maps each sequence of a show to its shots. A show without
// sequences has an empty map.
type LevelMap map[string][]string

// Sequences returns the sequence names in sorted order.
func (m LevelMap) Sequences() []string {
	seqs := make([]string, 0, len(m))
	for seq := range m {
		seqs = append(seqs, seq)
	}
	sort.Strings(seqs)
	return seqs
}

// VersionPin is one row of the pin table: a distribution pinned at a
// level/role/platform/site coordinate.
type VersionPin struct {
	ID           int64
	Package      string
	Version      string
	Level        string
	Role         string
	Platform     string
	Site         string
	WithsCount   int
	Distribution int64
}

// DistributionName returns the "package-version" name of the pinned distribution.
func (p VersionPin) DistributionName() string {
	return p.Package + "-" + p.Version
}

// PinQuery filters version pins. Empty fields match anything.
type PinQuery struct {
	Package  string
	Level    string // matches the level and all of its descendants
	Role     string
	Platform string
	Site     string
}

// PinChange asks for a version pin to point at a new version of its package.
type PinChange struct {
	PinID   int64
	Package string
	Level   string
	Version string
}

// Revision is one entry of the audit trail.
type Revision struct {
	ID        int64
	Author    string
	Comment   string
	CreatedAt time.Time
	Changes   int
}

// RevisionQuery filters revisions. Zero values match anything.
type RevisionQuery struct {
	Author string
	Limit  int
}

// Change is one pin modification recorded by a revision.
type Change struct {
	ID         int64
	RevisionID int64
	PinID      int64
	Package    string
	Level      string
	Role       string
	Platform   string
	Site       string
	OldVersion string
	NewVersion string
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS packages (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS distributions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	package TEXT NOT NULL REFERENCES packages(name),
	version TEXT NOT NULL,
	UNIQUE(package, version)
);

CREATE TABLE IF NOT EXISTS levels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS roles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS platforms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS sites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS version_pins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	distribution_id INTEGER NOT NULL REFERENCES distributions(id),
	level_id INTEGER NOT NULL REFERENCES levels(id),
	role_id INTEGER NOT NULL REFERENCES roles(id),
	platform_id INTEGER NOT NULL REFERENCES platforms(id),
	site_id INTEGER NOT NULL REFERENCES sites(id)
);

CREATE INDEX IF NOT EXISTS idx_version_pins_distribution ON version_pins(distribution_id);
CREATE INDEX IF NOT EXISTS idx_version_pins_level ON version_pins(level_id);

CREATE TABLE IF NOT EXISTS pin_withs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version_pin_id INTEGER NOT NULL REFERENCES version_pins(id),
	package TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pin_withs_pin ON pin_withs(version_pin_id);

CREATE TABLE IF NOT EXISTS revisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pin_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	revision_id INTEGER NOT NULL REFERENCES revisions(id),
	version_pin_id INTEGER NOT NULL REFERENCES version_pins(id),
	old_distribution_id INTEGER NOT NULL REFERENCES distributions(id),
	new_distribution_id INTEGER NOT NULL REFERENCES distributions(id)
);

CREATE INDEX IF NOT EXISTS idx_pin_changes_revision ON pin_changes(revision_id);

INSERT OR IGNORE INTO levels (path) VALUES ('facility');
INSERT OR IGNORE INTO roles (path) VALUES ('any');
INSERT OR IGNORE INTO platforms (name) VALUES ('any');
INSERT OR IGNORE INTO sites (name) VALUES ('any');
`

// Migrate creates the pin schema if it does not exist yet.
func Migrate(ctx context.Context, conn *Connection) error {
	_, err := conn.Execute(ctx, schemaSQL)
	return err
}

// levelDepth returns the number of components in a dotted level path.
func levelDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, ".") + 1
}
