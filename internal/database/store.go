package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store runs the pin browser's queries against one connection.
// It is not safe for concurrent use; a single worker owns it.
type Store struct {
	conn *Connection
}

// NewStore wraps an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// OpenStore opens the database at path and wraps it in a Store.
func OpenStore(ctx context.Context, path string, opts OpenOptions) (*Store, error) {
	conn, err := Open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return NewStore(conn), nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Packages returns all package names.
func (s *Store) Packages(ctx context.Context) ([]string, error) {
	names, err := s.conn.queryStrings(ctx, `SELECT name FROM packages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return names, nil
}

// PackageDists returns the known versions of a package, oldest first.
func (s *Store) PackageDists(ctx context.Context, pkg string) ([]string, error) {
	versions, err := s.conn.queryStrings(ctx,
		`SELECT version FROM distributions WHERE package = ? ORDER BY id`, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", pkg, err)
	}
	return versions, nil
}

// Shows returns the top-level levels below the facility.
func (s *Store) Shows(ctx context.Context) ([]string, error) {
	shows, err := s.conn.queryStrings(ctx, `
		SELECT path FROM levels
		WHERE instr(path, '.') = 0 AND path != ?
		ORDER BY path
	`, FacilityLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to list shows: %w", err)
	}
	return shows, nil
}

// Roles returns all role paths.
func (s *Store) Roles(ctx context.Context) ([]string, error) {
	roles, err := s.conn.queryStrings(ctx,
		`SELECT path FROM roles ORDER BY path = ? DESC, path`, AnyValue)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// Platforms returns all platform names.
func (s *Store) Platforms(ctx context.Context) ([]string, error) {
	platforms, err := s.conn.queryStrings(ctx,
		`SELECT name FROM platforms ORDER BY name = ? DESC, name`, AnyValue)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	return platforms, nil
}

// Sites returns all site names.
func (s *Store) Sites(ctx context.Context) ([]string, error) {
	sites, err := s.conn.queryStrings(ctx,
		`SELECT name FROM sites ORDER BY name = ? DESC, name`, AnyValue)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// Levels returns the sequences and shots of a show.
func (s *Store) Levels(ctx context.Context, show string) (LevelMap, error) {
	if show == "" || strings.Contains(show, ".") || show == FacilityLevel {
		return nil, fmt.Errorf("invalid show name %q", show)
	}

	var exists int
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM levels WHERE path = ?`, show).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up show %s: %w", show, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("show %s: %w", show, ErrNotFound)
	}

	paths, err := s.conn.queryStrings(ctx,
		`SELECT path FROM levels WHERE substr(path, 1, length(?) + 1) = ? || '.' ORDER BY path`, show, show)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels of %s: %w", show, err)
	}

	levels := make(LevelMap)
	for _, path := range paths {
		parts := strings.Split(path, ".")
		switch levelDepth(path) {
		case 2:
			if _, ok := levels[parts[1]]; !ok {
				levels[parts[1]] = []string{}
			}
		case 3:
			levels[parts[1]] = append(levels[parts[1]], parts[2])
		}
	}
	return levels, nil
}

const pinSelect = `
	SELECT vp.id, d.package, d.version, l.path, r.path, p.name, s.name, d.id,
		(SELECT COUNT(*) FROM pin_withs w WHERE w.version_pin_id = vp.id)
	FROM version_pins vp
	JOIN distributions d ON d.id = vp.distribution_id
	JOIN levels l ON l.id = vp.level_id
	JOIN roles r ON r.id = vp.role_id
	JOIN platforms p ON p.id = vp.platform_id
	JOIN sites s ON s.id = vp.site_id`

// VersionPins returns the pins matching the query.
func (s *Store) VersionPins(ctx context.Context, q PinQuery) ([]VersionPin, error) {
	var where []string
	var args []any

	if q.Package != "" {
		where = append(where, "d.package = ?")
		args = append(args, q.Package)
	}
	if q.Level != "" {
		where = append(where, "(l.path = ? OR substr(l.path, 1, length(?) + 1) = ? || '.')")
		args = append(args, q.Level, q.Level, q.Level)
	}
	if q.Role != "" {
		where = append(where, "(r.path = ? OR substr(r.path, 1, length(?) + 1) = ? || '.')")
		args = append(args, q.Role, q.Role, q.Role)
	}
	if q.Platform != "" {
		where = append(where, "p.name = ?")
		args = append(args, q.Platform)
	}
	if q.Site != "" {
		where = append(where, "s.name = ?")
		args = append(args, q.Site)
	}

	query := pinSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.package, l.path, r.path, p.name, s.name"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query version pins: %w", err)
	}
	defer rows.Close()

	pins := make([]VersionPin, 0)
	for rows.Next() {
		var pin VersionPin
		if err := rows.Scan(&pin.ID, &pin.Package, &pin.Version, &pin.Level, &pin.Role,
			&pin.Platform, &pin.Site, &pin.Distribution, &pin.WithsCount); err != nil {
			return nil, fmt.Errorf("failed to scan version pin: %w", err)
		}
		pins = append(pins, pin)
	}
	return pins, rows.Err()
}

// PackageWiths returns the packages configured "with" a version pin, in
// their configured order.
func (s *Store) PackageWiths(ctx context.Context, pinID int64) ([]string, error) {
	if err := s.requirePin(ctx, pinID); err != nil {
		return nil, err
	}
	withs, err := s.conn.queryStrings(ctx,
		`SELECT package FROM pin_withs WHERE version_pin_id = ? ORDER BY position, id`, pinID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withs of pin %d: %w", pinID, err)
	}
	return withs, nil
}

// Revisions returns the audit trail, newest first.
func (s *Store) Revisions(ctx context.Context, q RevisionQuery) ([]Revision, error) {
	query := `
		SELECT r.id, r.author, r.comment, r.created_at, COUNT(c.id)
		FROM revisions r
		LEFT JOIN pin_changes c ON c.revision_id = r.id`
	var args []any
	if q.Author != "" {
		query += " WHERE r.author = ?"
		args = append(args, q.Author)
	}
	query += " GROUP BY r.id ORDER BY r.id DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	revisions := make([]Revision, 0)
	for rows.Next() {
		var rev Revision
		var created any
		if err := rows.Scan(&rev.ID, &rev.Author, &rev.Comment, &created, &rev.Changes); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		rev.CreatedAt = parseTime(created)
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

// Changes returns the pin modifications recorded by a revision.
func (s *Store) Changes(ctx context.Context, revisionID int64) ([]Change, error) {
	var exists int
	if err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM revisions WHERE id = ?`, revisionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up revision %d: %w", revisionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("revision %d: %w", revisionID, ErrNotFound)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT c.id, c.revision_id, c.version_pin_id, od.package, l.path, r.path, p.name, s.name,
			od.version, nd.version
		FROM pin_changes c
		JOIN version_pins vp ON vp.id = c.version_pin_id
		JOIN distributions od ON od.id = c.old_distribution_id
		JOIN distributions nd ON nd.id = c.new_distribution_id
		JOIN levels l ON l.id = vp.level_id
		JOIN roles r ON r.id = vp.role_id
		JOIN platforms p ON p.id = vp.platform_id
		JOIN sites s ON s.id = vp.site_id
		WHERE c.revision_id = ?
		ORDER BY c.id
	`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes of revision %d: %w", revisionID, err)
	}
	defer rows.Close()

	changes := make([]Change, 0)
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.ID, &c.RevisionID, &c.PinID, &c.Package, &c.Level, &c.Role,
			&c.Platform, &c.Site, &c.OldVersion, &c.NewVersion); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (s *Store) requirePin(ctx context.Context, pinID int64) error {
	var exists int
	if err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM version_pins WHERE id = ?`, pinID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up pin %d: %w", pinID, err)
	}
	if exists == 0 {
		return fmt.Errorf("pin %d: %w", pinID, ErrNotFound)
	}
	return nil
}

// parseTime converts a DATETIME column value into a time.Time. The driver
// hands back either a time.Time or the stored text.
func parseTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		return parseTimeString(val)
	case []byte:
		return parseTimeString(string(val))
	case int64:
		return time.Unix(val, 0).UTC()
	default:
		return time.Time{}
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func parseTimeString(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
