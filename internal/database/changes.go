package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ApplyChanges repoints each pin at its requested version and records the
// batch as one revision authored by author. Either every change is applied
// or none is. It returns the new revision id.
func (s *Store) ApplyChanges(ctx context.Context, changes []PinChange, author, comment string) (int64, error) {
	if len(changes) == 0 {
		return 0, ErrEmptyChange
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return 0, fmt.Errorf("author is required")
	}
	if s.conn.ReadOnly {
		return 0, fmt.Errorf("database %s is opened read-only", s.conn.Path)
	}

	var revisionID int64
	err := s.conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO revisions (author, comment, created_at) VALUES (?, ?, ?)`,
			author, comment, time.Now().UTC().Format("2006-01-02 15:04:05"))
		if err != nil {
			return fmt.Errorf("failed to create revision: %w", err)
		}
		revisionID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read revision id: %w", err)
		}

		for _, change := range changes {
			if err := applyChange(ctx, tx, revisionID, change); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, wrapBusy(err)
	}
	return revisionID, nil
}

// applyChange updates one pin inside the revision's transaction.
func applyChange(ctx context.Context, tx *sql.Tx, revisionID int64, change PinChange) error {
	var oldDist int64
	var pkg, level string
	err := tx.QueryRowContext(ctx, `
		SELECT d.id, d.package, l.path
		FROM version_pins vp
		JOIN distributions d ON d.id = vp.distribution_id
		JOIN levels l ON l.id = vp.level_id
		WHERE vp.id = ?
	`, change.PinID).Scan(&oldDist, &pkg, &level)
	if isNoRows(err) {
		return fmt.Errorf("pin %d: %w", change.PinID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up pin %d: %w", change.PinID, err)
	}

	if change.Package != "" && change.Package != pkg {
		return fmt.Errorf("pin %d pins %s, not %s", change.PinID, pkg, change.Package)
	}
	if change.Level != "" && change.Level != level {
		return fmt.Errorf("pin %d is set at %s, not %s", change.PinID, level, change.Level)
	}

	var newDist int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM distributions WHERE package = ? AND version = ?`,
		pkg, change.Version).Scan(&newDist)
	if isNoRows(err) {
		return fmt.Errorf("distribution %s-%s: %w", pkg, change.Version, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up distribution %s-%s: %w", pkg, change.Version, err)
	}
	if newDist == oldDist {
		return fmt.Errorf("pin %d %s-%s: %w", change.PinID, pkg, change.Version, ErrUnchanged)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE version_pins SET distribution_id = ? WHERE id = ?`, newDist, change.PinID); err != nil {
		return fmt.Errorf("failed to update pin %d: %w", change.PinID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pin_changes (revision_id, version_pin_id, old_distribution_id, new_distribution_id)
		VALUES (?, ?, ?, ?)
	`, revisionID, change.PinID, oldDist, newDist); err != nil {
		return fmt.Errorf("failed to record change of pin %d: %w", change.PinID, err)
	}
	return nil
}
