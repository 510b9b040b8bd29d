// Package database stores version pins in SQLite and exposes the queries the
// pin browser needs.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Connection wraps a database connection with metadata.
type Connection struct {
	DB       *sql.DB
	Path     string
	ReadOnly bool
	mu       sync.Mutex
}

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	ReadOnly    bool
	BusyTimeout int // milliseconds
	// Migrate creates missing tables after connecting. Ignored for read-only
	// connections.
	Migrate bool
}

// DefaultOpenOptions returns sensible defaults for opening a database.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		ReadOnly:    false,
		BusyTimeout: 5000, // 5 seconds
		Migrate:     true,
	}
}

// Open opens a database connection with the given options.
func Open(ctx context.Context, path string, opts OpenOptions) (*Connection, error) {
	mode := "rwc"
	if opts.ReadOnly {
		mode = "ro"
	}

	dsn := fmt.Sprintf("file:%s?mode=%s&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, mode, opts.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single worker owns the handle, one connection is all it needs
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn := &Connection{
		DB:       db,
		Path:     path,
		ReadOnly: opts.ReadOnly,
	}

	if opts.Migrate && !opts.ReadOnly {
		if err := Migrate(ctx, conn); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return conn, nil
}

// Close closes the database connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Execute runs a query that doesn't return rows (INSERT, UPDATE, DELETE).
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.DB.ExecContext(ctx, query, args...)
}

// Query runs a query that returns rows.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.DB.QueryContext(ctx, query, args...)
}

// QueryRow runs a query that returns at most one row.
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.DB.QueryRowContext(ctx, query, args...)
}

// WithTransaction executes a function within a transaction.
func (c *Connection) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	c.mu.Lock()
	tx, err := c.DB.BeginTx(ctx, nil)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// queryStrings runs a single-column query and collects the values.
func (c *Connection) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
