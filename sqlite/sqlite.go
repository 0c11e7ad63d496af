// Package sqlite stores race programs in SQLite using the ncruces/go-sqlite3
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// WAL is ~7x faster for writes and allows concurrent reads during writes.
	// Trade-off: creates additional -wal and -shm files alongside the database.
	// Note: WAL mode is not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// createSchema creates the race_program table if it doesn't exist. Dates
// are stored as YYYY-MM-DD text so they compare in calendar order.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS race_program (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			date        TEXT    NOT NULL,
			state       TEXT    NOT NULL,
			track       TEXT    NOT NULL,
			race_no     INTEGER NOT NULL,
			description TEXT    NOT NULL DEFAULT '',
			prize       INTEGER,
			condition   TEXT,
			class       TEXT,
			age         TEXT,
			sex         TEXT,
			distance_m  INTEGER,
			bonus       TEXT,
			url         TEXT    NOT NULL DEFAULT '',
			type        TEXT,
			meeting_id  TEXT,
			updated_at  TEXT    NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS ux_race_program_ident
			ON race_program (date, state, track, race_no);
		CREATE INDEX IF NOT EXISTS idx_race_program_url ON race_program (url);
	`

	_, err := db.db.Exec(schema)
	return err
}
