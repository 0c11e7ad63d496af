// Package postgres stores race programs in PostgreSQL using jackc/pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is an open connection pool with the schema in place.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to connString and creates the schema if needed.
func Open(ctx context.Context, connString string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := CreateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Pool returns the underlying pool.
func (db *DB) Pool() Pool {
	return db.pool
}

// Close closes the pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS race_program (
		id          SERIAL PRIMARY KEY,
		date        DATE        NOT NULL,
		state       TEXT        NOT NULL,
		track       TEXT        NOT NULL,
		race_no     INTEGER     NOT NULL,
		description TEXT        NOT NULL DEFAULT '',
		prize       INTEGER,
		condition   TEXT,
		class       TEXT,
		age         TEXT,
		sex         TEXT,
		distance_m  INTEGER,
		bonus       TEXT,
		url         TEXT        NOT NULL DEFAULT '',
		type        TEXT,
		meeting_id  TEXT,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS ux_race_program_ident
		ON race_program (date, state, track, race_no);
	CREATE INDEX IF NOT EXISTS idx_race_program_url ON race_program (url);
`

// CreateSchema creates the race_program table if it doesn't exist.
func CreateSchema(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
