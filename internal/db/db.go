// Package db provides PostgreSQL access for the evaluation audit log.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS evaluations (
	id            UUID PRIMARY KEY,
	idea_name     TEXT NOT NULL,
	idea          JSONB NOT NULL,
	result        JSONB NOT NULL,
	overall_score INT NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
	sentineled    TEXT[] NOT NULL DEFAULT '{}',
	model         TEXT NOT NULL DEFAULT '',
	duration_ms   INT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS evaluations_created_at_idx ON evaluations (created_at DESC);
`

// EnsureSchema creates the audit log table if it does not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
