package database

import (
	"context"
	"fmt"

	"github.com/yourusername/matchedge/internal/config"
)

// schemaVersion is bumped whenever schemaDDL changes.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS settled_outcomes (
	id               UUID PRIMARY KEY,
	prediction_id    UUID NOT NULL,
	match_id         TEXT NOT NULL,
	league           TEXT NOT NULL,
	artifact_version TEXT NOT NULL DEFAULT '',
	raw              DOUBLE PRECISION[] NOT NULL,
	calibrated       DOUBLE PRECISION[] NOT NULL,
	actual           TEXT NOT NULL,
	is_baseline      BOOLEAN NOT NULL DEFAULT FALSE,
	settled_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (league, match_id)
);
CREATE INDEX IF NOT EXISTS settled_outcomes_league_settled_at
	ON settled_outcomes (league, settled_at DESC);

CREATE TABLE IF NOT EXISTS artifact_records (
	id             UUID PRIMARY KEY,
	league         TEXT NOT NULL,
	version        TEXT NOT NULL,
	status         TEXT NOT NULL,
	schema_version TEXT NOT NULL DEFAULT '',
	sample_count   INTEGER NOT NULL DEFAULT 0,
	learners       TEXT[] NOT NULL DEFAULT '{}',
	metrics        JSONB,
	metadata       JSONB,
	trained_at     TIMESTAMPTZ NOT NULL,
	promoted_at    TIMESTAMPTZ,
	retired_at     TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (league, version)
);

CREATE TABLE IF NOT EXISTS historical_matches (
	match_id     TEXT PRIMARY KEY,
	league       TEXT NOT NULL,
	kickoff_at   TIMESTAMPTZ NOT NULL,
	result       TEXT NOT NULL,
	context      JSONB NOT NULL,
	bookmakers   JSONB,
	closing_odds JSONB
);
CREATE INDEX IF NOT EXISTS historical_matches_league_kickoff
	ON historical_matches (league, kickoff_at);
`

// Initialize creates a database connection pool and applies the schema when
// it has not been applied yet.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies schemaDDL and records the schema version.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	_, err := db.pool.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING",
		schemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// AppliedVersion returns the highest recorded schema version.
func (db *DB) AppliedVersion(ctx context.Context) (int, error) {
	var version int
	err := db.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
