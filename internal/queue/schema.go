package queue

import (
	"context"
	"errors"
	"fmt"
)

// ErrSchemaMismatch signals a queue database written by a newer build.
var ErrSchemaMismatch = errors.New("queue schema mismatch")

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversion_jobs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    hour_key      TEXT NOT NULL UNIQUE,
    status        TEXT NOT NULL,
    error_message TEXT,
    attempts      INTEGER NOT NULL DEFAULT 0,
    source_count  INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL,
    started_at    TEXT,
    finished_at   TEXT
);

CREATE INDEX IF NOT EXISTS idx_conversion_jobs_status
    ON conversion_jobs(status, created_at);
`

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: database version %d, supported version %d", ErrSchemaMismatch, version, schemaVersion)
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if version < schemaVersion {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}
