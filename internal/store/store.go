// Package store is the durable state layer: the dedup table that guarantees
// at-most-once event emission, monitor cursors, violation records with their
// action history, and the append-only daily snapshot log. Backed by SQLite
// so all correctness-critical writes are atomic conditional inserts.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection with vigil-specific operations.
type Store struct {
	conn *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// It enables WAL mode, foreign keys, and runs migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{conn: conn}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// migrate creates or updates the database schema.
func (s *Store) migrate() error {
	schema := `
-- Processed items: the dedup gate. A row here means an Event was emitted
-- for this raw item and never will be again.
CREATE TABLE IF NOT EXISTS processed_items (
    source       TEXT NOT NULL,
    parent_id    TEXT NOT NULL DEFAULT '',
    external_id  TEXT NOT NULL,
    processed_at DATETIME NOT NULL,
    PRIMARY KEY (source, parent_id, external_id)
);

-- Monitor cursors: last successfully processed position per source.
CREATE TABLE IF NOT EXISTS cursors (
    source     TEXT PRIMARY KEY,
    token      TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Violations: one row per (item, violation type) breach. Never deleted,
-- only marked resolved.
CREATE TABLE IF NOT EXISTS violations (
    id          TEXT PRIMARY KEY,
    item_id     TEXT NOT NULL,
    type        TEXT NOT NULL,
    owner       TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL DEFAULT '',
    detected_at DATETIME NOT NULL,
    due_at      DATETIME NOT NULL,
    level       INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'open',
    resolved_at DATETIME
);

-- At most one open record per (item, type); resolved history accumulates.
CREATE UNIQUE INDEX IF NOT EXISTS idx_violations_open
    ON violations(item_id, type) WHERE status = 'open';

-- Escalation actions taken for a violation, one per level crossed.
CREATE TABLE IF NOT EXISTS violation_actions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    violation_id TEXT NOT NULL REFERENCES violations(id) ON DELETE CASCADE,
    level        INTEGER NOT NULL,
    taken_at     DATETIME NOT NULL,
    action_ref   TEXT NOT NULL,
    UNIQUE(violation_id, level)
);

-- Daily snapshots: append-only aggregate log, one row per date.
CREATE TABLE IF NOT EXISTS snapshots (
    date            TEXT PRIMARY KEY,
    taken_at        DATETIME NOT NULL,
    total           INTEGER NOT NULL,
    open            INTEGER NOT NULL,
    resolved        INTEGER NOT NULL,
    compliance_rate REAL NOT NULL,
    by_type_json    TEXT NOT NULL,
    by_level_json   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_items(processed_at);
CREATE INDEX IF NOT EXISTS idx_violations_status ON violations(status);
CREATE INDEX IF NOT EXISTS idx_actions_violation ON violation_actions(violation_id);
`

	_, err := s.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}
