package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyMarked is returned by MarkProcessed when another caller won the
// race for the same key. Not a failure: the loser skips its work silently.
var ErrAlreadyMarked = errors.New("dedup key already marked processed")

// DedupKey identifies one raw item across process restarts. ParentID is
// empty for top-level items and set for sub-item granularity, e.g. one
// comment among many on an issue.
type DedupKey struct {
	Source     string
	ParentID   string
	ExternalID string
}

// ID returns the canonical event ID derived from the key.
func (k DedupKey) ID() string {
	if k.ParentID == "" {
		return fmt.Sprintf("%s/%s", k.Source, k.ExternalID)
	}
	return fmt.Sprintf("%s/%s/%s", k.Source, k.ParentID, k.ExternalID)
}

// IsProcessed reports whether the key has already produced an event.
func (s *Store) IsProcessed(key DedupKey) (bool, error) {
	var one int
	err := s.conn.QueryRow(
		`SELECT 1 FROM processed_items WHERE source = ? AND parent_id = ? AND external_id = ?`,
		key.Source, key.ParentID, key.ExternalID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query processed item: %w", err)
	}
	return true, nil
}

// MarkProcessed records the key as processed. The insert is conditional:
// when two callers race on the same key exactly one insert lands and the
// other observes ErrAlreadyMarked. This is the primitive that prevents
// duplicate replies.
func (s *Store) MarkProcessed(key DedupKey, at time.Time) error {
	res, err := s.conn.Exec(
		`INSERT INTO processed_items (source, parent_id, external_id, processed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(source, parent_id, external_id) DO NOTHING`,
		key.Source, key.ParentID, key.ExternalID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyMarked
	}
	return nil
}

// CompactDedup removes processed entries older than the cutoff. Replay risk
// beyond the retention horizon is negligible, and the table stays bounded.
func (s *Store) CompactDedup(before time.Time) (int64, error) {
	res, err := s.conn.Exec(`DELETE FROM processed_items WHERE processed_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to compact dedup table: %w", err)
	}
	return res.RowsAffected()
}
