package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Cursor returns the last persisted cursor token for a source, or the
// empty string when the source has never completed a poll.
func (s *Store) Cursor(source string) (string, error) {
	var token string
	err := s.conn.QueryRow(`SELECT token FROM cursors WHERE source = ?`, source).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query cursor for %s: %w", source, err)
	}
	return token, nil
}

// SetCursor persists the cursor token for a source.
func (s *Store) SetCursor(source, token string) error {
	_, err := s.conn.Exec(
		`INSERT INTO cursors (source, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		source, token, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set cursor for %s: %w", source, err)
	}
	return nil
}
