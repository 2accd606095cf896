package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Violation statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Action is one escalation action taken for a violation, recorded once per
// level crossed.
type Action struct {
	Level     int
	TakenAt   time.Time
	ActionRef string
}

// ViolationRecord is the durable state-machine instance tracking one SLA
// breach. Owned exclusively by the tracker's evaluation pass; level only
// increases while the breach persists.
type ViolationRecord struct {
	ID           string
	ItemID       string
	Type         string
	Owner        string
	Title        string
	DetectedAt   time.Time
	DueAt        time.Time
	Level        int
	Status       string
	ResolvedAt   *time.Time
	ActionsTaken []Action
}

// LastActedLevel returns the highest level an action was recorded for,
// or 0 when no action has been taken yet.
func (v *ViolationRecord) LastActedLevel() int {
	last := 0
	for _, a := range v.ActionsTaken {
		if a.Level > last {
			last = a.Level
		}
	}
	return last
}

// CreateViolation inserts a new open violation record.
func (s *Store) CreateViolation(v *ViolationRecord) error {
	_, err := s.conn.Exec(
		`INSERT INTO violations (id, item_id, type, owner, title, detected_at, due_at, level, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ItemID, v.Type, v.Owner, v.Title,
		v.DetectedAt.UTC(), v.DueAt.UTC(), v.Level, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to create violation: %w", err)
	}
	return nil
}

// OpenViolation returns the open record for (itemID, vtype), or nil when
// the item is currently compliant for that type.
func (s *Store) OpenViolation(itemID, vtype string) (*ViolationRecord, error) {
	row := s.conn.QueryRow(
		`SELECT id, item_id, type, owner, title, detected_at, due_at, level, status, resolved_at
		 FROM violations WHERE item_id = ? AND type = ? AND status = ?`,
		itemID, vtype, StatusOpen,
	)
	v, err := scanViolation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.loadActions(v); err != nil {
		return nil, err
	}
	return v, nil
}

// OpenViolations returns all open records with their actions loaded.
func (s *Store) OpenViolations() ([]*ViolationRecord, error) {
	return s.queryViolations(
		`SELECT id, item_id, type, owner, title, detected_at, due_at, level, status, resolved_at
		 FROM violations WHERE status = ? ORDER BY detected_at`, StatusOpen)
}

// Violations returns every record, open and resolved, oldest first.
func (s *Store) Violations() ([]*ViolationRecord, error) {
	return s.queryViolations(
		`SELECT id, item_id, type, owner, title, detected_at, due_at, level, status, resolved_at
		 FROM violations ORDER BY detected_at`)
}

// RecordAction advances the violation to the given level and appends the
// corresponding action in a single transaction, keeping actions_taken
// consistent with the persisted level. The UNIQUE(violation_id, level)
// constraint rejects a second action for the same level.
func (s *Store) RecordAction(id string, level int, a Action) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`UPDATE violations SET level = ? WHERE id = ? AND level <= ?`,
		level, id, level,
	); err != nil {
		return fmt.Errorf("failed to update violation level: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO violation_actions (violation_id, level, taken_at, action_ref)
		 VALUES (?, ?, ?, ?)`,
		id, a.Level, a.TakenAt.UTC(), a.ActionRef,
	); err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit action: %w", err)
	}
	return nil
}

// SetLevel raises the persisted level without recording an action. Used
// when the target level increased but the action for it failed to post, so
// the next pass retries the action.
func (s *Store) SetLevel(id string, level int) error {
	_, err := s.conn.Exec(`UPDATE violations SET level = ? WHERE id = ? AND level < ?`, level, id, level)
	if err != nil {
		return fmt.Errorf("failed to set violation level: %w", err)
	}
	return nil
}

// Resolve marks the violation resolved. The record is retained as audit
// history; a later breach of the same item and type opens a fresh record.
func (s *Store) Resolve(id string, at time.Time) error {
	_, err := s.conn.Exec(
		`UPDATE violations SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		StatusResolved, at.UTC(), id, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve violation: %w", err)
	}
	return nil
}

func (s *Store) queryViolations(query string, args ...any) ([]*ViolationRecord, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var records []*ViolationRecord
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate violations: %w", err)
	}

	for _, v := range records {
		if err := s.loadActions(v); err != nil {
			return nil, err
		}
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanViolation(row rowScanner) (*ViolationRecord, error) {
	v := &ViolationRecord{}
	var resolvedAt sql.NullTime
	err := row.Scan(&v.ID, &v.ItemID, &v.Type, &v.Owner, &v.Title,
		&v.DetectedAt, &v.DueAt, &v.Level, &v.Status, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan violation: %w", err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		v.ResolvedAt = &t
	}
	return v, nil
}

func (s *Store) loadActions(v *ViolationRecord) error {
	rows, err := s.conn.Query(
		`SELECT level, taken_at, action_ref FROM violation_actions
		 WHERE violation_id = ? ORDER BY level`, v.ID)
	if err != nil {
		return fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.Level, &a.TakenAt, &a.ActionRef); err != nil {
			return fmt.Errorf("failed to scan action: %w", err)
		}
		v.ActionsTaken = append(v.ActionsTaken, a)
	}
	return rows.Err()
}
