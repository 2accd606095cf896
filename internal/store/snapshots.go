package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// DailySnapshot is one immutable row of the trend log: violation counts by
// type and escalation level for a single evaluation day.
type DailySnapshot struct {
	Date           string // "2006-01-02"
	TakenAt        time.Time
	Total          int
	Open           int
	Resolved       int
	ComplianceRate float64
	ByType         map[string]int
	ByLevel        map[int]int
}

// InsertSnapshot appends the snapshot to the log. Idempotent per date:
// returns false without error when a snapshot for that date already exists.
func (s *Store) InsertSnapshot(snap DailySnapshot) (bool, error) {
	byType, err := json.Marshal(snap.ByType)
	if err != nil {
		return false, fmt.Errorf("failed to serialize type counts: %w", err)
	}
	byLevel, err := json.Marshal(snap.ByLevel)
	if err != nil {
		return false, fmt.Errorf("failed to serialize level counts: %w", err)
	}

	res, err := s.conn.Exec(
		`INSERT OR IGNORE INTO snapshots
		 (date, taken_at, total, open, resolved, compliance_rate, by_type_json, by_level_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Date, snap.TakenAt.UTC(), snap.Total, snap.Open, snap.Resolved,
		snap.ComplianceRate, string(byType), string(byLevel),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Snapshots returns up to limit snapshots, most recent first.
func (s *Store) Snapshots(limit int) ([]DailySnapshot, error) {
	rows, err := s.conn.Query(
		`SELECT date, taken_at, total, open, resolved, compliance_rate, by_type_json, by_level_json
		 FROM snapshots ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []DailySnapshot
	for rows.Next() {
		var snap DailySnapshot
		var byType, byLevel string
		if err := rows.Scan(&snap.Date, &snap.TakenAt, &snap.Total, &snap.Open,
			&snap.Resolved, &snap.ComplianceRate, &byType, &byLevel); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(byType), &snap.ByType); err != nil {
			return nil, fmt.Errorf("failed to parse type counts: %w", err)
		}
		if err := json.Unmarshal([]byte(byLevel), &snap.ByLevel); err != nil {
			return nil, fmt.Errorf("failed to parse level counts: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
