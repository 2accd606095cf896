// Package snapshot aggregates the violation table into the append-only
// daily trend log. Aggregation is pure; only the write touches the store.
package snapshot

import (
	"time"

	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/store"
)

// Build aggregates violation records into the snapshot row for date.
// Counts cover every record regardless of status; ByLevel covers open
// records only, since resolved records no longer sit at a level that
// needs attention.
func Build(records []*store.ViolationRecord, date time.Time, takenAt time.Time) store.DailySnapshot {
	snap := store.DailySnapshot{
		Date:    date.Format("2006-01-02"),
		TakenAt: takenAt,
		ByType:  make(map[string]int),
		ByLevel: make(map[int]int),
	}
	for _, rec := range records {
		snap.Total++
		snap.ByType[rec.Type]++
		switch rec.Status {
		case store.StatusOpen:
			snap.Open++
			snap.ByLevel[rec.Level]++
		case store.StatusResolved:
			snap.Resolved++
		}
	}
	if snap.Total > 0 {
		snap.ComplianceRate = float64(snap.Resolved) / float64(snap.Total)
	} else {
		snap.ComplianceRate = 1.0
	}
	return snap
}

// Writer appends one snapshot per day to the store.
type Writer struct {
	store *store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewWriter(s *store.Store, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{store: s, log: log, now: time.Now}
}

// WriteDaily builds and appends today's snapshot. Safe to call any number
// of times per day: the first call for a date wins and later calls are
// no-ops, so a writer and a CLI invocation never double-log a day.
func (w *Writer) WriteDaily() (bool, error) {
	records, err := w.store.Violations()
	if err != nil {
		return false, err
	}
	now := w.now()
	snap := Build(records, now, now)

	created, err := w.store.InsertSnapshot(snap)
	if err != nil {
		return false, err
	}
	if created {
		w.log.Info("daily snapshot written",
			zap.String("date", snap.Date),
			zap.Int("total", snap.Total),
			zap.Int("open", snap.Open),
			zap.Float64("compliance_rate", snap.ComplianceRate))
	}
	return created, nil
}
