package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/bizhours"
	"github.com/RevCBH/vigil/internal/event"
	"github.com/RevCBH/vigil/internal/source"
	"github.com/RevCBH/vigil/internal/store"
)

// Executor performs the escalation action for a violation that has crossed
// into level. It returns a reference to whatever it posted (a comment ID,
// message timestamp, or synthetic ID) for the audit trail.
type Executor interface {
	Execute(ctx context.Context, rec *store.ViolationRecord, level Level, item source.WorkItem) (string, error)
}

// Summary reports what one evaluation pass did.
type Summary struct {
	Evaluated int
	Created   int
	Escalated int
	Resolved  int
}

// Tracker evaluates live work-item state against the threshold matrix and
// drives each violation record through its escalation ladder. Levels only
// ever rise for an open record; clearing a breach resolves the record, and
// a later recurrence opens a fresh one at level zero.
type Tracker struct {
	store      *store.Store
	cal        bizhours.Calendar
	thresholds Thresholds
	exec       Executor
	adapters   map[event.Source]source.Adapter
	log        *zap.Logger
	now        func() time.Time
}

// TrackerOpts configures a Tracker.
type TrackerOpts struct {
	Store      *store.Store
	Calendar   bizhours.Calendar
	Thresholds Thresholds
	Executor   Executor
	Adapters   map[event.Source]source.Adapter
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewTracker(opts TrackerOpts) (*Tracker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("at least one adapter is required")
	}
	if opts.Thresholds == nil {
		opts.Thresholds = DefaultThresholds()
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		store:      opts.Store,
		cal:        opts.Calendar,
		thresholds: opts.Thresholds,
		exec:       opts.Executor,
		adapters:   opts.Adapters,
		log:        opts.Logger,
		now:        opts.Now,
	}, nil
}

// EvaluatePass fetches live state from every adapter and runs one evaluation
// over it. A failure on one item is logged and does not stop the pass; a
// fetch failure on one source skips that source's items for this pass and
// leaves their records untouched.
func (t *Tracker) EvaluatePass(ctx context.Context) (Summary, error) {
	var sum Summary

	open, err := t.store.OpenViolations()
	if err != nil {
		return sum, fmt.Errorf("loading open violations: %w", err)
	}
	openByItem := make(map[string][]*store.ViolationRecord)
	for _, rec := range open {
		openByItem[rec.ItemID] = append(openByItem[rec.ItemID], rec)
	}

	seen := make(map[string]bool)
	allFetched := true
	for src, adapter := range t.adapters {
		items, err := adapter.FetchLiveState(ctx)
		if err != nil {
			t.log.Warn("live state fetch failed, skipping source this pass",
				zap.String("source", string(src)),
				zap.Error(err))
			allFetched = false
			continue
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			seen[item.ID] = true
			if item.Paused {
				continue
			}
			sum.Evaluated++
			if err := t.evaluateItem(ctx, item, openByItem[item.ID], &sum); err != nil {
				t.log.Warn("item evaluation failed",
					zap.String("item", item.ID),
					zap.Error(err))
			}
		}
	}

	// An item that no longer appears in live state at all (closed items
	// are typically filtered out at the source) cannot breach anything:
	// resolve its records rather than leaving them open forever. Records
	// cannot be attributed to one source, so this needs every fetch to
	// have succeeded.
	if allFetched {
		now := t.now()
		for itemID, recs := range openByItem {
			if seen[itemID] {
				continue
			}
			for _, rec := range recs {
				if err := t.store.Resolve(rec.ID, now); err != nil {
					t.log.Warn("resolving vanished item failed",
						zap.String("item", itemID),
						zap.Error(err))
					continue
				}
				sum.Resolved++
				t.log.Info("violation resolved, item left live state",
					zap.String("item", itemID),
					zap.String("type", rec.Type),
					zap.Int("level", rec.Level))
			}
		}
	}
	return sum, nil
}

// evaluateItem computes the target level for each breach condition the item
// exhibits, escalates or creates records as needed, and resolves open
// records whose condition has cleared.
func (t *Tracker) evaluateItem(ctx context.Context, item source.WorkItem, open []*store.ViolationRecord, sum *Summary) error {
	now := t.now()
	targets := make(map[ViolationType]breachTarget)
	for _, b := range conditions(item) {
		ladder := t.thresholds[b.Type]
		elapsed := t.cal.Elapsed(b.TriggerAt, now)
		targets[b.Type] = breachTarget{breach: b, level: ladder.LevelFor(elapsed)}
	}

	var firstErr error
	for vt, target := range targets {
		if target.level == LevelCompliant {
			continue
		}
		if err := t.escalate(ctx, item, vt, target, now, sum); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Any open record whose condition no longer computes to a violation
	// has cleared: new activity arrived, the status changed, or the
	// comment was answered.
	for _, rec := range open {
		target, ok := targets[ViolationType(rec.Type)]
		if ok && target.level > LevelCompliant {
			continue
		}
		if err := t.store.Resolve(rec.ID, now); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("resolving %s: %w", rec.ID, err)
			}
			continue
		}
		sum.Resolved++
		t.log.Info("violation resolved",
			zap.String("item", item.ID),
			zap.String("type", rec.Type),
			zap.Int("level", rec.Level))
	}
	return firstErr
}

type breachTarget struct {
	breach Breach
	level  Level
}

func (t *Tracker) escalate(ctx context.Context, item source.WorkItem, vt ViolationType, target breachTarget, now time.Time, sum *Summary) error {
	rec, err := t.store.OpenViolation(item.ID, string(vt))
	if err != nil {
		return fmt.Errorf("loading violation for %s/%s: %w", item.ID, vt, err)
	}
	if rec == nil {
		ladder := t.thresholds[vt]
		rec = &store.ViolationRecord{
			ID:         uuid.NewString(),
			ItemID:     item.ID,
			Type:       string(vt),
			Owner:      item.Assignee,
			Title:      item.Title,
			DetectedAt: now,
			DueAt:      t.cal.Advance(target.breach.TriggerAt, ladder[0]),
			Level:      int(LevelCompliant),
			Status:     store.StatusOpen,
		}
		if err := t.store.CreateViolation(rec); err != nil {
			return fmt.Errorf("creating violation for %s/%s: %w", item.ID, vt, err)
		}
		sum.Created++
		t.log.Info("violation opened",
			zap.String("item", item.ID),
			zap.String("type", string(vt)),
			zap.Time("due_at", rec.DueAt))
	}

	// Levels are monotonic for the lifetime of a record.
	newLevel := Level(rec.Level)
	if target.level > newLevel {
		newLevel = target.level
	}
	if newLevel <= Level(rec.LastActedLevel()) {
		return nil
	}

	ref, err := t.exec.Execute(ctx, rec, newLevel, item)
	if err != nil {
		// Record the severity anyway; the action is retried on the
		// next pass because actions still trail the level.
		if serr := t.store.SetLevel(rec.ID, int(newLevel)); serr != nil {
			return fmt.Errorf("raising level after failed action: %w", serr)
		}
		return fmt.Errorf("escalation action at %s: %w", newLevel, err)
	}
	if err := t.store.RecordAction(rec.ID, int(newLevel), store.Action{
		Level:     int(newLevel),
		TakenAt:   now,
		ActionRef: ref,
	}); err != nil {
		return fmt.Errorf("recording action for %s: %w", rec.ID, err)
	}
	sum.Escalated++
	t.log.Info("violation escalated",
		zap.String("item", item.ID),
		zap.String("type", string(vt)),
		zap.Stringer("level", newLevel),
		zap.String("action_ref", ref))
	return nil
}
