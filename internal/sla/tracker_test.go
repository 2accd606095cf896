package sla

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/vigil/internal/bizhours"
	"github.com/RevCBH/vigil/internal/event"
	"github.com/RevCBH/vigil/internal/source"
	"github.com/RevCBH/vigil/internal/store"
)

// allHours counts every hour of every day as working time, so elapsed
// business time equals wall time and test arithmetic stays readable.
var allHours = bizhours.Calendar{
	StartHour: 0,
	EndHour:   24,
	Weekend:   map[time.Weekday]bool{},
	Holidays:  map[string]bool{},
	Location:  time.UTC,
}

type executorCall struct {
	itemID string
	vtype  string
	level  Level
}

type fakeExecutor struct {
	calls []executorCall
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, rec *store.ViolationRecord, level Level, item source.WorkItem) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, executorCall{itemID: item.ID, vtype: rec.Type, level: level})
	return fmt.Sprintf("ref-%s-%d", rec.Type, level), nil
}

type fakeLiveAdapter struct {
	items []source.WorkItem
	err   error
}

func (f *fakeLiveAdapter) FetchSince(context.Context, string) ([]source.RawItem, error) {
	return nil, nil
}

func (f *fakeLiveAdapter) FetchContext(context.Context, string) (*event.Context, error) {
	return &event.Context{}, nil
}

func (f *fakeLiveAdapter) Post(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (f *fakeLiveAdapter) FetchLiveState(context.Context) ([]source.WorkItem, error) {
	return f.items, f.err
}

type trackerFixture struct {
	tracker *Tracker
	store   *store.Store
	exec    *fakeExecutor
	adapter *fakeLiveAdapter
	now     time.Time
}

func newFixture(t *testing.T, thresholds Thresholds) *trackerFixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &trackerFixture{
		store:   s,
		exec:    &fakeExecutor{},
		adapter: &fakeLiveAdapter{},
		now:     time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), // Monday
	}
	f.tracker, err = NewTracker(TrackerOpts{
		Store:      s,
		Calendar:   allHours,
		Thresholds: thresholds,
		Executor:   f.exec,
		Adapters:   map[event.Source]source.Adapter{event.SourceTracker: f.adapter},
		Now:        func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

// shortLadder keeps only blocked-no-update fast; the other types get
// ladders far beyond any test horizon so they stay compliant.
func shortLadder() Thresholds {
	far := Ladder{1000 * time.Hour, 2000 * time.Hour, 3000 * time.Hour, 4000 * time.Hour}
	return Thresholds{
		BlockedNoUpdate:   {1 * time.Hour, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour},
		StaleActivity:     far,
		PendingApproval:   far,
		CommentUnanswered: far,
	}
}

func blockedItem(f *trackerFixture) source.WorkItem {
	return source.WorkItem{
		ID:              "PROJ-7",
		Kind:            source.KindTicket,
		Status:          "Blocked",
		Assignee:        "carol",
		Title:           "Payments webhook stuck",
		EnteredStatusAt: f.now,
		LastActivityAt:  f.now,
	}
}

func (f *trackerFixture) openRecord(t *testing.T, itemID string, vtype ViolationType) *store.ViolationRecord {
	t.Helper()
	rec, err := f.store.OpenViolation(itemID, string(vtype))
	require.NoError(t, err)
	return rec
}

func TestLadderLevelFor(t *testing.T) {
	ladder := Ladder{24 * time.Hour, 48 * time.Hour, 96 * time.Hour, 168 * time.Hour}
	cases := []struct {
		elapsed time.Duration
		want    Level
	}{
		{0, LevelCompliant},
		{23 * time.Hour, LevelCompliant},
		{24 * time.Hour, LevelWarning},
		{47 * time.Hour, LevelWarning},
		{48 * time.Hour, LevelTeam},
		{96 * time.Hour, LevelManagement},
		{167 * time.Hour, LevelManagement},
		{168 * time.Hour, LevelLeadership},
		{1000 * time.Hour, LevelLeadership},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ladder.LevelFor(tc.elapsed), "elapsed %v", tc.elapsed)
	}
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	missing := DefaultThresholds()
	delete(missing, CommentUnanswered)
	assert.Error(t, missing.Validate())

	descending := DefaultThresholds()
	descending[StaleActivity] = Ladder{10 * time.Hour, 5 * time.Hour, 20 * time.Hour, 30 * time.Hour}
	assert.Error(t, descending.Validate())
}

func TestConditions(t *testing.T) {
	now := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	t.Run("terminal status yields nothing", func(t *testing.T) {
		for _, status := range []string{"Done", "closed", "Cancelled", "Merged"} {
			item := source.WorkItem{ID: "X", Status: status, EnteredStatusAt: now, LastActivityAt: now}
			assert.Empty(t, conditions(item), "status %q", status)
		}
	})

	t.Run("blocked and pending approval key off status", func(t *testing.T) {
		item := source.WorkItem{ID: "X", Status: "Blocked", EnteredStatusAt: now}
		got := conditions(item)
		require.Len(t, got, 1)
		assert.Equal(t, BlockedNoUpdate, got[0].Type)
		assert.Equal(t, now, got[0].TriggerAt)

		item.Status = "Pending Approval"
		got = conditions(item)
		require.Len(t, got, 1)
		assert.Equal(t, PendingApproval, got[0].Type)
	})

	t.Run("awaiting reply and activity run alongside status", func(t *testing.T) {
		item := source.WorkItem{
			ID:                 "X",
			Status:             "In Progress",
			LastActivityAt:     now.Add(-time.Hour),
			AwaitingReplySince: now.Add(-30 * time.Minute),
		}
		got := conditions(item)
		types := make(map[ViolationType]bool)
		for _, b := range got {
			types[b.Type] = true
		}
		assert.True(t, types[StaleActivity])
		assert.True(t, types[CommentUnanswered])
		assert.False(t, types[BlockedNoUpdate])
	})
}

func TestTracker_BelowThresholdOpensNothing(t *testing.T) {
	f := newFixture(t, shortLadder())
	f.adapter.items = []source.WorkItem{blockedItem(f)}
	f.now = f.now.Add(30 * time.Minute)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Evaluated)
	assert.Equal(t, 0, sum.Created)
	assert.Nil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))
}

func TestTracker_WalksTheLadderOneActionPerLevel(t *testing.T) {
	f := newFixture(t, shortLadder())
	item := blockedItem(f)
	f.adapter.items = []source.WorkItem{item}
	start := f.now

	// Cross each threshold in turn, running two passes per level to show
	// evaluation is idempotent between crossings.
	for wantLevel := 1; wantLevel <= 4; wantLevel++ {
		f.now = start.Add(time.Duration(wantLevel)*time.Hour + time.Minute)

		sum, err := f.tracker.EvaluatePass(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Escalated, "level %d first pass", wantLevel)

		sum, err = f.tracker.EvaluatePass(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Escalated, "level %d repeat pass", wantLevel)

		rec := f.openRecord(t, item.ID, BlockedNoUpdate)
		require.NotNil(t, rec)
		assert.Equal(t, wantLevel, rec.Level)
		assert.Len(t, rec.ActionsTaken, wantLevel)
	}

	require.Len(t, f.exec.calls, 4)
	for i, call := range f.exec.calls {
		assert.Equal(t, Level(i+1), call.level)
		assert.Equal(t, string(BlockedNoUpdate), call.vtype)
	}
}

func TestTracker_SkippedPassesCollapseToSingleAction(t *testing.T) {
	f := newFixture(t, shortLadder())
	f.adapter.items = []source.WorkItem{blockedItem(f)}

	// No pass ran while the item climbed three levels; the next pass acts
	// once at the current level rather than replaying the missed ones.
	f.now = f.now.Add(3*time.Hour + time.Minute)
	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Escalated)

	rec := f.openRecord(t, "PROJ-7", BlockedNoUpdate)
	require.NotNil(t, rec)
	assert.Equal(t, int(LevelManagement), rec.Level)
	require.Len(t, rec.ActionsTaken, 1)
	assert.Equal(t, int(LevelManagement), rec.ActionsTaken[0].Level)
}

func TestTracker_DueAtUsesBusinessCalendar(t *testing.T) {
	f := newFixture(t, shortLadder())
	item := blockedItem(f)
	f.adapter.items = []source.WorkItem{item}
	f.now = f.now.Add(90 * time.Minute)

	_, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)

	rec := f.openRecord(t, item.ID, BlockedNoUpdate)
	require.NotNil(t, rec)
	want := allHours.Advance(item.EnteredStatusAt, time.Hour)
	assert.True(t, rec.DueAt.Equal(want), "due %v want %v", rec.DueAt, want)
}

func TestTracker_ResolvesWhenConditionClears(t *testing.T) {
	f := newFixture(t, shortLadder())
	item := blockedItem(f)
	f.adapter.items = []source.WorkItem{item}
	f.now = f.now.Add(2*time.Hour + time.Minute)

	_, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f.openRecord(t, item.ID, BlockedNoUpdate))

	// Status changed mid-escalation: the record resolves at its current
	// level and stops climbing.
	unblocked := item
	unblocked.Status = "In Progress"
	unblocked.EnteredStatusAt = f.now
	unblocked.LastActivityAt = f.now
	f.adapter.items = []source.WorkItem{unblocked}
	f.now = f.now.Add(10 * time.Minute)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)
	assert.Nil(t, f.openRecord(t, item.ID, BlockedNoUpdate))

	all, err := f.store.Violations()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, store.StatusResolved, all[0].Status)
	assert.Equal(t, int(LevelTeam), all[0].Level)

	// A later recurrence opens a fresh record starting from level zero,
	// never resurrecting the resolved one.
	reblocked := unblocked
	reblocked.Status = "Blocked"
	reblocked.EnteredStatusAt = f.now
	f.adapter.items = []source.WorkItem{reblocked}
	f.now = f.now.Add(time.Hour + time.Minute)

	sum, err = f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)

	fresh := f.openRecord(t, item.ID, BlockedNoUpdate)
	require.NotNil(t, fresh)
	assert.NotEqual(t, all[0].ID, fresh.ID)
	assert.Equal(t, int(LevelWarning), fresh.Level)
}

func TestTracker_PausedItemsAreSkipped(t *testing.T) {
	f := newFixture(t, shortLadder())
	item := blockedItem(f)
	item.Paused = true
	f.adapter.items = []source.WorkItem{item}
	f.now = f.now.Add(5 * time.Hour)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Evaluated)
	assert.Nil(t, f.openRecord(t, item.ID, BlockedNoUpdate))
}

func TestTracker_PausePreservesOpenRecord(t *testing.T) {
	f := newFixture(t, shortLadder())
	item := blockedItem(f)
	f.adapter.items = []source.WorkItem{item}
	f.now = f.now.Add(time.Hour + time.Minute)

	_, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f.openRecord(t, item.ID, BlockedNoUpdate))

	// Pausing stops the clock but does not resolve anything.
	paused := item
	paused.Paused = true
	f.adapter.items = []source.WorkItem{paused}
	f.now = f.now.Add(10 * time.Hour)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Resolved)
	assert.Equal(t, 0, sum.Escalated)

	rec := f.openRecord(t, item.ID, BlockedNoUpdate)
	require.NotNil(t, rec)
	assert.Equal(t, int(LevelWarning), rec.Level)
}

func TestTracker_FailedActionRetriesNextPass(t *testing.T) {
	f := newFixture(t, shortLadder())
	f.adapter.items = []source.WorkItem{blockedItem(f)}
	f.now = f.now.Add(time.Hour + time.Minute)

	f.exec.err = fmt.Errorf("chat backend unreachable")
	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Escalated)

	// The level still reflects observed severity; only the action trails.
	rec := f.openRecord(t, "PROJ-7", BlockedNoUpdate)
	require.NotNil(t, rec)
	assert.Equal(t, int(LevelWarning), rec.Level)
	assert.Empty(t, rec.ActionsTaken)

	f.exec.err = nil
	sum, err = f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Escalated)

	rec = f.openRecord(t, "PROJ-7", BlockedNoUpdate)
	require.Len(t, rec.ActionsTaken, 1)
	assert.Equal(t, int(LevelWarning), rec.ActionsTaken[0].Level)
	require.Len(t, f.exec.calls, 1)
}

func TestTracker_FetchFailureLeavesRecordsUntouched(t *testing.T) {
	f := newFixture(t, shortLadder())
	f.adapter.items = []source.WorkItem{blockedItem(f)}
	f.now = f.now.Add(time.Hour + time.Minute)

	_, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))

	f.adapter.err = fmt.Errorf("tracker API 503")
	f.now = f.now.Add(2 * time.Hour)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Evaluated)
	assert.Equal(t, 0, sum.Resolved)

	rec := f.openRecord(t, "PROJ-7", BlockedNoUpdate)
	require.NotNil(t, rec)
	assert.Equal(t, int(LevelWarning), rec.Level)
}

func TestTracker_ResolvesWhenItemLeavesLiveState(t *testing.T) {
	f := newFixture(t, shortLadder())
	f.adapter.items = []source.WorkItem{blockedItem(f)}
	f.now = f.now.Add(time.Hour + time.Minute)

	_, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))

	// The item was closed and the source no longer reports it. The
	// record resolves instead of staying open forever.
	f.adapter.items = nil
	f.now = f.now.Add(time.Hour)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)
	assert.Nil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))

	all, err := f.store.Violations()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, store.StatusResolved, all[0].Status)
}

func TestTracker_PartialFetchKeepsVanishedItemOpen(t *testing.T) {
	// With two sources, an item absent from one source's live state may
	// still belong to the other. A failed fetch means absence cannot be
	// established, so vanished-item resolution is off for the pass.
	f := newFixture(t, shortLadder())
	second := &fakeLiveAdapter{}
	tracker, err := NewTracker(TrackerOpts{
		Store:      f.store,
		Calendar:   allHours,
		Thresholds: shortLadder(),
		Executor:   f.exec,
		Adapters: map[event.Source]source.Adapter{
			event.SourceTracker:    f.adapter,
			event.SourceCodeReview: second,
		},
		Now: func() time.Time { return f.now },
	})
	require.NoError(t, err)

	f.adapter.items = []source.WorkItem{blockedItem(f)}
	f.now = f.now.Add(time.Hour + time.Minute)
	_, err = tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))

	f.adapter.items = nil
	second.err = fmt.Errorf("codereview API 503")
	f.now = f.now.Add(time.Hour)

	sum, err := tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Resolved)
	require.NotNil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))

	// Once both sources answer, the absence is trusted.
	second.err = nil
	sum, err = tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)
	assert.Nil(t, f.openRecord(t, "PROJ-7", BlockedNoUpdate))
}

func TestTracker_IndependentTypesPerItem(t *testing.T) {
	thresholds := shortLadder()
	thresholds[CommentUnanswered] = Ladder{30 * time.Minute, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour}
	f := newFixture(t, thresholds)

	item := blockedItem(f)
	item.AwaitingReplySince = f.now
	f.adapter.items = []source.WorkItem{item}
	f.now = f.now.Add(time.Hour + time.Minute)

	sum, err := f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)

	blocked := f.openRecord(t, item.ID, BlockedNoUpdate)
	unanswered := f.openRecord(t, item.ID, CommentUnanswered)
	require.NotNil(t, blocked)
	require.NotNil(t, unanswered)
	assert.Equal(t, int(LevelWarning), blocked.Level)
	assert.Equal(t, int(LevelTeam), unanswered.Level)

	// Answering the comment resolves one record and leaves the other open.
	answered := item
	answered.AwaitingReplySince = time.Time{}
	f.adapter.items = []source.WorkItem{answered}
	f.now = f.now.Add(5 * time.Minute)

	sum, err = f.tracker.EvaluatePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)
	assert.NotNil(t, f.openRecord(t, item.ID, BlockedNoUpdate))
	assert.Nil(t, f.openRecord(t, item.ID, CommentUnanswered))
}
