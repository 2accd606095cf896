package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/event"
	"github.com/RevCBH/vigil/internal/store"
)

// Monitor owns the polling loop for one source. Monitors share nothing with
// each other; the dedup store is the only shared resource, so one source's
// failure or rate limiting never blocks another's progress.
type Monitor struct {
	source   event.Source
	adapter  Adapter
	store    *store.Store
	bus      *event.Bus
	log      *zap.Logger
	interval time.Duration

	// mention is the bot handle comment items must contain to be relevant.
	// Empty accepts every comment.
	mention string

	now func() time.Time
}

// MonitorOpts configures a Monitor.
type MonitorOpts struct {
	Source   event.Source
	Adapter  Adapter
	Store    *store.Store
	Bus      *event.Bus
	Log      *zap.Logger
	Interval time.Duration
	Mention  string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewMonitor creates a monitor for one source.
func NewMonitor(opts MonitorOpts) *Monitor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		source:   opts.Source,
		adapter:  opts.Adapter,
		store:    opts.Store,
		bus:      opts.Bus,
		log:      log.With(zap.String("source", string(opts.Source))),
		interval: opts.Interval,
		mention:  opts.Mention,
		now:      now,
	}
}

// Source returns the source this monitor watches.
func (m *Monitor) Source() event.Source {
	return m.source
}

// Run polls on the configured interval until ctx is cancelled. The
// in-flight poll always completes before Run returns.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if n, err := m.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("poll cycle failed", zap.Error(err))
		} else if n > 0 {
			m.log.Info("poll cycle complete", zap.Int("events", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs one poll cycle: fetch since the persisted cursor, emit an
// event for each relevant unprocessed item, and advance the cursor. Items
// are handled in ObservedAt order so cursor advancement is monotonic.
// Returns the number of events emitted.
//
// Per-item failures do not abort the batch, but the cursor never advances
// past the first failed item, so it is refetched next cycle; items handled
// after it are then skipped by the dedup gate.
func (m *Monitor) PollOnce(ctx context.Context) (int, error) {
	cursor, err := m.store.Cursor(string(m.source))
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	items, err := m.adapter.FetchSince(ctx, cursor)
	if err != nil {
		return 0, fmt.Errorf("fetch since %q: %w", cursor, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ObservedAt.Before(items[j].ObservedAt)
	})

	emitted := 0
	var advanceTo time.Time
	failed := false

	for _, item := range items {
		ok, err := m.handleItem(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			m.log.Warn("item failed, will retry next cycle",
				zap.String("external_id", item.ExternalID), zap.Error(err))
			failed = true
			continue
		}
		if ok {
			emitted++
		}
		if !failed && item.ObservedAt.After(advanceTo) {
			advanceTo = item.ObservedAt
		}
	}

	if !advanceTo.IsZero() {
		if err := m.store.SetCursor(string(m.source), advanceTo.UTC().Format(time.RFC3339Nano)); err != nil {
			return emitted, fmt.Errorf("persist cursor: %w", err)
		}
	}
	return emitted, nil
}

// Ingest feeds one pushed item (webhook delivery) through the identical
// dedup gate as the polling path. Push exists to reduce latency; a webhook
// racing the backup poll for the same item resolves through MarkProcessed,
// exactly one path wins.
func (m *Monitor) Ingest(ctx context.Context, item RawItem) (bool, error) {
	return m.handleItem(ctx, item)
}

// handleItem normalizes one raw item into an event. Returns true when an
// event was emitted. Marking processed happens strictly before the event
// is handed over, so a crash mid-handling never replays the item.
func (m *Monitor) handleItem(ctx context.Context, item RawItem) (bool, error) {
	if !m.relevant(item) {
		return false, nil
	}

	key := store.DedupKey{
		Source:     string(m.source),
		ParentID:   item.ParentID,
		ExternalID: item.ExternalID,
	}

	processed, err := m.store.IsProcessed(key)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if processed {
		return false, nil
	}

	// Context fetch is a second external call, made only for new items so
	// repeated polls do not multiply API load.
	evCtx, err := m.adapter.FetchContext(ctx, item.TargetRef)
	if err != nil {
		return false, fmt.Errorf("fetch context for %s: %w", item.TargetRef, err)
	}
	if evCtx == nil {
		evCtx = &event.Context{}
	}

	if err := m.store.MarkProcessed(key, m.now()); err != nil {
		if errors.Is(err, store.ErrAlreadyMarked) {
			// Lost the race against another delivery path. Discard silently.
			return false, nil
		}
		return false, fmt.Errorf("mark processed: %w", err)
	}

	ev := event.Event{
		ID:         key.ID(),
		Source:     m.source,
		Category:   categoryFor(item.ItemType),
		Actor:      item.Actor,
		TargetRef:  item.TargetRef,
		Text:       item.Text,
		Context:    *evCtx,
		DetectedAt: item.ObservedAt,
	}

	if err := m.bus.Publish(ctx, ev); err != nil {
		// The key is already marked; the event was at least attempted and
		// restart will not replay it. This is the accepted drop window.
		return false, fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return true, nil
}

// relevant filters raw items to those addressed to the assistant. Status
// changes and PR activity always pass; comments pass on a bot mention.
func (m *Monitor) relevant(item RawItem) bool {
	if item.ItemType != ItemComment {
		return true
	}
	if m.mention == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Text), strings.ToLower(m.mention))
}

func categoryFor(t ItemType) event.Category {
	switch t {
	case ItemStatusChange:
		return event.CategoryStatusChange
	case ItemPullRequest:
		return event.CategoryPRActivity
	default:
		return event.CategoryMention
	}
}
