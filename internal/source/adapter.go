// Package source defines the fetch-adapter contract each platform client
// implements, and the Monitor that turns periodically polled raw items into
// canonical events exactly once.
package source

import (
	"context"
	"time"

	"github.com/RevCBH/vigil/internal/event"
)

// ItemType is the raw shape of a fetched item before normalization.
type ItemType string

const (
	ItemComment      ItemType = "comment"
	ItemStatusChange ItemType = "status-change"
	ItemPullRequest  ItemType = "pull-request"
)

// RawItem is one item returned by an adapter. Ephemeral: it is normalized
// into an event.Event and never persisted past classification.
type RawItem struct {
	Source     event.Source
	ExternalID string
	// ParentID scopes ExternalID when the item is a sub-item, e.g. a
	// comment on an issue. Empty for top-level items.
	ParentID   string
	ItemType   ItemType
	Actor      string
	TargetRef  string
	Text       string
	ObservedAt time.Time
	Payload    map[string]any
}

// WorkItemKind distinguishes the two tracked item shapes.
type WorkItemKind string

const (
	KindTicket      WorkItemKind = "ticket"
	KindPullRequest WorkItemKind = "pull-request"
)

// WorkItem mirrors an externally owned ticket or pull request. Read fresh
// from the adapter on every SLA evaluation pass; never owned by vigil.
type WorkItem struct {
	ID              string
	Kind            WorkItemKind
	Status          string
	Assignee        string
	Title           string
	URL             string
	LastActivityAt  time.Time
	EnteredStatusAt time.Time

	// AwaitingReplySince is set when the item carries a comment the
	// assignee has not answered; zero otherwise.
	AwaitingReplySince time.Time

	// Paused marks items flagged external-dependency or out-of-office.
	// The evaluation pass skips them, which effectively stops their clock.
	Paused bool
}

// Adapter is the per-platform fetch interface. Implementations own
// authentication, pagination and rate limiting; the core treats them as
// black boxes with bounded-timeout calls.
type Adapter interface {
	// FetchSince returns items at or after the cursor. The token is opaque
	// to the caller; adapters without a native cursor fall back to a
	// timestamp filter.
	FetchSince(ctx context.Context, cursor string) ([]RawItem, error)

	// FetchContext returns the parent item's description and prior
	// comments. Called only for items that passed the dedup gate.
	FetchContext(ctx context.Context, targetRef string) (*event.Context, error)

	// Post publishes content to the target, optionally mentioning an
	// actor. Returns a reference to the created comment or thread.
	Post(ctx context.Context, targetRef, content, mention string) (string, error)

	// FetchLiveState returns the current state of all monitored work
	// items. Used by the SLA evaluation pass.
	FetchLiveState(ctx context.Context) ([]WorkItem, error)
}
