// Package event defines the canonical, source-agnostic representation of a
// detected change and the pure classification applied to it before dispatch.
package event

import (
	"fmt"
	"time"
)

// Source identifies which external platform an event originated from.
type Source string

const (
	SourceTracker    Source = "tracker"
	SourceChat       Source = "chat"
	SourceCodeReview Source = "codereview"
)

// Category is the coarse shape of the detected change.
type Category string

const (
	CategoryMention      Category = "mention"
	CategoryStatusChange Category = "status-change"
	CategoryPRActivity   Category = "pr-activity"
)

// ContextComment is one prior comment on the parent item, oldest first.
type ContextComment struct {
	Author string
	Text   string
	At     time.Time
}

// Context carries the parent item's history so classification and response
// generation see the full conversation, not just the triggering fragment.
type Context struct {
	Description string
	Comments    []ContextComment
}

// Empty reports whether no prior history was available.
func (c Context) Empty() bool {
	return c.Description == "" && len(c.Comments) == 0
}

// Event is the canonical form every monitor normalizes raw items into.
// Immutable once created. ID is derived from the dedup key, so an Event
// exists at most once for any underlying raw item.
type Event struct {
	ID         string
	Source     Source
	Category   Category
	Actor      string
	TargetRef  string
	Text       string
	Context    Context
	DetectedAt time.Time
}

// String returns a short log form, e.g. "[mention] chat alice PROJ-12".
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s %s %s", e.Category, e.Source, e.Actor, e.TargetRef)
}
