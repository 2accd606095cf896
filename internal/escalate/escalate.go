// Package escalate delivers escalation actions for SLA violations: the
// primary post back onto the breaching work item, and side-channel notices
// to the configured notification backends.
package escalate

import (
	"context"
	"time"
)

// Severity indicates how urgent a notice is
type Severity string

const (
	SeverityInfo     Severity = "info"     // FYI, no action needed
	SeverityWarning  Severity = "warning"  // May need attention
	SeverityCritical Severity = "critical" // Requires immediate action
	SeverityBlocking Severity = "blocking" // Work cannot proceed
)

// Notice is a side-channel notification about a violation, sent alongside
// the primary post on the work item itself
type Notice struct {
	Severity Severity  // How urgent is this?
	ItemID   string    // Which work item is affected
	Type     string    // Violation type that triggered the notice
	Level    int       // Escalation level reached
	Owner    string    // Who the item is waiting on
	Title    string    // Short summary (one line)
	Message  string    // Detailed explanation
	URL      string    // Link to the work item, if the source provides one
	DueAt    time.Time // When the first response was due
}

// Notifier is the interface for side-channel notification backends
type Notifier interface {
	// Notify sends the notice.
	// Returns nil if the notice was delivered successfully.
	// Implementations should respect context cancellation.
	Notify(ctx context.Context, n Notice) error

	// Name returns the backend type for logging
	Name() string
}
