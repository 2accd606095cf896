// Package sla implements the violation tracker: a durable state machine per
// (work item, violation type) that maps elapsed business time onto an
// escalation ladder and emits exactly one action per level crossed.
package sla

import (
	"fmt"
	"strings"
	"time"

	"github.com/RevCBH/vigil/internal/source"
)

// ViolationType identifies which SLA condition a work item is breaching.
type ViolationType string

const (
	StaleActivity     ViolationType = "stale-activity"
	PendingApproval   ViolationType = "pending-approval"
	BlockedNoUpdate   ViolationType = "blocked-no-update"
	CommentUnanswered ViolationType = "comment-unanswered"
)

// Types lists every violation type, in reporting order.
var Types = []ViolationType{StaleActivity, PendingApproval, BlockedNoUpdate, CommentUnanswered}

// Level is the escalation ordinal: 0 compliant through 4 leadership.
type Level int

const (
	LevelCompliant Level = iota
	LevelWarning
	LevelTeam
	LevelManagement
	LevelLeadership
)

func (l Level) String() string {
	switch l {
	case LevelCompliant:
		return "compliant"
	case LevelWarning:
		return "warning"
	case LevelTeam:
		return "level-2"
	case LevelManagement:
		return "level-3"
	case LevelLeadership:
		return "level-4"
	default:
		return fmt.Sprintf("level-%d", int(l))
	}
}

// Ladder holds the business-hour thresholds for levels 1 through 4,
// strictly ascending.
type Ladder [4]time.Duration

// LevelFor maps elapsed business time onto the ladder.
func (l Ladder) LevelFor(elapsed time.Duration) Level {
	level := LevelCompliant
	for i, threshold := range l {
		if elapsed >= threshold {
			level = Level(i + 1)
		}
	}
	return level
}

// Validate checks that the ladder ascends.
func (l Ladder) Validate() error {
	for i := 0; i < len(l); i++ {
		if l[i] <= 0 {
			return fmt.Errorf("threshold %d must be positive, got %v", i+1, l[i])
		}
		if i > 0 && l[i] <= l[i-1] {
			return fmt.Errorf("thresholds must ascend: %v then %v", l[i-1], l[i])
		}
	}
	return nil
}

// Thresholds is the per-type threshold matrix.
type Thresholds map[ViolationType]Ladder

// DefaultThresholds returns the documented four-level matrix.
func DefaultThresholds() Thresholds {
	h := time.Hour
	return Thresholds{
		StaleActivity:     {16 * h, 32 * h, 64 * h, 128 * h},
		PendingApproval:   {48 * h, 96 * h, 144 * h, 192 * h},
		BlockedNoUpdate:   {24 * h, 48 * h, 96 * h, 168 * h},
		CommentUnanswered: {48 * h, 96 * h, 144 * h, 192 * h},
	}
}

// Validate checks every ladder and that all types are covered.
func (t Thresholds) Validate() error {
	for _, vt := range Types {
		ladder, ok := t[vt]
		if !ok {
			return fmt.Errorf("missing thresholds for %s", vt)
		}
		if err := ladder.Validate(); err != nil {
			return fmt.Errorf("%s: %w", vt, err)
		}
	}
	return nil
}

// Breach is one active SLA condition on a work item: the type and the
// instant the business-hours clock starts counting from.
type Breach struct {
	Type      ViolationType
	TriggerAt time.Time
}

// terminal statuses never accrue violations.
var terminalStatuses = map[string]bool{
	"done": true, "closed": true, "cancelled": true, "resolved": true, "merged": true,
}

// conditions returns the breach candidates a work item currently exhibits.
// Whether a candidate is an actual violation depends on elapsed business
// time, which is the tracker's job to compute.
func conditions(item source.WorkItem) []Breach {
	status := strings.ToLower(strings.TrimSpace(item.Status))
	if terminalStatuses[status] {
		return nil
	}

	var out []Breach
	if strings.Contains(status, "blocked") && !item.EnteredStatusAt.IsZero() {
		out = append(out, Breach{Type: BlockedNoUpdate, TriggerAt: item.EnteredStatusAt})
	}
	if strings.Contains(status, "pending") && strings.Contains(status, "approval") && !item.EnteredStatusAt.IsZero() {
		out = append(out, Breach{Type: PendingApproval, TriggerAt: item.EnteredStatusAt})
	}
	if !item.LastActivityAt.IsZero() {
		out = append(out, Breach{Type: StaleActivity, TriggerAt: item.LastActivityAt})
	}
	if !item.AwaitingReplySince.IsZero() {
		out = append(out, Breach{Type: CommentUnanswered, TriggerAt: item.AwaitingReplySince})
	}
	return out
}
