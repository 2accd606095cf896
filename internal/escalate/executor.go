package escalate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/sla"
	"github.com/RevCBH/vigil/internal/source"
	"github.com/RevCBH/vigil/internal/store"
)

// Executor performs escalation actions: it posts the level-appropriate
// message onto the breaching work item and, from level 2 up, fans a notice
// out to the side-channel backends. It satisfies the tracker's Executor
// contract.
type Executor struct {
	posters           map[source.WorkItemKind]source.Adapter
	notifier          Notifier
	roster            map[string]string
	escalationContact string
	leadershipContact string
	dryRun            bool
	log               *zap.Logger
}

// ExecutorOpts configures an Executor.
type ExecutorOpts struct {
	// Posters maps each work-item kind to the adapter that can comment
	// on items of that kind.
	Posters map[source.WorkItemKind]source.Adapter

	// Notifier receives side-channel notices for level 2 and above.
	// Optional; nil disables the side channel.
	Notifier Notifier

	// Roster maps owner names to platform mention handles.
	Roster map[string]string

	// EscalationContact is mentioned from level 3 up.
	EscalationContact string

	// LeadershipContact is mentioned at level 4.
	LeadershipContact string

	// DryRun logs actions instead of posting them.
	DryRun bool

	Logger *zap.Logger
}

func NewExecutor(opts ExecutorOpts) (*Executor, error) {
	if len(opts.Posters) == 0 {
		return nil, fmt.Errorf("at least one poster is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Executor{
		posters:           opts.Posters,
		notifier:          opts.Notifier,
		roster:            opts.Roster,
		escalationContact: opts.EscalationContact,
		leadershipContact: opts.LeadershipContact,
		dryRun:            opts.DryRun,
		log:               opts.Logger,
	}, nil
}

// Execute posts the escalation message for level onto the work item and
// returns a reference to the created comment. The side-channel notice is
// best effort: once the primary post has landed the action counts as taken,
// so a notifier failure is logged rather than returned.
func (e *Executor) Execute(ctx context.Context, rec *store.ViolationRecord, level sla.Level, item source.WorkItem) (string, error) {
	content := e.composeMessage(rec, level, item)
	mention := e.mentionFor(rec.Owner)

	if e.dryRun {
		ref := "dry-run-" + uuid.NewString()
		e.log.Info("dry run: suppressing escalation post",
			zap.String("item", item.ID),
			zap.String("type", rec.Type),
			zap.Stringer("level", level),
			zap.String("content", content))
		return ref, nil
	}

	adapter, ok := e.posters[item.Kind]
	if !ok {
		return "", fmt.Errorf("no poster for work item kind %q", item.Kind)
	}
	ref, err := adapter.Post(ctx, item.ID, content, mention)
	if err != nil {
		return "", fmt.Errorf("posting escalation to %s: %w", item.ID, err)
	}
	if ref == "" {
		ref = uuid.NewString()
	}

	if level >= sla.LevelTeam && e.notifier != nil {
		notice := e.composeNotice(rec, level, item)
		if err := e.notifier.Notify(ctx, notice); err != nil {
			e.log.Warn("side-channel notice failed",
				zap.String("backend", e.notifier.Name()),
				zap.String("item", item.ID),
				zap.Error(err))
		}
	}
	return ref, nil
}

func (e *Executor) mentionFor(owner string) string {
	if handle, ok := e.roster[owner]; ok {
		return handle
	}
	return owner
}

// conditionPhrase describes what the item is violating, in comment prose.
func conditionPhrase(vtype string) string {
	switch sla.ViolationType(vtype) {
	case sla.BlockedNoUpdate:
		return "has been blocked without an update"
	case sla.PendingApproval:
		return "has been waiting for approval"
	case sla.StaleActivity:
		return "has had no activity"
	case sla.CommentUnanswered:
		return "has an unanswered comment"
	default:
		return "has been out of compliance"
	}
}

func (e *Executor) composeMessage(rec *store.ViolationRecord, level sla.Level, item source.WorkItem) string {
	var b strings.Builder
	phrase := conditionPhrase(rec.Type)
	since := rec.DetectedAt.Format(time.RFC1123)

	switch level {
	case sla.LevelWarning:
		fmt.Fprintf(&b, "Reminder: this item %s since it breached its response window (detected %s).", phrase, since)
		b.WriteString(" Please post a status update or unblock it.")
	case sla.LevelTeam:
		fmt.Fprintf(&b, "Second notice: this item still %s (first flagged %s).", phrase, since)
		b.WriteString(" Raising visibility with the team.")
	case sla.LevelManagement:
		fmt.Fprintf(&b, "Escalation: this item %s well past its response window (first flagged %s).", phrase, since)
		if e.escalationContact != "" {
			fmt.Fprintf(&b, " cc %s", e.escalationContact)
		}
	case sla.LevelLeadership:
		fmt.Fprintf(&b, "Leadership escalation: this item %s with no resolution in sight (first flagged %s).", phrase, since)
		contact := e.leadershipContact
		if contact == "" {
			contact = e.escalationContact
		}
		if contact != "" {
			fmt.Fprintf(&b, " cc %s", contact)
		}
	default:
		fmt.Fprintf(&b, "This item %s (first flagged %s).", phrase, since)
	}
	return b.String()
}

func (e *Executor) composeNotice(rec *store.ViolationRecord, level sla.Level, item source.WorkItem) Notice {
	severity := SeverityWarning
	switch level {
	case sla.LevelManagement:
		severity = SeverityCritical
	case sla.LevelLeadership:
		severity = SeverityBlocking
	}
	return Notice{
		Severity: severity,
		ItemID:   item.ID,
		Type:     rec.Type,
		Level:    int(level),
		Owner:    rec.Owner,
		Title:    fmt.Sprintf("%s at %s: %s", rec.Type, level, rec.Title),
		Message:  e.composeMessage(rec, level, item),
		URL:      item.URL,
		DueAt:    rec.DueAt,
	}
}
