package event

import "strings"

// Kind is the fine-grained classification of an event's content.
type Kind string

const (
	KindBlocker        Kind = "blocker"
	KindDefectReport   Kind = "defect-report"
	KindQuestion       Kind = "question"
	KindStatusInquiry  Kind = "status-inquiry"
	KindFeatureRequest Kind = "feature-request"
)

// Handler names the downstream handler a classification routes to.
type Handler string

const (
	HandlerRespond  Handler = "respond" // reasoning engine drafts a reply
	HandlerTriage   Handler = "triage"  // reasoning engine drafts a ticket
	HandlerPRReview Handler = "review"  // code review flow
)

// Priority orders dispatch within a batch: higher dispatches first.
const (
	PriorityBlocker = 40
	PriorityDefect  = 30
	PriorityInquiry = 20
	PriorityFeature = 10
)

// Classification is the result of classifying one event.
type Classification struct {
	Kind     Kind
	Priority int
	Handler  Handler
}

// Keyword tables. Phrase matching is intentionally dumb: the reasoning
// engine downstream does the nuanced reading, classification only has to
// order the queue and pick a handler.
var (
	blockerPhrases = []string{
		"blocked", "blocker", "can't proceed", "cannot proceed",
		"urgent", "show stopper", "showstopper",
	}
	defectPhrases = []string{
		"create a bug", "file a bug", "report a bug", "bug report",
		"create a defect", "file a defect", "this is broken",
		"not working", "issue with",
	}
	featurePhrases = []string{
		"create a story", "write a story", "make a story",
		"create a ticket", "write up a ticket", "file a ticket",
		"create a feature", "new feature", "add feature",
		"create an epic", "write an epic",
	}
	statusPhrases = []string{
		"status", "any update", "progress", "eta", "when will",
	}
)

// Classify maps an event to its kind, priority and handler. Pure function:
// no I/O, no state, deterministic for a given event.
func Classify(e Event) Classification {
	text := strings.ToLower(e.Text)

	switch {
	case e.Category == CategoryPRActivity:
		return Classification{Kind: KindStatusInquiry, Priority: PriorityInquiry, Handler: HandlerPRReview}

	case containsAny(text, blockerPhrases):
		return Classification{Kind: KindBlocker, Priority: PriorityBlocker, Handler: HandlerRespond}

	case containsAny(text, defectPhrases):
		return Classification{Kind: KindDefectReport, Priority: PriorityDefect, Handler: HandlerTriage}

	case containsAny(text, featurePhrases):
		return Classification{Kind: KindFeatureRequest, Priority: PriorityFeature, Handler: HandlerTriage}

	case e.Category == CategoryStatusChange:
		// A status change on an item with no recorded discussion reads as a
		// silent transition worth asking about; one with recent comments is
		// ordinary progress.
		if e.Context.Empty() {
			return Classification{Kind: KindStatusInquiry, Priority: PriorityInquiry, Handler: HandlerRespond}
		}
		return Classification{Kind: KindStatusInquiry, Priority: PriorityFeature, Handler: HandlerRespond}

	case containsAny(text, statusPhrases):
		return Classification{Kind: KindStatusInquiry, Priority: PriorityInquiry, Handler: HandlerRespond}

	default:
		return Classification{Kind: KindQuestion, Priority: PriorityInquiry, Handler: HandlerRespond}
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
