package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		wantKind Kind
	}{
		{
			name:     "blocker phrase",
			event:    Event{Source: SourceChat, Category: CategoryMention, Text: "We are blocked on the API keys"},
			wantKind: KindBlocker,
		},
		{
			name:     "defect report",
			event:    Event{Source: SourceTracker, Category: CategoryMention, Text: "please file a bug for the login crash"},
			wantKind: KindDefectReport,
		},
		{
			name:     "feature request",
			event:    Event{Source: SourceChat, Category: CategoryMention, Text: "can you create a story for dark mode"},
			wantKind: KindFeatureRequest,
		},
		{
			name:     "status inquiry",
			event:    Event{Source: SourceChat, Category: CategoryMention, Text: "any update on the migration?"},
			wantKind: KindStatusInquiry,
		},
		{
			name:     "plain question falls through",
			event:    Event{Source: SourceChat, Category: CategoryMention, Text: "how does the retry logic work?"},
			wantKind: KindQuestion,
		},
		{
			name:     "pr activity routes to review",
			event:    Event{Source: SourceCodeReview, Category: CategoryPRActivity, Text: "new commit pushed"},
			wantKind: KindStatusInquiry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.event)
			assert.Equal(t, tt.wantKind, got.Kind)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	e := Event{Source: SourceChat, Category: CategoryMention, Text: "we are blocked, urgent"}
	first := Classify(e)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(e))
	}
}

func TestClassify_PriorityOrdering(t *testing.T) {
	blocker := Classify(Event{Category: CategoryMention, Text: "blocked on infra"})
	defect := Classify(Event{Category: CategoryMention, Text: "this is broken"})
	question := Classify(Event{Category: CategoryMention, Text: "what is the plan?"})
	feature := Classify(Event{Category: CategoryMention, Text: "add feature toggle"})

	assert.Greater(t, blocker.Priority, defect.Priority)
	assert.Greater(t, defect.Priority, question.Priority)
	assert.Greater(t, question.Priority, feature.Priority)
}

func TestClassify_StatusChangeStructuralHint(t *testing.T) {
	quiet := Event{Category: CategoryStatusChange, Text: "moved to In Review"}
	discussed := quiet
	discussed.Context = Context{Comments: []ContextComment{{Author: "bob", Text: "rebased"}}}

	assert.Greater(t, Classify(quiet).Priority, Classify(discussed).Priority)
}

func TestClassify_EmptyContextMention(t *testing.T) {
	// A brand-new mention with no prior history must classify cleanly.
	e := Event{
		ID:         "chat/123",
		Source:     SourceChat,
		Category:   CategoryMention,
		Text:       "@vigil can you summarize PROJ-44?",
		DetectedAt: time.Now(),
	}
	got := Classify(e)
	assert.Equal(t, KindQuestion, got.Kind)
	assert.Equal(t, HandlerRespond, got.Handler)
}

func TestBus_PublishAndReceive(t *testing.T) {
	bus := NewBus(4)
	e := Event{ID: "tracker/1"}

	require.NoError(t, bus.Publish(context.Background(), e))
	bus.Close()

	got, ok := <-bus.Events()
	require.True(t, ok)
	assert.Equal(t, "tracker/1", got.ID)

	_, ok = <-bus.Events()
	assert.False(t, ok)
}

func TestBus_PublishHonorsCancellation(t *testing.T) {
	bus := NewBus(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bus.Publish(ctx, Event{ID: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
