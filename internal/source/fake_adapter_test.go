package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RevCBH/vigil/internal/event"
)

// fakeAdapter is an in-memory Adapter for tests. FetchSince mimics a
// timestamp-based cursor with inclusive overlap, so refetching after a poll
// returns boundary items again and exercises the dedup gate.
type fakeAdapter struct {
	mu         sync.Mutex
	items      []RawItem
	contexts   map[string]*event.Context
	contextErr map[string]error
	fetchErr   error
	live       []WorkItem
	liveErr    error

	contextCalls int
	posts        []fakePost
	postErr      error
}

type fakePost struct {
	targetRef string
	content   string
	mention   string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		contexts:   map[string]*event.Context{},
		contextErr: map[string]error{},
	}
}

func (f *fakeAdapter) FetchSince(ctx context.Context, cursor string) ([]RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	var since time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q: %w", cursor, err)
		}
		since = t
	}

	var out []RawItem
	for _, item := range f.items {
		if !item.ObservedAt.Before(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeAdapter) FetchContext(ctx context.Context, targetRef string) (*event.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contextCalls++
	if err := f.contextErr[targetRef]; err != nil {
		return nil, err
	}
	return f.contexts[targetRef], nil
}

func (f *fakeAdapter) Post(ctx context.Context, targetRef, content, mention string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posts = append(f.posts, fakePost{targetRef: targetRef, content: content, mention: mention})
	return fmt.Sprintf("post-%d", len(f.posts)), nil
}

func (f *fakeAdapter) FetchLiveState(ctx context.Context) ([]WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	return f.live, nil
}

func (f *fakeAdapter) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}
