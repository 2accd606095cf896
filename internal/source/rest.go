package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RevCBH/vigil/internal/event"
)

// RESTAdapter implements Adapter against a platform bridge: a small HTTP
// service that owns the platform credentials and exposes a uniform JSON API.
// Keeping platform specifics behind the bridge means vigil never links a
// platform SDK.
type RESTAdapter struct {
	source  event.Source
	baseURL string
	token   string
	client  *http.Client
}

// NewRESTAdapter creates an adapter for the bridge at baseURL.
func NewRESTAdapter(src event.Source, baseURL, token string) *RESTAdapter {
	return &RESTAdapter{
		source:  src,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewRESTAdapterWithClient creates an adapter with a custom HTTP client.
func NewRESTAdapterWithClient(src event.Source, baseURL, token string, client *http.Client) *RESTAdapter {
	a := NewRESTAdapter(src, baseURL, token)
	a.client = client
	return a
}

// wireItem is the bridge's item shape.
type wireItem struct {
	ExternalID string         `json:"external_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	ItemType   string         `json:"item_type"`
	Actor      string         `json:"actor"`
	TargetRef  string         `json:"target_ref"`
	Text       string         `json:"text"`
	ObservedAt time.Time      `json:"observed_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// wireContext is the bridge's context shape.
type wireContext struct {
	Description string `json:"description"`
	Comments    []struct {
		Author   string    `json:"author"`
		Text     string    `json:"text"`
		PostedAt time.Time `json:"posted_at"`
	} `json:"comments"`
}

// wireWorkItem is the bridge's live-state shape.
type wireWorkItem struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	Assignee           string    `json:"assignee"`
	Title              string    `json:"title"`
	URL                string    `json:"url"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	EnteredStatusAt    time.Time `json:"entered_status_at"`
	AwaitingReplySince time.Time `json:"awaiting_reply_since"`
	Paused             bool      `json:"paused"`
}

// FetchSince returns items at or after the cursor.
func (a *RESTAdapter) FetchSince(ctx context.Context, cursor string) ([]RawItem, error) {
	endpoint := a.baseURL + "/items"
	if cursor != "" {
		endpoint += "?since=" + url.QueryEscape(cursor)
	}
	var wire []wireItem
	if err := a.get(ctx, endpoint, &wire); err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	items := make([]RawItem, 0, len(wire))
	for _, w := range wire {
		items = append(items, RawItem{
			Source:     a.source,
			ExternalID: w.ExternalID,
			ParentID:   w.ParentID,
			ItemType:   ItemType(w.ItemType),
			Actor:      w.Actor,
			TargetRef:  w.TargetRef,
			Text:       w.Text,
			ObservedAt: w.ObservedAt,
			Payload:    w.Payload,
		})
	}
	return items, nil
}

// FetchContext returns the parent item's description and prior comments.
func (a *RESTAdapter) FetchContext(ctx context.Context, targetRef string) (*event.Context, error) {
	endpoint := a.baseURL + "/context?ref=" + url.QueryEscape(targetRef)
	var wire wireContext
	if err := a.get(ctx, endpoint, &wire); err != nil {
		return nil, fmt.Errorf("fetch context for %s: %w", targetRef, err)
	}
	out := &event.Context{Description: wire.Description}
	for _, c := range wire.Comments {
		out.Comments = append(out.Comments, event.ContextComment{
			Author: c.Author,
			Text:   c.Text,
			At:     c.PostedAt,
		})
	}
	return out, nil
}

// Post publishes content to the target via the bridge.
func (a *RESTAdapter) Post(ctx context.Context, targetRef, content, mention string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"target_ref": targetRef,
		"content":    content,
		"mention":    mention,
	})
	if err != nil {
		return "", fmt.Errorf("marshal post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/post", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to %s: %w", targetRef, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("bridge returned %d posting to %s", resp.StatusCode, targetRef)
	}

	var out struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode post response: %w", err)
	}
	return out.Ref, nil
}

// FetchLiveState returns the current state of all monitored work items.
func (a *RESTAdapter) FetchLiveState(ctx context.Context) ([]WorkItem, error) {
	var wire []wireWorkItem
	if err := a.get(ctx, a.baseURL+"/live", &wire); err != nil {
		return nil, fmt.Errorf("fetch live state: %w", err)
	}
	items := make([]WorkItem, 0, len(wire))
	for _, w := range wire {
		items = append(items, WorkItem{
			ID:                 w.ID,
			Kind:               WorkItemKind(w.Kind),
			Status:             w.Status,
			Assignee:           w.Assignee,
			Title:              w.Title,
			URL:                w.URL,
			LastActivityAt:     w.LastActivityAt,
			EnteredStatusAt:    w.EnteredStatusAt,
			AwaitingReplySince: w.AwaitingReplySince,
			Paused:             w.Paused,
		})
	}
	return items, nil
}

func (a *RESTAdapter) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bridge returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *RESTAdapter) authorize(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}
