package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookPayload is the JSON structure sent to webhook endpoints
type WebhookPayload struct {
	Severity      string     `json:"severity"`
	ItemID        string     `json:"item_id"`
	ViolationType string     `json:"violation_type"`
	Level         int        `json:"level"`
	Owner         string     `json:"owner,omitempty"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	URL           string     `json:"url,omitempty"`
	DueAt         *time.Time `json:"due_at,omitempty"`
}

// Webhook posts notices to an HTTP endpoint as JSON
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook notifier with default HTTP client
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewWebhookWithClient creates a Webhook notifier with custom HTTP client
func NewWebhookWithClient(url string, client *http.Client) *Webhook {
	return &Webhook{
		url:    url,
		client: client,
	}
}

// Notify posts the notice as JSON to the webhook URL
func (w *Webhook) Notify(ctx context.Context, n Notice) error {
	payload := WebhookPayload{
		Severity:      string(n.Severity),
		ItemID:        n.ItemID,
		ViolationType: n.Type,
		Level:         n.Level,
		Owner:         n.Owner,
		Title:         n.Title,
		Message:       n.Message,
		URL:           n.URL,
	}
	if !n.DueAt.IsZero() {
		due := n.DueAt
		payload.DueAt = &due
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Name returns "webhook"
func (w *Webhook) Name() string {
	return "webhook"
}
