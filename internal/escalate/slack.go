package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts notices to a Slack incoming-webhook URL
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a Slack notifier with default HTTP client
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSlackWithClient creates a Slack notifier with custom HTTP client
func NewSlackWithClient(webhookURL string, client *http.Client) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     client,
	}
}

// Notify posts the notice to Slack
func (s *Slack) Notify(ctx context.Context, n Notice) error {
	emoji := map[Severity]string{
		SeverityInfo:     ":information_source:",
		SeverityWarning:  ":warning:",
		SeverityCritical: ":rotating_light:",
		SeverityBlocking: ":octagonal_sign:",
	}[n.Severity]

	// Violation details as context fields under the message
	contextFields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*type:* %s", n.Type)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*level:* %d", n.Level)},
	}
	if n.Owner != "" {
		contextFields = append(contextFields, map[string]any{
			"type": "mrkdwn", "text": fmt.Sprintf("*owner:* %s", n.Owner),
		})
	}
	if !n.DueAt.IsZero() {
		contextFields = append(contextFields, map[string]any{
			"type": "mrkdwn", "text": fmt.Sprintf("*response due:* %s", n.DueAt.Format("2006-01-02 15:04 MST")),
		})
	}
	if n.URL != "" {
		contextFields = append(contextFields, map[string]any{
			"type": "mrkdwn", "text": fmt.Sprintf("<%s|view item>", n.URL),
		})
	}

	blocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s*\n%s", n.Title, n.Message),
			},
		},
	}

	blocks = append(blocks, map[string]any{
		"type":     "context",
		"elements": contextFields,
	})

	payload := map[string]any{
		"text":   fmt.Sprintf("%s *[%s]* %s", emoji, n.ItemID, n.Title),
		"blocks": blocks,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Name returns "slack"
func (s *Slack) Name() string {
	return "slack"
}
