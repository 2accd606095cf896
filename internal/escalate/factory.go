package escalate

import "fmt"

// Config holds notification backend configuration
type Config struct {
	Backends     []string
	SlackWebhook string
	WebhookURL   string
}

// FromConfig creates a Notifier from configuration
func FromConfig(cfg Config) (Notifier, error) {
	var notifiers []Notifier

	for _, backend := range cfg.Backends {
		switch backend {
		case "terminal":
			notifiers = append(notifiers, NewTerminal())
		case "slack":
			if cfg.SlackWebhook == "" {
				return nil, fmt.Errorf("slack backend requires webhook URL")
			}
			notifiers = append(notifiers, NewSlack(cfg.SlackWebhook))
		case "webhook":
			if cfg.WebhookURL == "" {
				return nil, fmt.Errorf("webhook backend requires URL")
			}
			notifiers = append(notifiers, NewWebhook(cfg.WebhookURL))
		default:
			return nil, fmt.Errorf("unknown notification backend: %s", backend)
		}
	}

	if len(notifiers) == 0 {
		return NewTerminal(), nil
	}

	if len(notifiers) == 1 {
		return notifiers[0], nil
	}

	return NewMulti(notifiers...), nil
}
