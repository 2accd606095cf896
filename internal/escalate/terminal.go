package escalate

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Terminal writes notices to stderr with visual severity indicators
type Terminal struct {
	out io.Writer
	mu  sync.Mutex // Protects concurrent writes
}

// NewTerminal creates a terminal notifier writing to stderr
func NewTerminal() *Terminal {
	return &Terminal{out: os.Stderr}
}

// NewTerminalWithWriter creates a terminal notifier with a custom writer
func NewTerminalWithWriter(w io.Writer) *Terminal {
	return &Terminal{out: w}
}

// Notify writes the notice to the terminal
func (t *Terminal) Notify(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := ""
	switch n.Severity {
	case SeverityCritical, SeverityBlocking:
		prefix = "🚨 "
	case SeverityWarning:
		prefix = "⚠️  "
	default:
		prefix = "ℹ️  "
	}

	// Serialize writes to prevent interleaved output
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s[%s] %s\n", prefix, n.Severity, n.Title)
	fmt.Fprintf(t.out, "   Item: %s (%s, level %d)\n", n.ItemID, n.Type, n.Level)
	fmt.Fprintf(t.out, "   %s\n", n.Message)
	if n.Owner != "" {
		fmt.Fprintf(t.out, "   Owner: %s\n", n.Owner)
	}
	if !n.DueAt.IsZero() {
		fmt.Fprintf(t.out, "   Response due: %s\n", n.DueAt.Format("2006-01-02 15:04 MST"))
	}
	if n.URL != "" {
		fmt.Fprintf(t.out, "   %s\n", n.URL)
	}

	return nil
}

// Name returns "terminal"
func (t *Terminal) Name() string {
	return "terminal"
}
