package escalate

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalNotify(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminalWithWriter(&buf)

	err := term.Notify(context.Background(), Notice{
		Severity: SeverityCritical,
		ItemID:   "PROJ-42",
		Type:     "blocked-no-update",
		Level:    3,
		Owner:    "carol",
		Title:    "blocked-no-update at level-3",
		Message:  "Escalation: this item has been blocked without an update",
		DueAt:    time.Date(2026, 9, 8, 17, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "PROJ-42 (blocked-no-update, level 3)")
	assert.Contains(t, out, "blocked-no-update at level-3")
	assert.Contains(t, out, "Owner: carol")
	assert.Contains(t, out, "Response due: 2026-09-08 17:00 UTC")
	assert.Contains(t, out, "🚨")
}

func TestTerminalSeverityPrefixes(t *testing.T) {
	cases := []struct {
		severity Severity
		prefix   string
	}{
		{SeverityInfo, "ℹ️"},
		{SeverityWarning, "⚠️"},
		{SeverityCritical, "🚨"},
		{SeverityBlocking, "🚨"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		term := NewTerminalWithWriter(&buf)
		require.NoError(t, term.Notify(context.Background(), Notice{Severity: tc.severity, Title: "x"}))
		assert.Contains(t, buf.String(), tc.prefix, "severity %s", tc.severity)
	}
}

func TestTerminalRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	term := NewTerminalWithWriter(&buf)
	err := term.Notify(ctx, Notice{Title: "x"})
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestTerminalName(t *testing.T) {
	assert.Equal(t, "terminal", NewTerminal().Name())
}
