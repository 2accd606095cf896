package escalate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfig(t *testing.T) {
	t.Run("empty defaults to terminal", func(t *testing.T) {
		n, err := FromConfig(Config{})
		require.NoError(t, err)
		assert.Equal(t, "terminal", n.Name())
	})

	t.Run("single backend returned directly", func(t *testing.T) {
		n, err := FromConfig(Config{
			Backends:     []string{"slack"},
			SlackWebhook: "https://hooks.slack.example/T0/B0/x",
		})
		require.NoError(t, err)
		assert.Equal(t, "slack", n.Name())
	})

	t.Run("multiple backends wrapped in multi", func(t *testing.T) {
		n, err := FromConfig(Config{
			Backends:   []string{"terminal", "webhook"},
			WebhookURL: "https://ops.example/hook",
		})
		require.NoError(t, err)
		assert.Equal(t, "multi", n.Name())
	})

	t.Run("slack requires webhook URL", func(t *testing.T) {
		_, err := FromConfig(Config{Backends: []string{"slack"}})
		assert.Error(t, err)
	})

	t.Run("webhook requires URL", func(t *testing.T) {
		_, err := FromConfig(Config{Backends: []string{"webhook"}})
		assert.Error(t, err)
	})

	t.Run("unknown backend rejected", func(t *testing.T) {
		_, err := FromConfig(Config{Backends: []string{"pager"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pager")
	})
}
