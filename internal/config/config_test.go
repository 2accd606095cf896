package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/vigil/internal/sla"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBotHandle, cfg.BotHandle)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.True(t, cfg.Sources.Chat.Enabled)
	assert.Equal(t, []string{"terminal"}, cfg.Escalation.Backends)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
bot_handle: "@sentinel"
db_path: /var/lib/vigil/state.db
dry_run: true
sources:
  chat:
    enabled: true
    poll_interval: 15s
  codereview:
    enabled: false
calendar:
  start_hour: 8
  end_hour: 18
  timezone: UTC
  holidays:
    - "2026-11-26"
escalation:
  backends: [terminal, webhook]
  webhook_url: https://ops.example/hook
  escalation_contact: "@eng-lead"
roster:
  carol: "@carol.w"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "@sentinel", cfg.BotHandle)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "15s", cfg.Sources.Chat.PollInterval)
	assert.False(t, cfg.Sources.CodeReview.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultTrackerInterval, cfg.Sources.Tracker.PollInterval)
	assert.Equal(t, "@carol.w", cfg.Roster["carol"])
	assert.Equal(t, "@eng-lead", cfg.Escalation.EscalationContact)

	cal, err := cfg.Calendar.Build()
	require.NoError(t, err)
	assert.Equal(t, 8, cal.StartHour)
	assert.True(t, cal.Holidays["2026-11-26"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_DB_PATH", "/tmp/override.db")
	t.Setenv("VIGIL_DRY_RUN", "true")
	t.Setenv("VIGIL_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	path := writeConfig(t, "bot_handle: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSLABuild(t *testing.T) {
	t.Run("defaults when section empty", func(t *testing.T) {
		thresholds, err := SLAConfig{}.Build()
		require.NoError(t, err)
		assert.Equal(t, sla.DefaultThresholds(), thresholds)
	})

	t.Run("override single type", func(t *testing.T) {
		thresholds, err := SLAConfig{Thresholds: map[string][]string{
			"blocked-no-update": {"12h", "24h", "48h", "72h"},
		}}.Build()
		require.NoError(t, err)
		assert.Equal(t, sla.Ladder{12 * time.Hour, 24 * time.Hour, 48 * time.Hour, 72 * time.Hour},
			thresholds[sla.BlockedNoUpdate])
		// Other types keep defaults.
		assert.Equal(t, sla.DefaultThresholds()[sla.PendingApproval], thresholds[sla.PendingApproval])
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := SLAConfig{Thresholds: map[string][]string{
			"missed-standup": {"1h", "2h", "3h", "4h"},
		}}.Build()
		assert.Error(t, err)
	})

	t.Run("wrong arity rejected", func(t *testing.T) {
		_, err := SLAConfig{Thresholds: map[string][]string{
			"blocked-no-update": {"1h", "2h"},
		}}.Build()
		assert.Error(t, err)
	})

	t.Run("descending ladder rejected", func(t *testing.T) {
		_, err := SLAConfig{Thresholds: map[string][]string{
			"blocked-no-update": {"48h", "24h", "96h", "168h"},
		}}.Build()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty bot handle", func(c *Config) { c.BotHandle = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero retention", func(c *Config) { c.DedupRetentionDays = 0 }},
		{"bad poll interval", func(c *Config) { c.Sources.Chat.PollInterval = "soon" }},
		{"inverted calendar", func(c *Config) { c.Calendar.StartHour = 18; c.Calendar.EndHour = 9 }},
		{"bad timezone", func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" }},
		{"bad holiday", func(c *Config) { c.Calendar.Holidays = []string{"Nov 26"} }},
		{"unknown backend", func(c *Config) { c.Escalation.Backends = []string{"pager"} }},
		{"empty responder command", func(c *Config) { c.Responder.Command = "" }},
		{"bad responder timeout", func(c *Config) { c.Responder.Timeout = "-1m" }},
		{"bad evaluation interval", func(c *Config) { c.SLA.EvaluationInterval = "hourly" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, validateConfig(valid()))
	})

	t.Run("disabled source skips interval check", func(t *testing.T) {
		cfg := valid()
		cfg.Sources.CodeReview = SourceConfig{Enabled: false, PollInterval: ""}
		assert.NoError(t, validateConfig(cfg))
	})
}
