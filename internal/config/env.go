package config

import "os"

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{
		envVar: "VIGIL_DB_PATH",
		apply: func(c *Config, v string) {
			c.DBPath = v
		},
	},
	{
		envVar: "VIGIL_LISTEN_ADDR",
		apply: func(c *Config, v string) {
			c.ListenAddr = v
		},
	},
	{
		envVar: "VIGIL_BOT_HANDLE",
		apply: func(c *Config, v string) {
			c.BotHandle = v
		},
	},
	{
		envVar: "VIGIL_SLACK_WEBHOOK",
		apply: func(c *Config, v string) {
			c.Escalation.SlackWebhook = v
		},
	},
	{
		envVar: "VIGIL_LOG_LEVEL",
		apply: func(c *Config, v string) {
			c.LogLevel = v
		},
	},
	{
		envVar: "VIGIL_DRY_RUN",
		apply: func(c *Config, v string) {
			c.DryRun = v == "1" || v == "true"
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}
