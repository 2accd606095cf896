// Package config loads and validates the daemon configuration: defaults,
// then the YAML file, then environment overrides. Validation is eager; a
// config that parses but cannot drive the tracker never leaves Load.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RevCBH/vigil/internal/bizhours"
	"github.com/RevCBH/vigil/internal/sla"
)

// Config holds all configuration for the vigil daemon.
// It is immutable after creation via Load().
type Config struct {
	// BotHandle is the mention that makes a comment or message relevant,
	// e.g. "@vigil"
	BotHandle string `yaml:"bot_handle"`

	// DBPath is the SQLite database file location
	DBPath string `yaml:"db_path"`

	// DryRun logs every outbound post instead of sending it
	DryRun bool `yaml:"dry_run"`

	// ListenAddr is the webhook/health HTTP listen address
	ListenAddr string `yaml:"listen_addr"`

	// Sources configures polling per platform
	Sources SourcesConfig `yaml:"sources"`

	// Calendar defines business hours for SLA arithmetic
	Calendar CalendarConfig `yaml:"calendar"`

	// SLA holds the escalation threshold matrix
	SLA SLAConfig `yaml:"sla"`

	// Escalation configures side-channel notification backends and the
	// contacts mentioned at the upper escalation levels
	Escalation EscalationConfig `yaml:"escalation"`

	// Roster maps work-item owner names to platform mention handles
	Roster map[string]string `yaml:"roster"`

	// Responder controls the reasoning engine invocation
	Responder ResponderConfig `yaml:"responder"`

	// DedupRetentionDays is how long processed-item marks are kept
	DedupRetentionDays int `yaml:"dedup_retention_days"`

	// LogLevel controls log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// SourceConfig configures one platform poller.
type SourceConfig struct {
	Enabled bool `yaml:"enabled"`

	// PollInterval is a Go duration string, e.g. "30s"
	PollInterval string `yaml:"poll_interval"`

	// Endpoint is the base URL of the platform bridge for this source.
	// A source with no endpoint can still receive webhook pushes but is
	// not polled.
	Endpoint string `yaml:"endpoint"`

	// Token is the bearer token sent to the bridge, if any
	Token string `yaml:"token"`
}

// IntervalDuration parses the poll interval.
func (s SourceConfig) IntervalDuration() (time.Duration, error) {
	return time.ParseDuration(s.PollInterval)
}

// SourcesConfig holds the per-platform pollers.
type SourcesConfig struct {
	Tracker    SourceConfig `yaml:"tracker"`
	Chat       SourceConfig `yaml:"chat"`
	CodeReview SourceConfig `yaml:"codereview"`
}

// CalendarConfig defines the business-hours window.
type CalendarConfig struct {
	// StartHour and EndHour bound the working day, e.g. 9 and 17
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`

	// Timezone is an IANA zone name, e.g. "America/Los_Angeles"
	Timezone string `yaml:"timezone"`

	// Holidays are non-working dates formatted "2006-01-02"
	Holidays []string `yaml:"holidays"`
}

// Build constructs the business-hours calendar.
func (c CalendarConfig) Build() (bizhours.Calendar, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return bizhours.Calendar{}, fmt.Errorf("calendar timezone: %w", err)
	}
	cal := bizhours.NewCalendar(c.StartHour, c.EndHour, loc)
	for _, day := range c.Holidays {
		if _, err := time.ParseInLocation("2006-01-02", day, loc); err != nil {
			return bizhours.Calendar{}, fmt.Errorf("calendar holiday %q: %w", day, err)
		}
		cal.Holidays[day] = true
	}
	if err := cal.Validate(); err != nil {
		return bizhours.Calendar{}, err
	}
	return cal, nil
}

// SLAConfig holds the evaluation cadence and the threshold matrix as
// duration strings, keyed by violation type, four ascending entries per type.
type SLAConfig struct {
	// EvaluationInterval is how often the tracker runs a pass, e.g. "1h"
	EvaluationInterval string `yaml:"evaluation_interval"`

	Thresholds map[string][]string `yaml:"thresholds"`
}

// IntervalDuration parses the evaluation interval.
func (s SLAConfig) IntervalDuration() (time.Duration, error) {
	return time.ParseDuration(s.EvaluationInterval)
}

// Build constructs the threshold matrix, starting from the defaults and
// overriding any type the file names.
func (s SLAConfig) Build() (sla.Thresholds, error) {
	thresholds := sla.DefaultThresholds()
	for name, entries := range s.Thresholds {
		vtype := sla.ViolationType(name)
		if _, known := thresholds[vtype]; !known {
			return nil, fmt.Errorf("unknown violation type %q", name)
		}
		if len(entries) != len(sla.Ladder{}) {
			return nil, fmt.Errorf("%s: need %d thresholds, got %d", name, len(sla.Ladder{}), len(entries))
		}
		var ladder sla.Ladder
		for i, entry := range entries {
			d, err := time.ParseDuration(entry)
			if err != nil {
				return nil, fmt.Errorf("%s threshold %d: %w", name, i+1, err)
			}
			ladder[i] = d
		}
		thresholds[vtype] = ladder
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return thresholds, nil
}

// EscalationConfig configures notification backends and contacts.
type EscalationConfig struct {
	// Backends lists side-channel backends: terminal, slack, webhook
	Backends []string `yaml:"backends"`

	// SlackWebhook is the incoming-webhook URL for the slack backend
	SlackWebhook string `yaml:"slack_webhook"`

	// WebhookURL is the endpoint for the webhook backend
	WebhookURL string `yaml:"webhook_url"`

	// EscalationContact is mentioned from level 3 up, e.g. "@eng-lead"
	EscalationContact string `yaml:"escalation_contact"`

	// LeadershipContact is mentioned at level 4
	LeadershipContact string `yaml:"leadership_contact"`
}

// ResponderConfig controls the reasoning engine CLI.
type ResponderConfig struct {
	// Command is the path or name of the engine binary
	Command string `yaml:"command"`

	// Timeout bounds one engine invocation, e.g. "2m"
	Timeout string `yaml:"timeout"`
}

// TimeoutDuration parses the responder timeout.
func (r ResponderConfig) TimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(r.Timeout)
}

// Load reads configuration from path. A missing file is not an error: the
// defaults apply, then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
