package config

import (
	"errors"
	"fmt"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.BotHandle == "" {
		errs = append(errs, &ValidationError{
			Field:   "bot_handle",
			Value:   cfg.BotHandle,
			Message: "must not be empty",
		})
	}

	if cfg.DBPath == "" {
		errs = append(errs, &ValidationError{
			Field:   "db_path",
			Value:   cfg.DBPath,
			Message: "must not be empty",
		})
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of debug, info, warn, error",
		})
	}

	if cfg.DedupRetentionDays < 1 {
		errs = append(errs, &ValidationError{
			Field:   "dedup_retention_days",
			Value:   cfg.DedupRetentionDays,
			Message: "must be at least 1",
		})
	}

	for name, src := range map[string]SourceConfig{
		"sources.tracker":    cfg.Sources.Tracker,
		"sources.chat":       cfg.Sources.Chat,
		"sources.codereview": cfg.Sources.CodeReview,
	} {
		if !src.Enabled {
			continue
		}
		if d, err := src.IntervalDuration(); err != nil || d <= 0 {
			errs = append(errs, &ValidationError{
				Field:   name + ".poll_interval",
				Value:   src.PollInterval,
				Message: "must be a positive duration",
			})
		}
	}

	// A broken calendar makes every SLA computation degenerate, so it is
	// always fatal.
	if _, err := cfg.Calendar.Build(); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "calendar",
			Value:   fmt.Sprintf("%d-%d %s", cfg.Calendar.StartHour, cfg.Calendar.EndHour, cfg.Calendar.Timezone),
			Message: err.Error(),
		})
	}

	if d, err := cfg.SLA.IntervalDuration(); err != nil || d <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "sla.evaluation_interval",
			Value:   cfg.SLA.EvaluationInterval,
			Message: "must be a positive duration",
		})
	}

	if _, err := cfg.SLA.Build(); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "sla.thresholds",
			Value:   cfg.SLA.Thresholds,
			Message: err.Error(),
		})
	}

	for _, backend := range cfg.Escalation.Backends {
		switch backend {
		case "terminal", "slack", "webhook":
		default:
			errs = append(errs, &ValidationError{
				Field:   "escalation.backends",
				Value:   backend,
				Message: "unknown backend",
			})
		}
	}

	if cfg.Responder.Command == "" {
		errs = append(errs, &ValidationError{
			Field:   "responder.command",
			Value:   cfg.Responder.Command,
			Message: "must not be empty",
		})
	}
	if d, err := cfg.Responder.TimeoutDuration(); err != nil || d <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "responder.timeout",
			Value:   cfg.Responder.Timeout,
			Message: "must be a positive duration",
		})
	}

	return errors.Join(errs...)
}
