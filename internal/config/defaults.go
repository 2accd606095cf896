package config

const (
	DefaultConfigPath         = "vigil.yaml"
	DefaultBotHandle          = "@vigil"
	DefaultDBPath             = "vigil.db"
	DefaultListenAddr         = ":8090"
	DefaultLogLevel           = "info"
	DefaultTrackerInterval    = "2m"
	DefaultChatInterval       = "30s"
	DefaultCodeReviewInterval = "5m"
	DefaultSLAInterval        = "1h"
	DefaultResponderCommand   = "claude"
	DefaultResponderTimeout   = "2m"
	DefaultDedupRetentionDays = 30
	DefaultCalendarStartHour  = 9
	DefaultCalendarEndHour    = 17
	DefaultCalendarTimezone   = "UTC"
)

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		BotHandle:  DefaultBotHandle,
		DBPath:     DefaultDBPath,
		ListenAddr: DefaultListenAddr,
		Sources: SourcesConfig{
			Tracker:    SourceConfig{Enabled: true, PollInterval: DefaultTrackerInterval},
			Chat:       SourceConfig{Enabled: true, PollInterval: DefaultChatInterval},
			CodeReview: SourceConfig{Enabled: true, PollInterval: DefaultCodeReviewInterval},
		},
		Calendar: CalendarConfig{
			StartHour: DefaultCalendarStartHour,
			EndHour:   DefaultCalendarEndHour,
			Timezone:  DefaultCalendarTimezone,
		},
		SLA: SLAConfig{
			EvaluationInterval: DefaultSLAInterval,
		},
		Escalation: EscalationConfig{
			Backends: []string{"terminal"},
		},
		Responder: ResponderConfig{
			Command: DefaultResponderCommand,
			Timeout: DefaultResponderTimeout,
		},
		DedupRetentionDays: DefaultDedupRetentionDays,
		LogLevel:           DefaultLogLevel,
	}
}
