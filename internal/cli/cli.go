// Package cli assembles the vigil command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RevCBH/vigil/internal/config"
)

// VersionInfo carries build-time metadata set via ldflags.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// App represents the CLI application
type App struct {
	rootCmd     *cobra.Command
	configPath  string
	versionInfo VersionInfo
}

// New creates a new CLI application
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "vigil",
		Short: "Event-detection and SLA-escalation daemon",
		Long: `Vigil watches collaboration platforms for events that need a response
and tracks work items against response-time SLAs, escalating violations
through a fixed ladder until they resolve.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Config file path (default: "+config.DefaultConfigPath+")")

	a.rootCmd.AddCommand(
		NewRunCmd(a),
		NewPollCmd(a),
		NewSLACheckCmd(a),
		NewStatusCmd(a),
		NewVersionCmd(a),
	)
}

// loadConfig loads and validates the configuration file.
func (a *App) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

// buildLogger constructs the process logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
