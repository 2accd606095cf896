package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RevCBH/vigil/internal/daemon"
)

// NewRunCmd creates the run command
func NewRunCmd(a *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the vigil daemon",
		Long: `Start the long-running service: source monitors, event dispatcher,
SLA tracker and webhook server. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}
			log, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			d, err := daemon.New(daemon.Opts{Config: cfg, Logger: log})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			d.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log outbound posts instead of sending them")
	return cmd
}
