package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RevCBH/vigil/internal/daemon"
)

// NewSLACheckCmd creates the sla-check command
func NewSLACheckCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sla-check",
		Short: "Run one SLA evaluation pass",
		Long: `Evaluate every tracked work item against the threshold matrix once,
taking escalation actions as needed, then write the daily snapshot and exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
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
			defer d.Close()

			sum, err := d.EvaluateOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"evaluation complete: %d evaluated, %d opened, %d escalated, %d resolved\n",
				sum.Evaluated, sum.Created, sum.Escalated, sum.Resolved)
			return nil
		},
	}
}
