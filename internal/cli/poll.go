package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RevCBH/vigil/internal/daemon"
)

// NewPollCmd creates the poll command
func NewPollCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one poll cycle across all sources",
		Long: `Fetch new items from every configured source once, dispatch the
resulting events, and exit. Useful from cron or for debugging.`,
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

			n, err := d.PollOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "poll complete: %d event(s) emitted\n", n)
			return nil
		},
	}
}
