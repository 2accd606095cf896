package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/RevCBH/vigil/internal/sla"
	"github.com/RevCBH/vigil/internal/store"
)

// statusStyles contains the lipgloss styles for the status output
type statusStyles struct {
	Title    lipgloss.Style
	Section  lipgloss.Style
	ItemID   lipgloss.Style
	Muted    lipgloss.Style
	Warning  lipgloss.Style
	Severe   lipgloss.Style
	Critical lipgloss.Style
	OK       lipgloss.Style
}

func defaultStatusStyles() statusStyles {
	return statusStyles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Section:  lipgloss.NewStyle().Bold(true).MarginTop(1),
		ItemID:   lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Severe:   lipgloss.NewStyle().Foreground(lipgloss.Color("202")),
		Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		OK:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
}

func (s statusStyles) levelStyle(level int) lipgloss.Style {
	switch sla.Level(level) {
	case sla.LevelWarning:
		return s.Warning
	case sla.LevelTeam:
		return s.Severe
	case sla.LevelManagement, sla.LevelLeadership:
		return s.Critical
	default:
		return s.OK
	}
}

// NewStatusCmd creates the status command
func NewStatusCmd(a *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show open violations and recent snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			defer st.Close()

			open, err := st.OpenViolations()
			if err != nil {
				return err
			}
			snaps, err := st.Snapshots(7)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"open_violations": open,
					"snapshots":       snaps,
				})
			}
			renderStatus(out, open, snaps)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON instead of formatted text")
	return cmd
}

func renderStatus(w io.Writer, open []*store.ViolationRecord, snaps []store.DailySnapshot) {
	styles := defaultStatusStyles()
	now := time.Now()

	fmt.Fprintln(w, styles.Title.Render("vigil status"))

	fmt.Fprintln(w, styles.Section.Render(fmt.Sprintf("Open violations (%d)", len(open))))
	if len(open) == 0 {
		fmt.Fprintln(w, styles.OK.Render("  all tracked items compliant"))
	}
	for _, rec := range open {
		level := sla.Level(rec.Level)
		overdue := ""
		if !rec.DueAt.IsZero() && now.After(rec.DueAt) {
			overdue = styles.Muted.Render(fmt.Sprintf("  overdue since %s", rec.DueAt.Format("Jan 2 15:04")))
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s%s\n",
			styles.levelStyle(rec.Level).Render(fmt.Sprintf("%-9s", level)),
			styles.ItemID.Render(rec.ItemID),
			rec.Type,
			styles.Muted.Render("owner: "+rec.Owner),
			overdue)
	}

	fmt.Fprintln(w, styles.Section.Render("Recent snapshots"))
	if len(snaps) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("  no snapshots recorded yet"))
	}
	for _, snap := range snaps {
		rate := fmt.Sprintf("%3.0f%%", snap.ComplianceRate*100)
		rateStyled := styles.OK.Render(rate)
		if snap.ComplianceRate < 0.8 {
			rateStyled = styles.Warning.Render(rate)
		}
		fmt.Fprintf(w, "  %s  open %-3d resolved %-3d compliance %s\n",
			snap.Date, snap.Open, snap.Resolved, rateStyled)
	}
}
