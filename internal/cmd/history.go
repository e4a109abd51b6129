package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/templatecheck/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded validation runs",
		Long: `Show validation runs recorded in the history database.

Without flags the most recent runs are listed. --run shows the cases of one
run (a unique id prefix is enough); --stats shows per-template pass rates
across all recorded runs.

Examples:
  templatecheck history
  templatecheck history --limit 5
  templatecheck history --run 6f1c2d3e
  templatecheck history --stats`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .templatecheck/config.yaml)")
	cmd.Flags().Int("limit", 10, "Number of runs to list (0 = all)")
	cmd.Flags().String("run", "", "Show the cases of this run")
	cmd.Flags().Bool("stats", false, "Show pass rates per template and case")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return fmt.Errorf("run history is disabled (history_db is empty)")
	}
	if _, err := os.Stat(cfg.HistoryDB); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded yet\n")
		return nil
	}

	store, err := history.NewStore(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	useColor := colorEnabled(out)
	ctx := cmd.Context()

	runID, _ := cmd.Flags().GetString("run")
	stats, _ := cmd.Flags().GetBool("stats")
	limit, _ := cmd.Flags().GetInt("limit")

	switch {
	case runID != "":
		return showRun(ctx, out, store, runID, useColor)
	case stats:
		return showStats(ctx, out, store, useColor)
	default:
		return listRuns(ctx, out, store, limit, useColor)
	}
}

func listRuns(ctx context.Context, out io.Writer, store *history.Store, limit int, useColor bool) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded yet\n")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-20s %-12s %-7s %s\n", "RUN", "STARTED", "REVISION", "STATUS", "CASES")
	for _, r := range runs {
		fmt.Fprintf(out, "%-10s %-20s %-12s %s %d/%d passed (%s)\n",
			shorten(r.ID, 8),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			shorten(r.Revision, 12),
			statusCell(r.Failed == 0, useColor),
			r.Passed, r.Total,
			r.Duration.Round(time.Second),
		)
	}
	return nil
}

func showRun(ctx context.Context, out io.Writer, store *history.Store, idOrPrefix string, useColor bool) error {
	run, err := store.GetRun(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	cases, err := store.GetCases(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Revision: %s\n", run.Revision)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Duration: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Result:   %d/%d passed\n\n", run.Passed, run.Total)

	for _, c := range cases {
		fmt.Fprintf(out, "%s %-24s %s\n", statusCell(c.Passed, useColor), c.Label(), c.Duration.Round(100*time.Millisecond))
		if !c.Passed && c.Message != "" {
			for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
				fmt.Fprintf(out, "        %s\n", line)
			}
		}
	}
	return nil
}

func showStats(ctx context.Context, out io.Writer, store *history.Store, useColor bool) error {
	stats, err := store.GetCaseStats(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintf(out, "No runs recorded yet\n")
		return nil
	}

	fmt.Fprintf(out, "%-24s %-6s %-9s %s\n", "CASE", "RUNS", "PASS RATE", "LAST FAILURE")
	for _, s := range stats {
		rate := fmt.Sprintf("%.0f%%", s.PassRate()*100)
		if useColor {
			if s.Failures == 0 {
				rate = color.GreenString("%-9s", rate)
			} else {
				rate = color.YellowString("%-9s", rate)
			}
		} else {
			rate = fmt.Sprintf("%-9s", rate)
		}
		last := "never"
		if !s.LastFailed.IsZero() {
			last = s.LastFailed.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%-24s %-6d %s %s\n", fmt.Sprintf("%s (%s)", s.Template, s.Kind), s.Runs, rate, last)
	}
	return nil
}

func statusCell(passed bool, useColor bool) string {
	status := "FAIL   "
	c := color.New(color.FgRed, color.Bold)
	if passed {
		status = "PASS   "
		c = color.New(color.FgGreen)
	}
	if !useColor {
		return status
	}
	c.EnableColor()
	return c.Sprint(status)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
