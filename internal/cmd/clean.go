package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/templatecheck/internal/filelock"
	"github.com/harrison/templatecheck/internal/fileutil"
	"github.com/harrison/templatecheck/internal/history"
)

// NewCleanCommand creates the clean command
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove generated template fixtures",
		Long: `Remove the projects generated under the fixtures directory for every
template in the templates file (or only those named with --template).

With --history-older-than, runs older than the given age are also pruned
from the history database.

Examples:
  templatecheck clean
  templatecheck clean --template minimal
  templatecheck clean --history-older-than 720h`,
		Args: cobra.NoArgs,
		RunE: cleanCommand,
	}

	addConfigFlags(cmd)
	cmd.Flags().StringArray("template", nil, "Clean only this template (repeatable)")
	cmd.Flags().Duration("history-older-than", 0, "Also prune history runs older than this age")

	return cmd
}

func cleanCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	templates, err := loadTemplates(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if fileutil.Exists(cfg.FixturesDir) {
		release, err := filelock.LockDir(cfg.FixturesDir)
		if err != nil {
			if errors.Is(err, filelock.ErrLocked) {
				return fmt.Errorf("a templatecheck run is using %s", cfg.FixturesDir)
			}
			return err
		}
		defer release()

		removed := 0
		for _, tmpl := range templates {
			dir := filepath.Join(cfg.FixturesDir, tmpl.Name)
			if !fileutil.Exists(dir) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("failed to remove %s: %w", dir, err)
			}
			fmt.Fprintf(out, "Removed %s\n", dir)
			removed++
		}
		fmt.Fprintf(out, "Removed %d fixture(s)\n", removed)
	} else {
		fmt.Fprintf(out, "Nothing to clean in %s\n", cfg.FixturesDir)
	}

	age, _ := cmd.Flags().GetDuration("history-older-than")
	if age <= 0 || cfg.HistoryDB == "" || !fileutil.Exists(cfg.HistoryDB) {
		return nil
	}

	store, err := history.NewStore(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	n, err := store.DeleteRunsBefore(cmd.Context(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pruned %d run(s) from history\n", n)
	return nil
}
