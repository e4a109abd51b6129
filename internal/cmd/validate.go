package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/templatecheck/internal/config"
	"github.com/harrison/templatecheck/internal/display"
	"github.com/harrison/templatecheck/internal/models"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and templates file without running anything",
		Long: `Load .templatecheck/config.yaml (or --config) and the templates file and
report any problem: malformed YAML, invalid values, empty, duplicate or
unsafe template names, or a port range that does not fit. Fixture
directories that no longer belong to a template are reported as a warning.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return validateWithOutput(cfg, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	addConfigFlags(cmd)
	return cmd
}

// validateWithOutput validates cfg and its templates file, writing a summary to output.
func validateWithOutput(cfg *config.Config, output io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	templates, err := config.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		return fmt.Errorf("invalid templates file %s: %w", cfg.TemplatesFile, err)
	}

	if last := cfg.MaxPort(len(templates)); last > 65535 {
		return fmt.Errorf("%d templates starting at port %d exceed port 65535", len(templates), cfg.BasePort)
	}

	fmt.Fprintf(output, "Configuration is valid\n")
	fmt.Fprintf(output, "  Fixtures: %s\n", cfg.FixturesDir)
	fmt.Fprintf(output, "  Templates: %d (%s)\n", len(templates), templateNames(templates))
	fmt.Fprintf(output, "  Ports: %d-%d\n", cfg.BasePort, cfg.MaxPort(len(templates)))
	fmt.Fprintf(output, "  Idle timeout: %s\n", cfg.IdleTimeout)
	if cfg.MaxConcurrency > 0 {
		fmt.Fprintf(output, "  Max concurrency: %d\n", cfg.MaxConcurrency)
	} else {
		fmt.Fprintf(output, "  Max concurrency: unlimited\n")
	}

	stale, err := display.FindStaleFixtures(cfg.FixturesDir, templates)
	if err != nil {
		return fmt.Errorf("failed to scan fixtures: %w", err)
	}
	if len(stale) > 0 {
		fmt.Fprintln(output)
		display.WarnStaleFixtures(cfg.FixturesDir, stale).Display(output, colorEnabled(output))
	}
	return nil
}

func templateNames(templates []models.Template) string {
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
