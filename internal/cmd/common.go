package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/templatecheck/internal/config"
	"github.com/harrison/templatecheck/internal/models"
)

// addConfigFlags registers the flags shared by every command that reads
// the configuration and the templates file.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .templatecheck/config.yaml)")
	cmd.Flags().String("templates", "", "Path to the templates file (overrides templates_file)")
}

// loadConfig loads the configuration named by --config, or the default
// .templatecheck/config.yaml, and applies --templates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cmd.Flags().Changed("templates") {
		templatesFile, _ := cmd.Flags().GetString("templates")
		cfg.MergeWithFlags(config.Overrides{TemplatesFile: &templatesFile})
	}
	return cfg, nil
}

// loadTemplates reads the templates file and keeps only the names given
// with --template, if any.
func loadTemplates(cmd *cobra.Command, cfg *config.Config) ([]models.Template, error) {
	templates, err := config.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Lookup("template") == nil {
		return templates, nil
	}
	names, _ := cmd.Flags().GetStringArray("template")
	return config.FilterTemplates(templates, names)
}

// colorEnabled reports whether w is a terminal that should get colour.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return !color.NoColor && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
