package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for templatecheck
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templatecheck",
		Short: "End-to-end validation harness for project templates",
		Long: `templatecheck validates, end to end, that every project template produced
by a scaffolding CLI is usable.

For each template it scaffolds the project and installs its dependencies
once, then checks the generated file structure, starts the dev server and
probes it over HTTP, and runs the production build and checks its output.
Templates are validated concurrently.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewCleanCommand())

	return cmd
}
