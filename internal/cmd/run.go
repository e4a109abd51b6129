package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/templatecheck/internal/config"
	"github.com/harrison/templatecheck/internal/executor"
	"github.com/harrison/templatecheck/internal/filelock"
	"github.com/harrison/templatecheck/internal/history"
	"github.com/harrison/templatecheck/internal/logger"
	"github.com/harrison/templatecheck/internal/models"
	"github.com/harrison/templatecheck/internal/report"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate every template end to end",
		Long: `Validate every template listed in the templates file.

Each template is scaffolded and installed once, then three cases run in
order against the generated project:

  install  the generated file structure is complete and clean
  dev      the dev server starts, reports readiness and serves a page
  build    the production build succeeds and emits the expected artifacts

Templates run concurrently; template n gets dev-server port base_port+n.

Configuration is loaded from .templatecheck/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  templatecheck run
  templatecheck run --template minimal --template blog
  templatecheck run --commit 3f2c1a0 --max-concurrency 2
  templatecheck run --idle-timeout 30s --verbose`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}

	addConfigFlags(cmd)
	cmd.Flags().String("commit", "", "Template revision to scaffold from (default: $GITHUB_SHA, then git HEAD)")
	cmd.Flags().StringArray("template", nil, "Validate only this template (repeatable)")
	cmd.Flags().Int("max-concurrency", 0, "Maximum number of templates validated at once (0 = unlimited)")
	cmd.Flags().Duration("idle-timeout", 0, "How long the dev server may stay silent while starting")
	cmd.Flags().Int("base-port", 0, "Dev-server port of the first template")
	cmd.Flags().String("log-dir", "", "Directory for log files (empty disables file logs)")
	cmd.Flags().Bool("verbose", false, "Show detailed progress (debug log level)")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	cmd.Flags().Bool("no-report", false, "Do not write the Markdown/HTML report")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	overrides := config.Overrides{}
	if cmd.Flags().Changed("max-concurrency") {
		v, _ := cmd.Flags().GetInt("max-concurrency")
		overrides.MaxConcurrency = &v
	}
	if cmd.Flags().Changed("idle-timeout") {
		v, _ := cmd.Flags().GetDuration("idle-timeout")
		overrides.IdleTimeout = &v
	}
	if cmd.Flags().Changed("base-port") {
		v, _ := cmd.Flags().GetInt("base-port")
		overrides.BasePort = &v
	}
	if cmd.Flags().Changed("log-dir") {
		v, _ := cmd.Flags().GetString("log-dir")
		overrides.LogDir = &v
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level := "debug"
		overrides.LogLevel = &level
	}
	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	templates, err := loadTemplates(cmd, cfg)
	if err != nil {
		return err
	}
	if cfg.MaxPort(len(templates)) > 65535 {
		return fmt.Errorf("%d templates starting at port %d exceed port 65535", len(templates), cfg.BasePort)
	}

	release, err := filelock.LockDir(cfg.FixturesDir)
	if err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return fmt.Errorf("another templatecheck run is using %s", cfg.FixturesDir)
		}
		return err
	}
	defer release()

	out := cmd.OutOrStdout()
	consoleLog := logger.NewConsoleLogger(out, cfg.LogLevel)
	consoleLog.SetColor(colorEnabled(out))

	var fileLog *logger.FileLogger
	if cfg.LogDir != "" {
		fileLog, err = logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
	}

	var log *logger.MultiLogger
	if fileLog != nil {
		log = logger.NewMultiLogger(consoleLog, fileLog)
	} else {
		log = logger.NewMultiLogger(consoleLog)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := executor.NewExecRunner()
	commit, _ := cmd.Flags().GetString("commit")
	revision, err := executor.ResolveRevision(ctx, runner, commit, os.Getenv)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Validating %d template(s) at %s\n", len(templates), revision)
	if fileLog != nil {
		fmt.Fprintf(out, "Logs: %s\n", fileLog.RunFile())
	}
	fmt.Fprintln(out)

	harness := newHarness(cfg, runner, revision, log)
	run, err := harness.Run(ctx, templates)
	if err != nil {
		if run == nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		log.Warnf("Run interrupted: %v", err)
	}

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory && cfg.HistoryDB != "" {
		if err := recordHistory(ctx, cfg.HistoryDB, run); err != nil {
			log.Warnf("Failed to record run history: %v", err)
		}
	}

	if noReport, _ := cmd.Flags().GetBool("no-report"); !noReport && cfg.ReportDir != "" {
		w := &report.Writer{Dir: cfg.ReportDir}
		if paths, err := w.Write(run); err != nil {
			log.Warnf("Failed to write report: %v", err)
		} else {
			fmt.Fprintf(out, "Report: %s\n", paths.HTML)
		}
	}

	if err != nil {
		return fmt.Errorf("validation interrupted: %w", err)
	}
	if !run.OK() {
		return fmt.Errorf("%d of %d case(s) failed", run.Failed, run.Total)
	}
	return nil
}

// newHarness wires the configured commands and checklists into a Harness.
func newHarness(cfg *config.Config, runner executor.CommandRunner, revision string, log *logger.MultiLogger) *executor.Harness {
	return &executor.Harness{
		Setup: &executor.Scaffolder{
			Runner:          runner,
			FixturesDir:     cfg.FixturesDir,
			ScaffoldCommand: cfg.ScaffoldCommand,
			InstallCommand:  cfg.InstallCommand,
			Revision:        revision,
			Logger:          log,
		},
		Structure: &executor.StructureChecker{
			FixturesDir: cfg.FixturesDir,
			Required:    cfg.RequiredPaths,
			Forbidden:   cfg.ForbiddenPaths,
		},
		Dev: &executor.DevServerProbe{
			FixturesDir: cfg.FixturesDir,
			Command:     cfg.DevCommand,
			Markers:     cfg.ReadinessMarkers,
			IdleTimeout: cfg.IdleTimeout,
			Host:        cfg.ProbeHost,
			Client:      &http.Client{Timeout: cfg.ProbeTimeout},
			Logger:      log,
		},
		Build: &executor.BuildChecker{
			Runner:      runner,
			FixturesDir: cfg.FixturesDir,
			Command:     cfg.BuildCommand,
			OutputDir:   cfg.BuildOutputDir,
			Artifacts:   cfg.BuildArtifacts,
			Logger:      log,
		},
		Ports:          executor.PortAllocator{Base: cfg.BasePort},
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         log,
		Runtime:        log,
		Revision:       revision,
	}
}

func recordHistory(ctx context.Context, dbPath string, run *models.RunResult) error {
	store, err := history.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// The run may have been interrupted; still record what finished.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return store.RecordRun(ctx, run)
}
