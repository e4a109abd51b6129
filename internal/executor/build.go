package executor

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/harrison/templatecheck/internal/fileutil"
	"github.com/harrison/templatecheck/internal/models"
)

// BuildChecker runs a template's production build and checks its output.
type BuildChecker struct {
	Runner      CommandRunner
	FixturesDir string
	Command     []string
	OutputDir   string   // relative to the template, e.g. "dist"
	Artifacts   []string // relative to OutputDir, e.g. "index.html", "_astro"
	Logger      RuntimeLogger
}

// RunCase implements CaseRunner.
func (c *BuildChecker) RunCase(ctx context.Context, template models.Template, port int) (string, error) {
	return c.run(ctx, template)
}

// Check builds template and verifies every required artifact was produced.
func (c *BuildChecker) Check(ctx context.Context, template models.Template) error {
	_, err := c.run(ctx, template)
	return err
}

func (c *BuildChecker) run(ctx context.Context, template models.Template) (string, error) {
	dir := filepath.Join(c.FixturesDir, template.Name)

	output, err := c.Runner.Run(ctx, dir, c.Command)
	if err != nil {
		return output, &BuildError{Template: template.Name, Err: err}
	}

	built, err := fileutil.Tree(filepath.Join(dir, c.OutputDir), fileutil.TreeOptions{})
	if err != nil {
		// No output directory at all: every artifact is missing.
		built = models.NewFileSet()
		GracefulWarn(c.Logger, "Build: cannot scan output of %s: %v", template.Name, err)
	}
	GracefulDebug(c.Logger, "Build: %s produced %d paths", template.Name, built.Len())

	var missing []error
	for _, artifact := range built.Missing(c.Artifacts) {
		missing = append(missing, &ArtifactMissingError{Artifact: artifact})
	}
	return output, errors.Join(missing...)
}
