package executor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harrison/templatecheck/internal/fileutil"
	"github.com/harrison/templatecheck/internal/models"
)

// StructureChecker verifies the file-system shape of a generated template.
type StructureChecker struct {
	FixturesDir string
	Required    []string // must exist
	Forbidden   []string // must have been cleaned up by the scaffolder
}

// RunCase implements CaseRunner.
func (c *StructureChecker) RunCase(ctx context.Context, template models.Template, port int) (string, error) {
	return "", c.Check(ctx, template)
}

// Check evaluates every required and forbidden path and reports all
// violations together.
func (c *StructureChecker) Check(ctx context.Context, template models.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(c.FixturesDir, template.Name)
	var violations []string

	for _, p := range c.Required {
		if !fileutil.Exists(filepath.Join(dir, p)) {
			violations = append(violations, fmt.Sprintf("missing %s", p))
		}
	}
	for _, p := range c.Forbidden {
		if fileutil.Exists(filepath.Join(dir, p)) {
			violations = append(violations, fmt.Sprintf("failed to clean up %s", p))
		}
	}

	if len(violations) > 0 {
		return &StructuralError{Template: template.Name, Violations: violations}
	}
	return nil
}
