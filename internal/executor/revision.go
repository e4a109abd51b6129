package executor

import (
	"context"
	"fmt"
	"strings"
)

// RevisionEnv is the environment variable CI sets to the commit under test.
const RevisionEnv = "GITHUB_SHA"

// ResolveRevision picks the template revision to scaffold from: explicit
// wins, then $GITHUB_SHA, then the current `git rev-parse HEAD`.
func ResolveRevision(ctx context.Context, runner CommandRunner, explicit string, getenv func(string) string) (string, error) {
	if rev := strings.TrimSpace(explicit); rev != "" {
		return rev, nil
	}
	if getenv != nil {
		if rev := strings.TrimSpace(getenv(RevisionEnv)); rev != "" {
			return rev, nil
		}
	}

	out, err := runner.Run(ctx, "", []string{"git", "rev-parse", "HEAD"})
	if err != nil {
		return "", fmt.Errorf("resolve revision (set --commit or %s): %w", RevisionEnv, err)
	}
	rev := strings.TrimSpace(out)
	if rev == "" {
		return "", fmt.Errorf("resolve revision: git rev-parse HEAD printed nothing")
	}
	return rev, nil
}
