package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrSetupFailed        = errors.New("setup failed")
	ErrStructure          = errors.New("structural check failed")
	ErrServerStartTimeout = errors.New("dev server failed to start")
	ErrServerStartup      = errors.New("dev server startup error")
	ErrProbe              = errors.New("dev server probe failed")
	ErrBuildFailed        = errors.New("build failed")
	ErrArtifactMissing    = errors.New("build artifact missing")
)

// CommandError describes a subprocess that could not start or exited non-zero.
type CommandError struct {
	Argv     []string
	Dir      string
	ExitCode int    // -1 when the process never ran or was killed by a signal
	Stderr   string // Tail of captured standard error
	Err      error
}

func (e *CommandError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "`%s`", strings.Join(e.Argv, " "))
	if e.ExitCode >= 0 {
		fmt.Fprintf(&sb, " exited with status %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&sb, " failed: %v", e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&sb, "\n%s", stderr)
	}
	return sb.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// SetupError is the memoized failure of a template's scaffold or install step.
type SetupError struct {
	Template string
	Step     string // "scaffold" or "install"
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of %s failed during %s: %v", e.Template, e.Step, e.Err)
}

func (e *SetupError) Unwrap() error        { return e.Err }
func (e *SetupError) Is(target error) bool { return target == ErrSetupFailed }

// StructuralError lists every checklist violation found in a generated template.
type StructuralError struct {
	Template   string
	Violations []string // "missing <path>" or "failed to clean up <path>"
}

func (e *StructuralError) Error() string {
	return strings.Join(e.Violations, "\n")
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructure }

// ServerStartTimeoutError means the dev server stayed silent for a whole idle window.
type ServerStartTimeoutError struct {
	Idle time.Duration
}

func (e *ServerStartTimeoutError) Error() string {
	return fmt.Sprintf("dev server failed to start: no output for %v", e.Idle)
}

func (e *ServerStartTimeoutError) Is(target error) bool { return target == ErrServerStartTimeout }

// ServerStartupError carries standard-error output (or an early exit) seen before readiness.
type ServerStartupError struct {
	Output string // Raw stderr text
	Exit   error  // Set instead of Output when the process exited before readiness
}

func (e *ServerStartupError) Error() string {
	if e.Exit != nil {
		return fmt.Sprintf("dev server exited before it was ready: %v", e.Exit)
	}
	if msg := strings.TrimRight(e.Output, "\r\n"); msg != "" {
		return msg
	}
	return fmt.Sprintf("dev server wrote to stderr: %q", e.Output)
}

func (e *ServerStartupError) Unwrap() error        { return e.Exit }
func (e *ServerStartupError) Is(target error) bool { return target == ErrServerStartup }

// ProbeError is a failed readiness HTTP probe.
type ProbeError struct {
	URL        string
	StatusCode int   // Non-zero when the server answered with the wrong status
	Err        error // Network-level failure
	Empty      bool  // Server answered 200 with an empty body
}

func (e *ProbeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
	case e.Empty:
		return fmt.Sprintf("GET %s returned empty response", e.URL)
	default:
		return fmt.Sprintf("GET %s didn't respond with 200 (got %d)", e.URL, e.StatusCode)
	}
}

func (e *ProbeError) Unwrap() error        { return e.Err }
func (e *ProbeError) Is(target error) bool { return target == ErrProbe }

// BuildError wraps a non-zero exit of the build command.
type BuildError struct {
	Template string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.Template, e.Err)
}

func (e *BuildError) Unwrap() error        { return e.Err }
func (e *BuildError) Is(target error) bool { return target == ErrBuildFailed }

// ArtifactMissingError names one required build output that was not produced.
type ArtifactMissingError struct {
	Artifact string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("didn't build %s", e.Artifact)
}

func (e *ArtifactMissingError) Is(target error) bool { return target == ErrArtifactMissing }
