package executor

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// CommandRunner abstracts subprocess execution for testability.
// Run executes argv in dir and returns its standard output. A non-zero exit
// is reported as a *CommandError carrying the exit status and stderr tail.
type CommandRunner interface {
	Run(ctx context.Context, dir string, argv []string) (stdout string, err error)
}

// ExecRunner runs commands as real subprocesses.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string

	// DiscardStdout drops standard output instead of capturing it.
	DiscardStdout bool

	// KillGrace is how long a cancelled command may take to exit after its
	// process group is signalled. Defaults to 5s.
	KillGrace time.Duration
}

// NewExecRunner creates a CommandRunner that executes real commands.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{KillGrace: 5 * time.Second}
}

// Run executes argv in dir. The process runs in its own process group so
// cancelling ctx terminates any children it spawned as well.
func (r *ExecRunner) Run(ctx context.Context, dir string, argv []string) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", &CommandError{Argv: argv, Dir: dir, ExitCode: -1, Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return signalProcessGroup(cmd, true) }
	cmd.WaitDelay = r.KillGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	stdout := newTailBuffer(defaultTailSize)
	stderr := newTailBuffer(defaultTailSize)
	if r.DiscardStdout {
		cmd.Stdout = io.Discard
	} else {
		cmd.Stdout = stdout
	}
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	cmdErr := &CommandError{Argv: argv, Dir: dir, ExitCode: -1, Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.Err = ctxErr
		cmdErr.ExitCode = -1
	}
	return stdout.String(), cmdErr
}
