//go:build !unix

package executor

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// signalProcessGroup falls back to killing the direct child; there is no
// portable process-group signal outside unix.
func signalProcessGroup(cmd *exec.Cmd, kill bool) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return os.ErrProcessDone
	}
	return nil
}
