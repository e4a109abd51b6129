package executor

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// ServerProcess owns one long-lived dev-server subprocess. Its standard
// output and standard error are pumped into channels of chunks until the
// probe stops listening, after which they are only retained in the output
// tail so the server never blocks on a full pipe.
type ServerProcess struct {
	cmd  *exec.Cmd
	port int

	stdout <-chan []byte // closed at EOF
	stderr <-chan []byte // closed at EOF

	output *tailBuffer
	quit   chan struct{}
	exited chan struct{}
	err    error // Wait result, valid once exited is closed

	listenOnce sync.Once
	stopOnce   sync.Once
}

// StartServerProcess spawns argv in dir as a new process group.
func StartServerProcess(dir string, argv []string, port int) (*ServerProcess, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, &CommandError{Argv: argv, Dir: dir, ExitCode: -1, Err: errors.New("empty command")}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	setProcessGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Argv: argv, Dir: dir, ExitCode: -1, Err: err}
	}

	stdoutCh := make(chan []byte, 16)
	stderrCh := make(chan []byte, 16)
	p := &ServerProcess{
		cmd:    cmd,
		port:   port,
		stdout: stdoutCh,
		stderr: stderrCh,
		output: newTailBuffer(defaultTailSize),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go p.pump(stdoutPipe, stdoutCh, &pumps)
	go p.pump(stderrPipe, stderrCh, &pumps)

	// Wait must not run before the pipes are fully read.
	go func() {
		pumps.Wait()
		p.err = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

func (p *ServerProcess) pump(r io.Reader, ch chan<- []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(ch)

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.output.Write(chunk)

			select {
			case ch <- chunk:
			case <-p.quit:
			}
		}
		if err != nil {
			return
		}
	}
}

// Port returns the port the server was asked to listen on.
func (p *ServerProcess) Port() int {
	return p.port
}

// Pid returns the process id of the group leader.
func (p *ServerProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Output returns the tail of everything the server wrote so far.
func (p *ServerProcess) Output() string {
	return p.output.String()
}

// Exited is closed once the process has been reaped.
func (p *ServerProcess) Exited() <-chan struct{} {
	return p.exited
}

// ExitErr returns the Wait result. Only meaningful after Exited is closed.
func (p *ServerProcess) ExitErr() error {
	return p.err
}

// StopListening stops forwarding output to the stdout and stderr channels.
// The pumps keep draining both pipes into the output tail, so a server that
// keeps logging after readiness never blocks on a full pipe.
func (p *ServerProcess) StopListening() {
	p.listenOnce.Do(func() { close(p.quit) })
}

// Terminate stops listening, sends SIGTERM to the process group, escalates
// to SIGKILL after grace, and returns only once the process is reaped.
// It is idempotent and safe to call after the process exited on its own.
func (p *ServerProcess) Terminate(grace time.Duration) {
	p.StopListening()
	p.stopOnce.Do(func() {

		select {
		case <-p.exited:
			return
		default:
		}

		signalProcessGroup(p.cmd, false)

		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.exited:
		case <-timer.C:
			signalProcessGroup(p.cmd, true)
			<-p.exited
		}
	})
	<-p.exited
}
