package executor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harrison/templatecheck/internal/models"
)

const (
	// DefaultIdleTimeout is how long a starting dev server may stay silent.
	DefaultIdleTimeout = 10 * time.Second

	// DefaultTerminateGrace is how long the server gets to exit after SIGTERM.
	DefaultTerminateGrace = 3 * time.Second

	maxProbeBody = 10 << 20
)

// DevServerProbe starts a template's dev server, waits until it reports
// readiness, and checks that it serves a non-empty 200 response.
type DevServerProbe struct {
	FixturesDir    string
	Command        []string      // "--port <n>" is appended
	Markers        []string      // Any one in stdout means ready
	IdleTimeout    time.Duration // Reset on every stdout chunk
	Host           string        // Defaults to "localhost"
	Client         *http.Client  // Defaults to a client with a 30s timeout
	TerminateGrace time.Duration
	Logger         RuntimeLogger
}

// RunCase implements CaseRunner.
func (p *DevServerProbe) RunCase(ctx context.Context, template models.Template, port int) (string, error) {
	_, output, err := p.probe(ctx, template, port)
	return output, err
}

// Check starts the dev server for template on port and probes it.
// The server is always terminated before Check returns.
func (p *DevServerProbe) Check(ctx context.Context, template models.Template, port int) (*models.ProbeResult, error) {
	result, _, err := p.probe(ctx, template, port)
	return result, err
}

func (p *DevServerProbe) probe(ctx context.Context, template models.Template, port int) (*models.ProbeResult, string, error) {
	argv := append(append([]string{}, p.Command...), "--port", strconv.Itoa(port))
	dir := filepath.Join(p.FixturesDir, template.Name)

	proc, err := StartServerProcess(dir, argv, port)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		proc.Terminate(p.terminateGrace())
		GracefulDebug(p.Logger, "dev server for %s on port %d stopped", template.Name, port)
	}()

	GracefulDebug(p.Logger, "dev server for %s started (pid %d, port %d)", template.Name, proc.Pid(), port)

	err = p.awaitReady(ctx, proc)
	proc.StopListening()
	if err != nil {
		return nil, proc.Output(), err
	}

	GracefulDebug(p.Logger, "dev server for %s is ready, probing", template.Name)

	result, err := p.fetch(ctx, port)
	return result, proc.Output(), err
}

// awaitReady drives the liveness machine until the server is ready, the
// idle timer fires, stderr output arrives, the server exits, or ctx ends.
func (p *DevServerProbe) awaitReady(ctx context.Context, proc *ServerProcess) error {
	idle := p.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	machine := newLivenessMachine(p.Markers)
	timer := time.NewTimer(idle)
	defer timer.Stop()

	stdout, stderr := proc.stdout, proc.stderr
	for {
		select {
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				break
			}
			timer.Reset(idle)
			if machine.onStdout(chunk) == LivenessReady {
				return nil
			}

		case chunk, ok := <-stderr:
			if !ok {
				stderr = nil
				break
			}
			if machine.onStderr(chunk) == LivenessFailed {
				return &ServerStartupError{Output: string(chunk)}
			}

		case <-timer.C:
			machine.onIdle()
			return &ServerStartTimeoutError{Idle: idle}

		case <-ctx.Done():
			return ctx.Err()
		}

		// Both streams at EOF: the server is gone without ever being ready.
		if stdout == nil && stderr == nil {
			machine.onExit()
			<-proc.Exited()
			exitErr := proc.ExitErr()
			if exitErr == nil {
				exitErr = fmt.Errorf("exit status 0")
			}
			return &ServerStartupError{Exit: exitErr}
		}
	}
}

func (p *DevServerProbe) fetch(ctx context.Context, port int) (*models.ProbeResult, error) {
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}
	if len(body) == 0 {
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode, Empty: true}
	}

	return &models.ProbeResult{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

func (p *DevServerProbe) terminateGrace() time.Duration {
	if p.TerminateGrace > 0 {
		return p.TerminateGrace
	}
	return DefaultTerminateGrace
}
