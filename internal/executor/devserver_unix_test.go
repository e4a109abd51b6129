//go:build unix

package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readPids returns the pids a test script recorded in pids.txt.
func readPids(t *testing.T, dir string) []int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "pids.txt"))
	require.NoError(t, err)

	var pids []int
	for _, field := range strings.Fields(string(data)) {
		pid, err := strconv.Atoi(field)
		require.NoError(t, err)
		pids = append(pids, pid)
	}
	require.NotEmpty(t, pids)
	return pids
}

func assertGone(t *testing.T, pids []int) {
	t.Helper()
	for _, pid := range pids {
		// Grandchildren are reparented to init and reaped asynchronously.
		assert.Eventually(t, func() bool {
			return errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
		}, 2*time.Second, 10*time.Millisecond, "process %d still alive", pid)
	}
}

func TestDevServerProbe_TerminatesProcessGroupOnEveryOutcome(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	// The script records its own pid and that of a background child, so
	// the whole group must be killed, not only the leader.
	const record = `sleep 30 & echo "$$ $!" > pids.txt; `

	tests := []struct {
		name   string
		script string
		port   func(t *testing.T) int
		idle   time.Duration
		check  func(t *testing.T, err error)
	}{
		{
			name:   "success",
			script: record + `echo "Server started"; wait`,
			port:   func(t *testing.T) int { return serverPort(t, ok) },
			idle:   5 * time.Second,
			check:  func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:   "probe failure",
			script: record + `echo "Server started"; wait`,
			port:   func(t *testing.T) int { return serverPort(t, bad) },
			idle:   5 * time.Second,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrProbe) },
		},
		{
			name:   "timeout",
			script: record + `wait`,
			port:   freePort,
			idle:   200 * time.Millisecond,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrServerStartTimeout) },
		},
		{
			name:   "stderr",
			script: record + `echo fatal >&2; wait`,
			port:   freePort,
			idle:   5 * time.Second,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrServerStartup) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, tmpl := newProbe(t, tt.script, tt.idle)

			_, err := probe.Check(context.Background(), tmpl, tt.port(t))
			tt.check(t, err)

			assertGone(t, readPids(t, filepath.Join(probe.FixturesDir, tmpl.Name)))
		})
	}
}

func TestServerProcess_TerminateIsIdempotent(t *testing.T) {
	requireShell(t)
	proc, err := StartServerProcess(t.TempDir(), []string{"sh", "-c", "sleep 30"}, 0)
	require.NoError(t, err)

	pid := proc.Pid()
	proc.Terminate(time.Second)
	proc.Terminate(time.Second)

	select {
	case <-proc.Exited():
	default:
		t.Fatal("process not reaped after Terminate")
	}
	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestServerProcess_EscalatesToKill(t *testing.T) {
	requireShell(t)
	proc, err := StartServerProcess(t.TempDir(), []string{"sh", "-c", `trap "" TERM; echo ready; while true; do sleep 0.05; done`}, 0)
	require.NoError(t, err)

	// Wait for the trap to be installed.
	select {
	case <-proc.stdout:
	case <-time.After(5 * time.Second):
		t.Fatal("script did not start")
	}

	start := time.Now()
	proc.Terminate(100 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Error(t, proc.ExitErr())
}

func TestDevServerProbe_KeepsDrainingOutputAfterReady(t *testing.T) {
	probe, tmpl := newProbe(t, "", 5*time.Second)
	dir := filepath.Join(probe.FixturesDir, tmpl.Name)
	flushed := filepath.Join(dir, "flushed")

	// Answers only once the script got past its post-ready logging, which
	// is far larger than a pipe buffer plus the channel backlog.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(flushed); err == nil {
				w.Write([]byte("ok"))
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	line := strings.Repeat("x", 1023)
	probe.Command = []string{"sh", "-c",
		`echo "Server started"; i=0; while [ $i -lt 400 ]; do echo "` + line + `"; i=$((i+1)); done; touch flushed; sleep 30`,
		"sh"}

	result, err := probe.Check(context.Background(), tmpl, serverPort(t, srv))
	require.NoError(t, err, "server blocked writing stdout after ready")
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestServerProcess_StopListeningKeepsTail(t *testing.T) {
	requireShell(t)
	line := strings.Repeat("y", 1023)
	proc, err := StartServerProcess(t.TempDir(), []string{"sh", "-c",
		`i=0; while [ $i -lt 400 ]; do echo "` + line + `"; i=$((i+1)); done; echo done; sleep 30`}, 0)
	require.NoError(t, err)
	defer proc.Terminate(time.Second)

	proc.StopListening()
	proc.StopListening()

	assert.Eventually(t, func() bool {
		return strings.Contains(proc.Output(), "done\n")
	}, 5*time.Second, 20*time.Millisecond, "output must still reach the tail after StopListening")
}
