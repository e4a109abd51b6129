package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLivenessMachine(t *testing.T) {
	tests := []struct {
		name   string
		events func(m *livenessMachine) LivenessState
		want   LivenessState
	}{
		{
			name: "marker in one chunk",
			events: func(m *livenessMachine) LivenessState {
				m.onStdout([]byte("building...\n"))
				return m.onStdout([]byte("  Server started in 120ms\n"))
			},
			want: LivenessReady,
		},
		{
			name: "marker split across chunks",
			events: func(m *livenessMachine) LivenessState {
				m.onStdout([]byte("Server st"))
				return m.onStdout([]byte("arted\n"))
			},
			want: LivenessReady,
		},
		{
			name: "output without marker keeps waiting",
			events: func(m *livenessMachine) LivenessState {
				m.onStdout([]byte("compiling\n"))
				return m.onStdout([]byte("still compiling\n"))
			},
			want: LivenessWaiting,
		},
		{
			name: "stderr fails immediately",
			events: func(m *livenessMachine) LivenessState {
				m.onStdout([]byte("compiling\n"))
				return m.onStderr([]byte("Error: port in use\n"))
			},
			want: LivenessFailed,
		},
		{
			name: "empty stderr chunk is ignored",
			events: func(m *livenessMachine) LivenessState {
				return m.onStderr(nil)
			},
			want: LivenessWaiting,
		},
		{
			name: "idle timer",
			events: func(m *livenessMachine) LivenessState {
				return m.onIdle()
			},
			want: LivenessTimedOut,
		},
		{
			name: "exit before ready",
			events: func(m *livenessMachine) LivenessState {
				return m.onExit()
			},
			want: LivenessFailed,
		},
		{
			name: "terminal state ignores later events",
			events: func(m *livenessMachine) LivenessState {
				m.onStdout([]byte("Server started"))
				m.onStderr([]byte("warning"))
				m.onIdle()
				return m.onExit()
			},
			want: LivenessReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newLivenessMachine([]string{"Server started"})
			assert.Equal(t, tt.want, tt.events(m))
			assert.Equal(t, tt.want, m.state)
		})
	}
}

func TestLivenessMachine_MultipleMarkers(t *testing.T) {
	m := newLivenessMachine([]string{"Server started", "Local:"})
	assert.Equal(t, LivenessReady, m.onStdout([]byte("  ➜  Local:   http://localhost:3000/\n")))
}

func TestLivenessState_String(t *testing.T) {
	assert.Equal(t, "waiting", LivenessWaiting.String())
	assert.Equal(t, "ready", LivenessReady.String())
	assert.Equal(t, "timed out", LivenessTimedOut.String())
	assert.Equal(t, "failed", LivenessFailed.String())
	assert.Equal(t, "unknown", LivenessState(42).String())
}
