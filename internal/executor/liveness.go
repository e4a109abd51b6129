package executor

import "strings"

// LivenessState is the dev-server startup state.
type LivenessState int

const (
	LivenessWaiting LivenessState = iota
	LivenessReady
	LivenessTimedOut
	LivenessFailed
)

// String returns the lowercase name of the state.
func (s LivenessState) String() string {
	switch s {
	case LivenessWaiting:
		return "waiting"
	case LivenessReady:
		return "ready"
	case LivenessTimedOut:
		return "timed out"
	case LivenessFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// livenessMachine decides readiness from the three startup events: a stdout
// chunk, a stderr chunk and the idle timer firing. Once it leaves Waiting
// every further event is ignored.
type livenessMachine struct {
	state   LivenessState
	markers []string
	carry   string // tail of the previous chunk, for markers split across reads
	keep    int
}

func newLivenessMachine(markers []string) *livenessMachine {
	keep := 0
	for _, m := range markers {
		if len(m) > keep {
			keep = len(m)
		}
	}
	if keep > 0 {
		keep--
	}
	return &livenessMachine{markers: markers, keep: keep}
}

func (m *livenessMachine) onStdout(chunk []byte) LivenessState {
	if m.state != LivenessWaiting {
		return m.state
	}

	text := m.carry + string(chunk)
	for _, marker := range m.markers {
		if strings.Contains(text, marker) {
			m.state = LivenessReady
			return m.state
		}
	}

	if len(text) > m.keep {
		text = text[len(text)-m.keep:]
	}
	m.carry = text
	return m.state
}

// onStderr fails startup on any standard-error data.
func (m *livenessMachine) onStderr(chunk []byte) LivenessState {
	if m.state == LivenessWaiting && len(chunk) > 0 {
		m.state = LivenessFailed
	}
	return m.state
}

func (m *livenessMachine) onIdle() LivenessState {
	if m.state == LivenessWaiting {
		m.state = LivenessTimedOut
	}
	return m.state
}

func (m *livenessMachine) onExit() LivenessState {
	if m.state == LivenessWaiting {
		m.state = LivenessFailed
	}
	return m.state
}
