package models

// SetupState tracks the one-time scaffold and install pipeline of a template.
type SetupState int32

const (
	SetupPending SetupState = iota
	SetupRunning
	SetupSucceeded
	SetupFailed
)

// String returns the lowercase name of the state.
func (s SetupState) String() string {
	switch s {
	case SetupPending:
		return "pending"
	case SetupRunning:
		return "running"
	case SetupSucceeded:
		return "succeeded"
	case SetupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the state is final.
func (s SetupState) Done() bool {
	return s == SetupSucceeded || s == SetupFailed
}
