package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/harrison/templatecheck/internal/models"
)

type failingSink struct {
	NoOpLogger
	calls int
}

func (f *failingSink) LogCaseResult(result models.CaseResult) error {
	f.calls++
	return errors.New("disk full")
}

func TestMultiLoggerFanOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	failing := &failingSink{}
	m := NewMultiLogger(NewConsoleLogger(a, "info"), nil, NewConsoleLogger(b, "info"), failing)

	m.Infof("hello %s", "world")
	err := m.LogCaseResult(models.CaseResult{Template: models.Template{Name: "minimal"}, Kind: models.CaseBuild, Passed: true})

	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected joined sink error, got %v", err)
	}
	if failing.calls != 1 {
		t.Errorf("failing sink called %d times, want 1", failing.calls)
	}
	for _, buf := range []*bytes.Buffer{a, b} {
		if !strings.Contains(buf.String(), "hello world") || !strings.Contains(buf.String(), "PASS minimal (build)") {
			t.Errorf("sink missed output:\n%s", buf.String())
		}
	}
}
