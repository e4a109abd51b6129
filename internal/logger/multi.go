package logger

import (
	"errors"

	"github.com/harrison/templatecheck/internal/models"
)

// Sink is what the harness logs to. ConsoleLogger, FileLogger and
// NoOpLogger all satisfy it.
type Sink interface {
	LogTemplateStart(template models.Template, port int)
	LogCaseResult(result models.CaseResult) error
	LogProgress(completed, total int)
	LogSummary(result models.RunResult)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// MultiLogger fans every call out to each of its sinks in order.
type MultiLogger struct {
	sinks []Sink
}

// NewMultiLogger combines sinks. Nil sinks are skipped.
func NewMultiLogger(sinks ...Sink) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) LogTemplateStart(template models.Template, port int) {
	for _, s := range m.sinks {
		s.LogTemplateStart(template, port)
	}
}

// LogCaseResult returns the joined errors of every sink that failed.
func (m *MultiLogger) LogCaseResult(result models.CaseResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.LogCaseResult(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLogger) LogProgress(completed, total int) {
	for _, s := range m.sinks {
		s.LogProgress(completed, total)
	}
}

func (m *MultiLogger) LogSummary(result models.RunResult) {
	for _, s := range m.sinks {
		s.LogSummary(result)
	}
}

func (m *MultiLogger) Debugf(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.Debugf(format, args...)
	}
}

func (m *MultiLogger) Infof(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.Infof(format, args...)
	}
}

func (m *MultiLogger) Warnf(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.Warnf(format, args...)
	}
}
