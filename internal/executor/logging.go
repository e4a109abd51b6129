package executor

import "github.com/harrison/templatecheck/internal/models"

// Logger receives case-level harness events.
type Logger interface {
	LogTemplateStart(template models.Template, port int)
	LogCaseResult(result models.CaseResult) error
	LogProgress(completed, total int)
	LogSummary(result models.RunResult)
}

// RuntimeLogger receives free-form diagnostics.
type RuntimeLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// GracefulWarn logs a warning if logger is non-nil.
func GracefulWarn(logger RuntimeLogger, format string, args ...interface{}) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}

// GracefulInfo logs an info message if logger is non-nil.
func GracefulInfo(logger RuntimeLogger, format string, args ...interface{}) {
	if logger != nil {
		logger.Infof(format, args...)
	}
}

// GracefulDebug logs a debug message if logger is non-nil.
func GracefulDebug(logger RuntimeLogger, format string, args ...interface{}) {
	if logger != nil {
		logger.Debugf(format, args...)
	}
}
