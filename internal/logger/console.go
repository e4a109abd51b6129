package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/harrison/templatecheck/internal/models"
)

// ConsoleLogger logs harness progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// SetColor forces color output on or off.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor already honours NO_COLOR and non-TTY stdout
		return !color.NoColor
	}
	return false
}

func (cl *ConsoleLogger) write(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) { cl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) { cl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

// Debugf logs a formatted debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// logWithLevel logs a message at the specified level if filtering allows it.
// Format: "[HH:MM:SS] [LEVEL] <message>"
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !allows(cl.logLevel, level) {
		return
	}

	coloredLevel := level
	if cl.colorOutput {
		coloredLevel = levelColor(level).Sprint(level)
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), coloredLevel, message))
}

func levelColor(level string) *color.Color {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// LogTemplateStart logs that a template's cases are starting, at DEBUG level.
// Format: "[HH:MM:SS] Validating <name> (port <n>)"
func (cl *ConsoleLogger) LogTemplateStart(template models.Template, port int) {
	if cl.writer == nil || !allows(cl.logLevel, "debug") {
		return
	}

	name := template.Name
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	cl.write(fmt.Sprintf("[%s] Validating %s (port %d)\n", timestamp(), name, port))
}

// LogCaseResult logs the outcome of a case at INFO level.
// Format: "[HH:MM:SS] PASS minimal (dev) 1.2s" followed by the diagnostic on failure.
func (cl *ConsoleLogger) LogCaseResult(result models.CaseResult) error {
	if cl.writer == nil || !allows(cl.logLevel, "info") {
		return nil
	}

	status := result.Status()
	if cl.colorOutput {
		if result.Passed {
			status = color.New(color.FgGreen).Sprint(status)
		} else {
			status = color.New(color.FgRed, color.Bold).Sprint(status)
		}
	}

	ts := timestamp()
	message := fmt.Sprintf("[%s] %s %s %s\n", ts, status, result.Label(), formatDuration(result.Duration))
	if !result.Passed && result.Message != "" {
		for _, line := range strings.Split(strings.TrimRight(result.Message, "\n"), "\n") {
			message += fmt.Sprintf("[%s]     %s\n", ts, line)
		}
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	_, err := cl.writer.Write([]byte(message))
	return err
}

// LogProgress logs how many cases have finished, at INFO level.
// Format: "[HH:MM:SS] Progress: [=====     ] 6/12 (50%)"
func (cl *ConsoleLogger) LogProgress(completed, total int) {
	if cl.writer == nil || !allows(cl.logLevel, "info") || total == 0 {
		return
	}

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(completed)
	cl.write(fmt.Sprintf("[%s] Progress: %s\n", timestamp(), pb.Render()))
}

// LogSummary logs the run summary with pass/fail counts at INFO level.
func (cl *ConsoleLogger) LogSummary(result models.RunResult) {
	if cl.writer == nil || !allows(cl.logLevel, "info") {
		return
	}

	ts := timestamp()
	header := "=== Validation Summary ==="
	passed := fmt.Sprintf("Passed: %d", result.Passed)
	failed := fmt.Sprintf("Failed: %d", result.Failed)
	failedHeader := "Failed cases:"
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
		passed = color.New(color.FgGreen).Sprint(passed)
		if result.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
			failedHeader = color.New(color.FgRed).Sprint(failedHeader)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)
	if result.RunID != "" {
		fmt.Fprintf(&sb, "[%s] Run: %s\n", ts, result.RunID)
	}
	if result.Revision != "" {
		fmt.Fprintf(&sb, "[%s] Revision: %s\n", ts, result.Revision)
	}
	fmt.Fprintf(&sb, "[%s] Total cases: %d\n", ts, result.Total)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, passed)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, failed)
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(result.Duration))

	if failedCases := result.FailedCases(); len(failedCases) > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, failedHeader)
		for _, c := range failedCases {
			fmt.Fprintf(&sb, "[%s]   - %s: %s\n", ts, c.Label(), firstLine(c.Message))
		}
	}

	cl.write(sb.String())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTemplateStart(template models.Template, port int) {}
func (n *NoOpLogger) LogCaseResult(result models.CaseResult) error       { return nil }
func (n *NoOpLogger) LogProgress(completed, total int)                   {}
func (n *NoOpLogger) LogSummary(result models.RunResult)                 {}
func (n *NoOpLogger) Debugf(format string, args ...interface{})          {}
func (n *NoOpLogger) Infof(format string, args ...interface{})           {}
func (n *NoOpLogger) Warnf(format string, args ...interface{})           {}
