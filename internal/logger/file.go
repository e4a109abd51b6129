package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/templatecheck/internal/models"
)

// FileLogger logs harness events to files under the configured log directory.
// It creates a timestamped per-run log file, one detail log per case under
// cases/, and maintains a latest.log symlink pointing to the most recent run.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	casesDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLoggerWithDirAndLevel creates a new FileLogger with a custom log directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	casesDir := filepath.Join(logDir, "cases")
	if err := os.MkdirAll(casesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cases directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		casesDir: casesDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== templatecheck Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !allows(fl.logLevel, level) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// Debugf logs a formatted debug-level message.
func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// LogTemplateStart records that a template's cases are starting.
func (fl *FileLogger) LogTemplateStart(template models.Template, port int) {
	if !allows(fl.logLevel, "info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Validating %s (port %d)\n", timestamp(), template.Name, port))
}

// LogCaseResult writes a one-line outcome to the run log and a detail log
// for the case: cases/<template>-<kind>.log.
func (fl *FileLogger) LogCaseResult(result models.CaseResult) error {
	if allows(fl.logLevel, "info") {
		line := fmt.Sprintf("[%s] %s %s (%.1fs)\n", timestamp(), result.Status(), result.Label(), result.Duration.Seconds())
		if !result.Passed && result.Message != "" {
			line += fmt.Sprintf("[%s]     %s\n", timestamp(), firstLine(result.Message))
		}
		fl.writeRunLog(line)
	}

	casePath := filepath.Join(fl.casesDir, fmt.Sprintf("%s-%s.log", result.Template.Name, result.Kind))
	file, err := os.OpenFile(casePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create case log file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s ===\n", result.Label())
	fmt.Fprintf(&sb, "Status: %s\n", result.Status())
	if !result.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "Started at: %s\n", result.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "Duration: %.1fs\n\n", result.Duration.Seconds())
	if result.Message != "" {
		fmt.Fprintf(&sb, "Message:\n%s\n\n", result.Message)
	}
	if result.Output != "" {
		fmt.Fprintf(&sb, "Output:\n%s\n\n", strings.TrimRight(result.Output, "\n"))
	}
	fmt.Fprintf(&sb, "Completed at: %s\n", time.Now().Format(time.RFC3339))

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write case log: %w", err)
	}
	return nil
}

// LogProgress is a no-op: progress bars are console-only.
func (fl *FileLogger) LogProgress(completed, total int) {}

// LogSummary logs the run summary at INFO level.
func (fl *FileLogger) LogSummary(result models.RunResult) {
	if !allows(fl.logLevel, "info") {
		return
	}

	status := "SUCCESS"
	if result.Failed > 0 {
		status = "FAILED"
	}

	ts := timestamp()
	message := fmt.Sprintf(
		"\n[%s] === VALIDATION SUMMARY ===\n"+
			"[%s] Run:          %s\n"+
			"[%s] Revision:     %s\n"+
			"[%s] Total cases:  %d\n"+
			"[%s] Passed:       %d\n"+
			"[%s] Failed:       %d\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Status:       %s (%d/%d cases passed)\n"+
			"[%s] Completed at: %s\n",
		ts, ts, result.RunID, ts, result.Revision, ts, result.Total, ts, result.Passed, ts, result.Failed,
		ts, result.Duration.Seconds(), ts, status, result.Passed, result.Total,
		ts, time.Now().Format(time.RFC3339),
	)
	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
