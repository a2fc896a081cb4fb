package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/nbcelltests/internal/models"
)

// FileLogger writes run events to a timestamped run-YYYYMMDD-HHMMSS.log
// in its log directory and keeps latest.log pointing at it.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates the log directory if needed, opens a new run log and
// updates the latest.log symlink.
func NewFileLogger(logDir, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

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

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.write("=== nbcelltests Run Log ===\n")
	fl.write(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) logWithLevel(level, message string) {
	if !shouldLog(fl.logLevel, level) {
		return
	}
	fl.write(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, message))
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

// LogNotebookStart records the start of a lint or test pass.
func (fl *FileLogger) LogNotebookStart(notebook, kind string) {
	fl.LogInfo(fmt.Sprintf("Starting %s of %s", kind, notebook))
}

// LogLintResult records every lint check regardless of outcome.
func (fl *FileLogger) LogLintResult(notebook string, msg models.LintMessage) {
	fl.LogInfo(fmt.Sprintf("%s: %s", notebook, msg))
}

// LogTestResult records a test outcome with its full detail.
func (fl *FileLogger) LogTestResult(notebook string, msg models.TestMessage) {
	line := fmt.Sprintf("%s: %s", notebook, msg)
	if msg.Duration > 0 {
		line += fmt.Sprintf(" in %s", formatDuration(msg.Duration))
	}
	if msg.Detail != "" {
		line += "\n" + indent(msg.Detail)
	}
	if msg.Outcome == models.OutcomeFailed {
		fl.LogError(line)
		return
	}
	fl.LogInfo(line)
}

// LogSummary records the per-notebook totals.
func (fl *FileLogger) LogSummary(s models.RunSummary) {
	fl.LogInfo(summaryLine(s, fmt.Sprintf("%d failed", s.Failed)))
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	if err := fl.runLog.Close(); err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}
	fl.runLog = nil
	return nil
}

func (fl *FileLogger) write(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(strings.ReplaceAll(message, "\r\n", "\n"))
	}
}
