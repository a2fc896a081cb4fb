// Package logger reports notebook lint and test progress to the console
// and to per-run log files. Implementations are safe for concurrent use,
// since several notebooks may be processed in parallel.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/nbcelltests/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ValidLevels lists the accepted log level names.
var ValidLevels = []string{"trace", "debug", "info", "warn", "error"}

// Logger receives the events of a lint or test run.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogNotebookStart(notebook, kind string)
	LogLintResult(notebook string, msg models.LintMessage)
	LogTestResult(notebook string, msg models.TestMessage)
	LogSummary(summary models.RunSummary)
}

// ConsoleLogger writes "[HH:MM:SS] [LEVEL] message" lines to a writer.
// Color is enabled only for terminals.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger. A nil writer discards everything;
// an empty or unknown logLevel means "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should get color.
// NO_COLOR (via color.NoColor) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) && !color.NoColor
}

// normalizeLogLevel lowercases level and falls back to "info".
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	for _, l := range ValidLevels {
		if l == normalized {
			return normalized
		}
	}
	return "info"
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func shouldLog(configured, messageLevel string) bool {
	return logLevelToInt(strings.ToLower(messageLevel)) >= logLevelToInt(configured)
}

// LogTrace logs a trace-level message.
func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) { cl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) { cl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || !shouldLog(cl.logLevel, level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := level
	if cl.colorOutput {
		label = colorLevel(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), label, message)
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogNotebookStart logs that kind ("lint" or "test") begins on notebook.
func (cl *ConsoleLogger) LogNotebookStart(notebook, kind string) {
	cl.LogInfo(fmt.Sprintf("Starting %s of %s", kind, notebook))
}

// LogLintResult logs a passed check at DEBUG and a failed one at WARN.
func (cl *ConsoleLogger) LogLintResult(notebook string, msg models.LintMessage) {
	if msg.Passed {
		cl.LogDebug(fmt.Sprintf("%s: %s", notebook, cl.paintStatus(msg.String())))
		return
	}
	cl.LogWarn(fmt.Sprintf("%s: %s", notebook, cl.paintStatus(msg.String())))
}

// LogTestResult logs one test outcome; failures include their detail.
func (cl *ConsoleLogger) LogTestResult(notebook string, msg models.TestMessage) {
	line := fmt.Sprintf("%s: %s", notebook, cl.paintStatus(msg.String()))
	if msg.Duration > 0 {
		line += fmt.Sprintf(" in %s", formatDuration(msg.Duration))
	}
	switch msg.Outcome {
	case models.OutcomeFailed:
		if msg.Detail != "" {
			line += "\n" + indent(msg.Detail)
		}
		cl.LogError(line)
	case models.OutcomeSkipped:
		if msg.Detail != "" {
			line += fmt.Sprintf(" [%s]", msg.Detail)
		}
		cl.LogInfo(line)
	default:
		cl.LogInfo(line)
	}
}

// paintStatus colors the leading PASSED/FAILED/SKIPPED label of a result line.
func (cl *ConsoleLogger) paintStatus(line string) string {
	if !cl.colorOutput {
		return line
	}
	status, rest, ok := strings.Cut(line, ":")
	if !ok {
		return line
	}
	var attr color.Attribute
	switch status {
	case "PASSED":
		attr = color.FgGreen
	case "FAILED":
		attr = color.FgRed
	default:
		attr = color.FgYellow
	}
	return color.New(attr).Sprint(status) + ":" + rest
}

// LogSummary logs the per-notebook totals at INFO level.
func (cl *ConsoleLogger) LogSummary(s models.RunSummary) {
	if cl.writer == nil || !shouldLog(cl.logLevel, "info") {
		return
	}

	failed := fmt.Sprintf("%d failed", s.Failed)
	if cl.colorOutput {
		if s.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
		} else {
			failed = color.New(color.FgGreen).Sprint(failed)
		}
	}
	cl.LogInfo(summaryLine(s, failed))
}

func summaryLine(s models.RunSummary, failed string) string {
	line := fmt.Sprintf("=== %s %s: %d passed, %s", s.Kind, s.Notebook, s.Passed, failed)
	if s.Kind == "test" {
		line += fmt.Sprintf(", %d skipped", s.Skipped)
		if s.NotRun > 0 {
			line += fmt.Sprintf(", %d not run", s.NotRun)
		}
	}
	return line + fmt.Sprintf(" (%s)", formatDuration(s.Duration))
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all events.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (NoOpLogger) LogDebug(string) {}
func (NoOpLogger) LogInfo(string) {}
func (NoOpLogger) LogWarn(string) {}
func (NoOpLogger) LogError(string) {}
func (NoOpLogger) LogNotebookStart(string, string) {}
func (NoOpLogger) LogLintResult(string, models.LintMessage) {}
func (NoOpLogger) LogTestResult(string, models.TestMessage) {}
func (NoOpLogger) LogSummary(models.RunSummary) {}
