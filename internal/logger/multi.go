package logger

import "github.com/harrison/nbcelltests/internal/models"

// MultiLogger forwards every event to each of its loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogNotebookStart(notebook, kind string) {
	for _, l := range m.loggers {
		l.LogNotebookStart(notebook, kind)
	}
}

func (m *MultiLogger) LogLintResult(notebook string, msg models.LintMessage) {
	for _, l := range m.loggers {
		l.LogLintResult(notebook, msg)
	}
}

func (m *MultiLogger) LogTestResult(notebook string, msg models.TestMessage) {
	for _, l := range m.loggers {
		l.LogTestResult(notebook, msg)
	}
}

func (m *MultiLogger) LogSummary(s models.RunSummary) {
	for _, l := range m.loggers {
		l.LogSummary(s)
	}
}

// NotebookLogger binds a Logger to one notebook, for components that
// report results without knowing which notebook they belong to.
type NotebookLogger struct {
	Logger   Logger
	Notebook string
}

// ForNotebook returns a NotebookLogger for notebook.
func ForNotebook(l Logger, notebook string) *NotebookLogger {
	return &NotebookLogger{Logger: l, Notebook: notebook}
}

// LogWarn logs message prefixed with the notebook path.
func (n *NotebookLogger) LogWarn(message string) {
	n.Logger.LogWarn(n.Notebook + ": " + message)
}

// LogTestResult logs msg for the bound notebook.
func (n *NotebookLogger) LogTestResult(msg models.TestMessage) {
	n.Logger.LogTestResult(n.Notebook, msg)
}
