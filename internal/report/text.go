// Package report renders lint and test results for people and tools:
// colored text for terminals, Markdown rendered to HTML, SARIF for code
// scanning, and JUnit-XML intake from external test tools.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/nbcelltests/internal/models"
)

// TextWriter prints results as plain or colored text.
type TextWriter struct {
	w     io.Writer
	color bool
}

// NewTextWriter creates a TextWriter. Color is used only when w is a terminal.
func NewTextWriter(w io.Writer) *TextWriter {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) && !color.NoColor
	}
	return &TextWriter{w: w, color: useColor}
}

func (t *TextWriter) paint(attr color.Attribute, s string) string {
	if !t.color {
		return s
	}
	return color.New(attr).Sprint(s)
}

func (t *TextWriter) status(passed bool, label string) string {
	if passed {
		return t.paint(color.FgGreen, label)
	}
	return t.paint(color.FgRed, label)
}

// WriteLint prints one line per lint check followed by a summary line.
func (t *TextWriter) WriteLint(notebookPath string, msgs []models.LintMessage) error {
	var sb strings.Builder
	sb.WriteString(t.paint(color.Bold, notebookPath) + "\n")
	for _, m := range msgs {
		label := "FAILED"
		if m.Passed {
			label = "PASSED"
		}
		fmt.Fprintf(&sb, "  %s: %s%s\n", t.status(m.Passed, label), m.Message, location(m.Cell))
	}
	s := models.SummarizeLint(notebookPath, msgs, 0)
	fmt.Fprintf(&sb, "  %d passed, %s\n", s.Passed, t.status(s.Failed == 0, fmt.Sprintf("%d failed", s.Failed)))

	_, err := io.WriteString(t.w, sb.String())
	return err
}

// WriteTests prints one line per test operation, with failure detail
// indented below, followed by a summary line.
func (t *TextWriter) WriteTests(notebookPath string, msgs []models.TestMessage) error {
	var sb strings.Builder
	sb.WriteString(t.paint(color.Bold, notebookPath) + "\n")
	for _, m := range msgs {
		var label string
		switch m.Outcome {
		case models.OutcomePassed:
			label = t.paint(color.FgGreen, m.Outcome.String())
		case models.OutcomeFailed:
			label = t.paint(color.FgRed, m.Outcome.String())
		default:
			label = t.paint(color.FgYellow, m.Outcome.String())
		}
		fmt.Fprintf(&sb, "  %s: %s%s", label, m.Message, location(m.Cell))
		if m.Outcome == models.OutcomeSkipped && m.Detail != "" {
			fmt.Fprintf(&sb, " [%s]", m.Detail)
		}
		sb.WriteByte('\n')
		if m.Outcome == models.OutcomeFailed && m.Detail != "" {
			for _, line := range strings.Split(strings.TrimRight(m.Detail, "\n"), "\n") {
				sb.WriteString("      " + line + "\n")
			}
		}
	}
	s := models.SummarizeTests(notebookPath, msgs, 0)
	fmt.Fprintf(&sb, "  %d passed, %s, %d skipped\n",
		s.Passed, t.status(s.Failed == 0, fmt.Sprintf("%d failed", s.Failed)), s.Skipped)

	_, err := io.WriteString(t.w, sb.String())
	return err
}

func location(cell int) string {
	if cell > 0 {
		return fmt.Sprintf(" (Cell %d)", cell)
	}
	return " (Notebook)"
}
