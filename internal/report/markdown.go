package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/nbcelltests/internal/models"
)

// Section is the results of one notebook in a Markdown report.
type Section struct {
	Notebook string
	Lint     []models.LintMessage
	Tests    []models.TestMessage
}

// Markdown renders the sections as a Markdown document with one table per
// notebook and result kind.
func Markdown(title string, sections []Section) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)

	for _, s := range sections {
		fmt.Fprintf(&sb, "## %s\n\n", escapeCell(s.Notebook))

		if len(s.Lint) > 0 {
			sum := models.SummarizeLint(s.Notebook, s.Lint, 0)
			fmt.Fprintf(&sb, "### Lint: %d passed, %d failed\n\n", sum.Passed, sum.Failed)
			sb.WriteString("| Status | Check | Location |\n|---|---|---|\n")
			for _, m := range s.Lint {
				status := "FAILED"
				if m.Passed {
					status = "PASSED"
				}
				fmt.Fprintf(&sb, "| %s | %s | %s |\n", status, escapeCell(m.Message), strings.TrimSpace(location(m.Cell)))
			}
			sb.WriteByte('\n')
		}

		if len(s.Tests) > 0 {
			sum := models.SummarizeTests(s.Notebook, s.Tests, 0)
			fmt.Fprintf(&sb, "### Tests: %d passed, %d failed, %d skipped\n\n", sum.Passed, sum.Failed, sum.Skipped)
			sb.WriteString("| Outcome | Test | Location | Detail |\n|---|---|---|---|\n")
			for _, m := range s.Tests {
				fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", m.Outcome, escapeCell(m.Message),
					strings.TrimSpace(location(m.Cell)), escapeCell(firstLine(m.Detail)))
			}
			sb.WriteByte('\n')

			for _, m := range s.Tests {
				if m.Outcome == models.OutcomeFailed && strings.Contains(m.Detail, "\n") {
					fmt.Fprintf(&sb, "#### %s%s\n\n```\n%s\n```\n\n", m.Message, location(m.Cell), strings.TrimRight(m.Detail, "\n"))
				}
			}
		}
	}
	return sb.String()
}

// HTML renders a Markdown document to a standalone HTML page.
func HTML(title, markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
