package models

import (
	"fmt"
	"time"
)

// LintType identifies the rule a LintMessage reports on
type LintType string

const (
	LintLinesPerCell        LintType = "lines_per_cell"
	LintCellsPerNotebook    LintType = "cells_per_notebook"
	LintFunctionDefinitions LintType = "function_definitions"
	LintClassDefinitions    LintType = "class_definitions"
	LintLinter              LintType = "linter"
	LintKernelspec          LintType = "kernelspec"
	LintMagics              LintType = "magics"
)

// LintMessage is the outcome of one lint check.
// Cell is the 1-based non-empty code cell number, or -1 for notebook-wide checks.
type LintMessage struct {
	Cell    int
	Message string
	Type    LintType
	Passed  bool
}

// String formats the message as "PASSED: <message> (Cell N)" or "... (Notebook)"
func (m LintMessage) String() string {
	status := "FAILED: "
	if m.Passed {
		status = "PASSED: "
	}
	return status + m.Message + location(m.Cell)
}

func location(cell int) string {
	if cell > 0 {
		return fmt.Sprintf(" (Cell %d)", cell)
	}
	return " (Notebook)"
}

// TestType identifies what a TestMessage reports on
type TestType string

const (
	TestCell         TestType = "cell_test"
	TestCellCoverage TestType = "cell_coverage"
)

// Outcome is the result of a single test operation
type Outcome int

const (
	OutcomeFailed  Outcome = -1
	OutcomeNotRun  Outcome = 0
	OutcomePassed  Outcome = 1
	OutcomeSkipped Outcome = 2
)

// String returns the label used in reports
func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "PASSED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeSkipped:
		return "SKIPPED"
	default:
		return "NOT RUN"
	}
}

// TestMessage is the outcome of one generated test operation.
// Cell is the 1-based code cell number, or -1 for the coverage check.
type TestMessage struct {
	Cell     int
	Message  string
	Type     TestType
	Outcome  Outcome
	Detail   string // Failure text or skip reason
	Duration time.Duration
}

// String formats the message as "<OUTCOME>: <message> (Cell N)"
func (m TestMessage) String() string {
	return m.Outcome.String() + ": " + m.Message + location(m.Cell)
}

// RunSummary aggregates the outcome of processing one notebook.
type RunSummary struct {
	Notebook string
	Kind     string // "lint" or "test"
	Passed   int
	Failed   int
	Skipped  int
	NotRun   int
	Duration time.Duration
}

// OK returns true if nothing failed.
func (s RunSummary) OK() bool {
	return s.Failed == 0
}

// SummarizeLint builds a RunSummary from lint messages.
func SummarizeLint(notebook string, msgs []LintMessage, d time.Duration) RunSummary {
	s := RunSummary{Notebook: notebook, Kind: "lint", Duration: d}
	for _, m := range msgs {
		if m.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// SummarizeTests builds a RunSummary from test messages.
func SummarizeTests(notebook string, msgs []TestMessage, d time.Duration) RunSummary {
	s := RunSummary{Notebook: notebook, Kind: "test", Duration: d}
	for _, m := range msgs {
		switch m.Outcome {
		case OutcomePassed:
			s.Passed++
		case OutcomeFailed:
			s.Failed++
		case OutcomeSkipped:
			s.Skipped++
		default:
			s.NotRun++
		}
	}
	return s
}
