package celltest

import (
	"errors"
	"fmt"
)

// Generation-time failures. Each is wrapped in a *GenerationError.
var (
	// ErrMarkerContradiction is returned when one test both injects and skips the cell.
	ErrMarkerContradiction = errors.New("contradictory test markers")
	// ErrCellNotInjected is returned when a test has content but declares neither marker.
	ErrCellNotInjected = errors.New("cell code not injected into test")
	// ErrNonCodeCellTest is returned when a markdown or raw cell carries test code.
	ErrNonCodeCellTest = errors.New("test code on non-code cell")
	// ErrEmptyCellWithTest is returned when an empty code cell carries a runnable test.
	ErrEmptyCellWithTest = errors.New("test supplied for empty cell")
)

// GenerationError identifies the cell that made generation fail.
// Cell is a 1-based code-cell index, except for ErrNonCodeCellTest where it
// is the 0-based position of the cell in the notebook.
type GenerationError struct {
	Cell    int
	Kind    error
	Message string
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel so callers can use errors.Is.
func (e *GenerationError) Unwrap() error {
	return e.Kind
}

func contradictionError(cell int) error {
	return &GenerationError{
		Cell: cell,
		Kind: ErrMarkerContradiction,
		Message: fmt.Sprintf("Test for code cell %d contains both %s and %s; use %s to inject the cell, or %s to deliberately suppress cell execution, not both",
			cell, InjectionToken, SkipToken, InjectionToken, SkipToken),
	}
}

func notInjectedError(cell int) error {
	return &GenerationError{
		Cell: cell,
		Kind: ErrCellNotInjected,
		Message: fmt.Sprintf("Test for code cell %d: cell code not injected into test; either add %s to the test, or add %s to deliberately suppress cell execution",
			cell, InjectionToken, SkipToken),
	}
}

func nonCodeCellError(notebookIndex int) error {
	return &GenerationError{
		Cell:    notebookIndex,
		Kind:    ErrNonCodeCellTest,
		Message: fmt.Sprintf("Cell %d is not a code cell, but metadata contains test code!", notebookIndex),
	}
}

func emptyCellError(cell int) error {
	return &GenerationError{
		Cell:    cell,
		Kind:    ErrEmptyCellWithTest,
		Message: fmt.Sprintf("Code cell %d is empty, but its test contains code; remove the test or add code to the cell", cell),
	}
}
