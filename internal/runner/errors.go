package runner

import (
	"errors"
	"fmt"

	"github.com/harrison/nbcelltests/internal/kernel"
)

// ErrNotSetUp is returned when a test runs before Setup or after Teardown.
var ErrNotSetUp = errors.New("suite has no running session")

// CellError reports the code cell whose fragment failed in the session.
type CellError struct {
	Cell        int    // 1-based code-cell index
	Description string // e.g. "Running cell+test for code cell 3"
	Err         error  // Underlying session error
}

// NewCellError creates a CellError for the fragment of code cell cell.
func NewCellError(cell int, err error) *CellError {
	return &CellError{
		Cell:        cell,
		Description: fmt.Sprintf("Running cell+test for code cell %d", cell),
		Err:         err,
	}
}

// Error implements the error interface for CellError.
func (e *CellError) Error() string {
	var execErr *kernel.ExecutionError
	switch {
	case errors.Is(e.Err, kernel.ErrTimeout):
		return e.Description + "; Kernel timed out waiting for message!"
	case errors.As(e.Err, &execErr):
		tb := execErr.TracebackText()
		if tb == "" {
			tb = execErr.Error()
		}
		return e.Description + "; execution caused an exception\n" + tb
	default:
		return fmt.Sprintf("%s; %v", e.Description, e.Err)
	}
}

// Unwrap returns the session error.
func (e *CellError) Unwrap() error {
	return e.Err
}
