package models

import (
	"fmt"
	"strconv"
)

// Disposition is the resolved classification of a code cell's test unit.
type Disposition int

const (
	// SkipEmptyCell marks a code cell whose source has no statements.
	SkipEmptyCell Disposition = iota
	// SkipNoTestSupplied marks a cell whose test annotation has no statements.
	SkipNoTestSupplied
	// RunCellOnly runs the cell source verbatim (whitespace-only test annotation).
	RunCellOnly
	// RunTestWithInjection runs the test with the cell source substituted at each %cell.
	RunTestWithInjection
	// RunTestNoInjection runs the test as written; the cell source is deliberately not run.
	RunTestNoInjection
)

// String returns the string representation of the Disposition
func (d Disposition) String() string {
	switch d {
	case SkipEmptyCell:
		return "skip_empty_cell"
	case SkipNoTestSupplied:
		return "skip_no_test_supplied"
	case RunCellOnly:
		return "run_cell_only"
	case RunTestWithInjection:
		return "run_test_with_injection"
	case RunTestNoInjection:
		return "run_test_no_injection"
	default:
		return "unknown"
	}
}

// IsSkip returns true for the dispositions that never reach the session.
func (d Disposition) IsSkip() bool {
	return d == SkipEmptyCell || d == SkipNoTestSupplied
}

// Injects returns true if running the unit executes the cell's own source.
func (d Disposition) Injects() bool {
	return d == RunCellOnly || d == RunTestWithInjection
}

// SkipReason returns the reason reported for skipped units, or "" for run kinds.
func (d Disposition) SkipReason() string {
	switch d {
	case SkipEmptyCell:
		return "empty code cell"
	case SkipNoTestSupplied:
		return "no test supplied"
	default:
		return ""
	}
}

// CellFact holds the structural facts derived for one code cell.
type CellFact struct {
	CodeIndex     int      // 1-based index counting code cells only
	NotebookIndex int      // 0-based position among all notebook cells
	Source        string   // Cell source text
	Lines         int      // Non-blank, non-comment source lines
	Empty         bool     // Source parses to zero statements
	TestLines     []string // Raw test annotation lines (possibly empty)
	Inject        bool     // A test line starts with the injection token
	Skip          bool     // A test line starts with the skip token
}

// TestSource returns the joined test annotation text for the cell.
func (f CellFact) TestSource() string {
	return JoinLines(f.TestLines)
}

// CellTestUnit is the resolved, immutable test unit for one code cell.
type CellTestUnit struct {
	CodeIndex   int
	Disposition Disposition
	Source      string // Text to execute; empty for skip kinds
}

// Name returns the test operation name for the unit. The index is
// zero-padded to width digits so that names sort in code-cell order.
func (u CellTestUnit) Name(width int) string {
	return fmt.Sprintf("test_code_cell_%0*d", width, u.CodeIndex)
}

// CoverageCheck is the optional coverage assertion attached to a module.
type CoverageCheck struct {
	Measured float64 // Measured coverage percentage
	Required float64 // Minimum required percentage
}

// Passed returns true if measured coverage meets the minimum.
func (c CoverageCheck) Passed() bool {
	return c.Measured >= c.Required
}

// FailureMessage returns the assertion message used when coverage falls short.
// Measured coverage is always shown with a decimal point (25 -> "25.0").
func (c CoverageCheck) FailureMessage() string {
	return fmt.Sprintf("Actual cell coverage %s < minimum required of %s",
		FormatPercent(c.Measured), strconv.FormatFloat(c.Required, 'f', -1, 64))
}

// FormatPercent renders a float the way the generated Python module prints it:
// integral values keep a trailing ".0".
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'n' || r == 'I' {
			return s
		}
	}
	return s + ".0"
}

// GeneratedModule is the complete test program assembled for one notebook.
type GeneratedModule struct {
	NotebookPath string
	KernelName   string
	Units        []CellTestUnit // Ordered by CodeIndex, one per code cell
	Coverage     *CoverageCheck // nil unless a cell_coverage rule is configured
}

// Unit returns the unit for a 1-based code-cell index.
func (m *GeneratedModule) Unit(codeIndex int) (CellTestUnit, bool) {
	if codeIndex < 1 || codeIndex > len(m.Units) {
		return CellTestUnit{}, false
	}
	return m.Units[codeIndex-1], true
}

// NameWidth returns the digit count of the largest code-cell index.
func (m *GeneratedModule) NameWidth() int {
	return len(strconv.Itoa(len(m.Units)))
}

// UnitName returns the test operation name of u within the module.
func (m *GeneratedModule) UnitName(u CellTestUnit) string {
	return u.Name(m.NameWidth())
}

// InjectedCount returns how many units execute their cell's own source.
func (m *GeneratedModule) InjectedCount() int {
	n := 0
	for _, u := range m.Units {
		if u.Disposition.Injects() {
			n++
		}
	}
	return n
}
