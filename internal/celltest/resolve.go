package celltest

import (
	"strings"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

// placeholder stands in for the cell source when deciding whether a test
// contains anything besides the injection point.
const placeholder = "pass"

// Resolver decides the disposition of each code cell's test.
type Resolver struct {
	analyzer *pysyntax.Analyzer

	// autoRun makes a whitespace-only test run the cell verbatim.
	// When false such tests are skipped as "no test supplied".
	autoRun bool
}

// NewResolver creates a Resolver using analyzer for syntax-tree checks.
func NewResolver(analyzer *pysyntax.Analyzer, autoRunEmptyTests bool) *Resolver {
	return &Resolver{analyzer: analyzer, autoRun: autoRunEmptyTests}
}

func (r *Resolver) isEmpty(src string) bool {
	return r.analyzer.IsEmpty(pysyntax.TransformIPython(src))
}

// Resolve produces the test unit for one code cell.
//
// A test carrying both markers is rejected before anything else. Then, in
// order: an empty cell is skipped; a whitespace-only test runs the cell
// (or is skipped when auto-run is off); a test with no statements besides
// the injection point is skipped; a test with neither marker is rejected;
// a skip-marked test runs as written; otherwise the cell is substituted.
func (r *Resolver) Resolve(f models.CellFact) (models.CellTestUnit, error) {
	unit := models.CellTestUnit{CodeIndex: f.CodeIndex}
	test := f.TestSource()

	if f.Inject && f.Skip {
		return unit, contradictionError(f.CodeIndex)
	}

	if f.Empty {
		if !pysyntax.OnlyWhitespace(test) && !r.isEmpty(Substitute(test, f.Source)) {
			return unit, emptyCellError(f.CodeIndex)
		}
		unit.Disposition = models.SkipEmptyCell
		return unit, nil
	}

	if pysyntax.OnlyWhitespace(test) {
		if r.autoRun {
			unit.Disposition = models.RunCellOnly
			unit.Source = f.Source
		} else {
			unit.Disposition = models.SkipNoTestSupplied
		}
		return unit, nil
	}

	if r.isEmpty(Substitute(test, placeholder)) {
		unit.Disposition = models.SkipNoTestSupplied
		return unit, nil
	}

	switch {
	case !f.Inject && !f.Skip:
		return unit, notInjectedError(f.CodeIndex)
	case f.Skip:
		unit.Disposition = models.RunTestNoInjection
		unit.Source = test
	default:
		unit.Disposition = models.RunTestWithInjection
		unit.Source = Substitute(test, f.Source)
	}
	return unit, nil
}

// Substitute replaces every test line that starts with the injection token
// by the cell source. Each source line gets the text preceding the token;
// the text following the token is appended to the last source line.
// Lines without the token are copied unchanged.
func Substitute(test, cellSource string) string {
	cellLines := splitLines(cellSource)

	var sb strings.Builder
	for _, line := range splitLinesKeepEnds(test) {
		start, end, ok := InjectionSpan(line)
		if !ok {
			sb.WriteString(line)
			continue
		}
		prefix, suffix := line[:start], line[end:]
		if len(cellLines) == 0 {
			sb.WriteString(prefix + suffix)
			continue
		}
		for i, cl := range cellLines {
			sb.WriteString(prefix)
			sb.WriteString(cl)
			if i == len(cellLines)-1 {
				sb.WriteString(suffix)
			} else {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// splitLines splits text into lines without terminators. A trailing line
// break does not produce a final empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func splitLinesKeepEnds(s string) []string {
	return strings.SplitAfter(s, "\n")
}
