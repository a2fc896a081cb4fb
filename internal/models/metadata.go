package models

import "fmt"

// Metadata is the aggregate, notebook-level view produced by the extractor.
type Metadata struct {
	Lines      int               // Counted lines across non-empty code cells
	CellLines  []int             // Counted lines per non-empty code cell
	CellCount  int               // Number of non-empty code cells
	TestCount  int               // Non-empty code cells whose test runs the cell source
	CellTested []bool            // Per non-empty code cell: does its test run the cell source
	Functions  int               // Function definitions, excluding methods
	Classes    int               // Class definitions, excluding nested classes
	Magics     []string          // Distinct magic names, sorted
	Kernelspec map[string]string // Notebook kernelspec
	Noqa       []string          // Rule names disabled via noqa comments, sorted
}

// Coverage returns the percentage of non-empty code cells whose test runs
// the cell source. Zero non-empty cells yields 0.
func (m Metadata) Coverage() float64 {
	if m.CellCount == 0 {
		return 0
	}
	return 100 * float64(m.TestCount) / float64(m.CellCount)
}

// Keys that an explicit override may replace on the extracted metadata.
const (
	KeyLines      = "lines"
	KeyCellLines  = "cell_lines"
	KeyCellCount  = "cell_count"
	KeyTestCount  = "test_count"
	KeyFunctions  = "functions"
	KeyClasses    = "classes"
	KeyMagics     = "magics"
	KeyKernelspec = "kernelspec"
)

// ApplyOverrides replaces extracted values with explicitly configured ones.
// Explicit configuration always dominates derived metadata.
func (m *Metadata) ApplyOverrides(rules RuleSet) error {
	for _, key := range rules.Names() {
		var err error
		switch key {
		case KeyLines:
			m.Lines, err = rules.Int(key)
		case KeyCellCount:
			m.CellCount, err = rules.Int(key)
		case KeyTestCount:
			m.TestCount, err = rules.Int(key)
		case KeyFunctions:
			m.Functions, err = rules.Int(key)
		case KeyClasses:
			m.Classes, err = rules.Int(key)
		case KeyMagics:
			m.Magics, err = rules.StringList(key)
		case KeyKernelspec:
			m.Kernelspec, err = rules.StringMap(key)
		case KeyCellLines:
			m.CellLines, err = intList(rules[key])
		}
		if err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
	}
	return nil
}

func intList(v any) ([]int, error) {
	switch l := v.(type) {
	case []int:
		return l, nil
	case []any:
		out := make([]int, 0, len(l))
		for i := range l {
			n, err := RuleSet{"item": l[i]}.Int("item")
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of integers, got %T", v)
	}
}
