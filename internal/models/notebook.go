package models

import (
	"sort"
	"strings"
)

// CellType identifies the kind of a notebook cell
type CellType string

const (
	// CellCode is an executable code cell
	CellCode CellType = "code"
	// CellMarkdown is a markdown (prose) cell
	CellMarkdown CellType = "markdown"
	// CellRaw is a raw, unrendered cell
	CellRaw CellType = "raw"
)

// Cell is a single notebook cell as read from an nbformat v4 document.
// Source and Tests are normalized at read time so consumers never deal with
// the list-or-string ambiguity of the on-disk format.
type Cell struct {
	Type   CellType // Declared cell type
	Source string   // Full cell source text
	Tests  []string // Lines of the "tests" metadata field (nil when absent)

	// HasTests reports whether the metadata carried a "tests" field at all,
	// which distinguishes an absent annotation from an empty one.
	HasTests bool
}

// IsCode returns true if the cell is a code cell
func (c Cell) IsCode() bool {
	return c.Type == CellCode
}

// TestSource joins the cell's test annotation lines into one text block.
// Lines that do not end with a newline get one, except the last line,
// so ["%cell", "x"] and ["%cell\n", "x"] join to the same text.
func (c Cell) TestSource() string {
	return JoinLines(c.Tests)
}

// JoinLines concatenates annotation lines, supplying a missing line break
// between consecutive lines.
func JoinLines(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		sb.WriteString(line)
		if i < len(lines)-1 && !strings.HasSuffix(line, "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Notebook is the structured notebook document consumed by the extractor.
// It is never mutated after it has been read.
type Notebook struct {
	Path       string            // Path the notebook was read from (empty for in-memory documents)
	Cells      []Cell            // Cells in document order
	Kernelspec map[string]string // metadata.kernelspec (string values only)
	Rules      RuleSet           // metadata.celltests, the notebook's own rule settings
}

// CodeCells returns the code cells of the notebook in document order.
func (nb *Notebook) CodeCells() []Cell {
	var cells []Cell
	for _, c := range nb.Cells {
		if c.IsCode() {
			cells = append(cells, c)
		}
	}
	return cells
}

// KernelName returns the kernel named by the notebook's kernelspec,
// or fallback when the notebook does not name one.
func (nb *Notebook) KernelName(fallback string) string {
	if name := nb.Kernelspec["name"]; name != "" {
		return name
	}
	return fallback
}

// SortedKeys returns the keys of a string set in ascending order.
func SortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
