// Package celltest turns a notebook into a generated cell-test module.
//
// It holds the three stages of generation:
//
//	Extractor  derives per-cell facts and notebook metadata from the document
//	Resolver   decides each code cell's disposition and the text it executes
//	Assemble   collects the units, in code-cell order, with the coverage check
//
// RenderModule turns the assembled module into Python source for an external
// test runner. Generation is all-or-nothing: any *GenerationError aborts it.
package celltest

import "strings"

const (
	// InjectionToken marks the point in a test where the cell source is substituted.
	InjectionToken = "%cell"
	// SkipToken marks a test that deliberately does not run the cell source.
	SkipToken = "# no %cell"
)

// InjectionSpan returns the byte span of the injection token in line when
// the line, with leading whitespace removed, starts with it.
func InjectionSpan(line string) (start, end int, ok bool) {
	trimmed := strings.TrimLeft(line, " \t\f\v")
	if !strings.HasPrefix(trimmed, InjectionToken) {
		return 0, 0, false
	}
	start = len(line) - len(trimmed)
	return start, start + len(InjectionToken), true
}

// Markers records which directives appear in a test annotation.
type Markers struct {
	Inject bool // some line starts with InjectionToken
	Skip   bool // some line starts with SkipToken
}

// ScanMarkers scans every test line after stripping leading whitespace.
func ScanMarkers(lines []string) Markers {
	var m Markers
	for _, line := range lines {
		for _, l := range strings.Split(line, "\n") {
			trimmed := strings.TrimSpace(l)
			switch {
			case strings.HasPrefix(trimmed, InjectionToken):
				m.Inject = true
			case strings.HasPrefix(trimmed, SkipToken):
				m.Skip = true
			}
		}
	}
	return m
}
