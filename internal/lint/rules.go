package lint

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

// ErrAllowDenyBoth is returned when both magics lists are configured.
var ErrAllowDenyBoth = errors.New("Must specify either a allowlist or a denylist, not both.")

// LinesPerCell checks each non-empty code cell against max counted lines.
// A negative max disables the check.
func LinesPerCell(cellLines []int, max int) []models.LintMessage {
	if max < 0 {
		return nil
	}
	msgs := make([]models.LintMessage, 0, len(cellLines))
	for i, n := range cellLines {
		msgs = append(msgs, models.LintMessage{
			Cell:    i + 1,
			Message: fmt.Sprintf("Checking lines in cell (max=%d; actual=%d)", max, n),
			Type:    models.LintLinesPerCell,
			Passed:  n <= max,
		})
	}
	return msgs
}

// CellsPerNotebook checks the number of non-empty code cells.
func CellsPerNotebook(count, max int) []models.LintMessage {
	return notebookLimit("Checking cells per notebook", models.LintCellsPerNotebook, count, max)
}

// FunctionDefinitions checks the number of function definitions.
func FunctionDefinitions(count, max int) []models.LintMessage {
	return notebookLimit("Checking functions per notebook", models.LintFunctionDefinitions, count, max)
}

// ClassDefinitions checks the number of class definitions.
func ClassDefinitions(count, max int) []models.LintMessage {
	return notebookLimit("Checking classes per notebook", models.LintClassDefinitions, count, max)
}

func notebookLimit(label string, typ models.LintType, actual, max int) []models.LintMessage {
	if max < 0 {
		return nil
	}
	return []models.LintMessage{{
		Cell:    -1,
		Message: fmt.Sprintf("%s (max=%d; actual=%d)", label, max, actual),
		Type:    typ,
		Passed:  actual <= max,
	}}
}

// Kernelspec checks that actual contains every key/value pair of required.
func Kernelspec(actual, required map[string]string) []models.LintMessage {
	passed := true
	for k, v := range required {
		if got, ok := actual[k]; !ok || got != v {
			passed = false
			break
		}
	}
	return []models.LintMessage{{
		Cell:    -1,
		Message: fmt.Sprintf("Checking kernelspec (min. required=%s; actual=%s)", pyDict(required), pyDict(actual)),
		Type:    models.LintKernelspec,
		Passed:  passed,
	}}
}

// Magics checks the notebook's magics against an allowlist or a denylist.
// A nil list is unset; setting both is ErrAllowDenyBoth.
func Magics(magics, allowlist, denylist []string) ([]models.LintMessage, error) {
	if allowlist == nil && denylist == nil {
		return nil, nil
	}
	if allowlist != nil && denylist != nil {
		return nil, fmt.Errorf("%w denylist: %s; allowlist: %s", ErrAllowDenyBoth, pyList(denylist), pyList(allowlist))
	}

	var bad []string
	var label string
	if allowlist != nil {
		label = "missing from allowlist:"
		bad = difference(magics, allowlist)
	} else {
		label = "present in denylist:"
		bad = intersection(magics, denylist)
	}

	msg := "Checking magics"
	if len(bad) > 0 {
		msg += fmt.Sprintf(" (%s %s)", label, pySet(bad))
	}
	return []models.LintMessage{{
		Cell:    -1,
		Message: msg,
		Type:    models.LintMagics,
		Passed:  len(bad) == 0,
	}}, nil
}

func difference(a, b []string) []string {
	drop := make(map[string]bool, len(b))
	for _, s := range b {
		drop[s] = true
	}
	keep := make(map[string]bool)
	for _, s := range a {
		if !drop[s] {
			keep[s] = true
		}
	}
	return models.SortedKeys(keep)
}

func intersection(a, b []string) []string {
	want := make(map[string]bool, len(b))
	for _, s := range b {
		want[s] = true
	}
	keep := make(map[string]bool)
	for _, s := range a {
		if want[s] {
			keep[s] = true
		}
	}
	return models.SortedKeys(keep)
}

// pyDict formats m as a Python dict literal with sorted keys.
func pyDict(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, pysyntax.PyRepr(k)+": "+pysyntax.PyRepr(m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func pySet(items []string) string {
	return "{" + joinRepr(items) + "}"
}

func pyList(items []string) string {
	return "[" + joinRepr(items) + "]"
}

func joinRepr(items []string) string {
	parts := make([]string, 0, len(items))
	for _, s := range items {
		parts = append(parts, pysyntax.PyRepr(s))
	}
	return strings.Join(parts, ", ")
}
