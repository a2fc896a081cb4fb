// Package notebook reads nbformat v4 documents into the typed notebook model.
//
// The on-disk format is loosely typed (sources may be a string or a list of
// lines, metadata is arbitrary JSON). Everything is normalized and validated
// here so the rest of the program only sees models.Notebook values.
package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harrison/nbcelltests/internal/models"
)

// MinFormat is the oldest nbformat major version accepted.
const MinFormat = 4

type rawNotebook struct {
	Cells    []rawCell `json:"cells"`
	Metadata struct {
		Kernelspec map[string]any `json:"kernelspec"`
		Celltests  map[string]any `json:"celltests"`
	} `json:"metadata"`
	NBFormat int `json:"nbformat"`
}

type rawCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Metadata struct {
		Tests json.RawMessage `json:"tests"`
	} `json:"metadata"`
}

// Read parses the notebook file at path.
func Read(path string) (*models.Notebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	defer f.Close()

	nb, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	nb.Path = path
	return nb, nil
}

// Parse decodes an nbformat v4 document from r.
func Parse(r io.Reader) (*models.Notebook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}

	var raw rawNotebook
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse notebook JSON: %w", err)
	}
	if raw.NBFormat < MinFormat {
		return nil, fmt.Errorf("unsupported nbformat %d (need >= %d)", raw.NBFormat, MinFormat)
	}

	nb := &models.Notebook{
		Kernelspec: stringValues(raw.Metadata.Kernelspec),
		Rules:      models.RuleSet(raw.Metadata.Celltests),
	}
	if nb.Rules == nil {
		nb.Rules = models.RuleSet{}
	}

	for i, rc := range raw.Cells {
		cell, err := convertCell(rc)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		nb.Cells = append(nb.Cells, cell)
	}

	return nb, nil
}

func convertCell(rc rawCell) (models.Cell, error) {
	var cell models.Cell

	switch t := models.CellType(rc.CellType); t {
	case models.CellCode, models.CellMarkdown, models.CellRaw:
		cell.Type = t
	default:
		return cell, fmt.Errorf("unknown cell_type %q", rc.CellType)
	}

	lines, err := multiline(rc.Source)
	if err != nil {
		return cell, fmt.Errorf("source: %w", err)
	}
	cell.Source = strings.Join(lines, "")

	if len(rc.Metadata.Tests) > 0 && !bytes.Equal(bytes.TrimSpace(rc.Metadata.Tests), []byte("null")) {
		tests, err := multiline(rc.Metadata.Tests)
		if err != nil {
			return cell, fmt.Errorf("metadata.tests: %w", err)
		}
		cell.Tests = tests
		cell.HasTests = true
	}

	return cell, nil
}

// multiline decodes nbformat's "multiline string": either one string or a
// list of strings. A single string is split into lines keeping line endings.
func multiline(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("must be a string or a list of strings")
	}
	return SplitLinesKeepEnds(s), nil
}

// SplitLinesKeepEnds splits s after every '\n', keeping the terminators.
func SplitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

func stringValues(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
