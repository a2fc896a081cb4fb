package celltest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/notebook"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

// Extraction is everything derived from one notebook.
type Extraction struct {
	Facts    []models.CellFact // One per code cell, in code-cell order
	Metadata models.Metadata
}

// NonEmptyFacts returns the facts for code cells that have statements.
func (x *Extraction) NonEmptyFacts() []models.CellFact {
	var out []models.CellFact
	for _, f := range x.Facts {
		if !f.Empty {
			out = append(out, f)
		}
	}
	return out
}

// Extractor derives cell facts and notebook metadata from a document.
type Extractor struct {
	analyzer *pysyntax.Analyzer
	resolver *Resolver
	noqa     *regexp.Regexp
}

// NewExtractor creates an Extractor. noqaRegex may be empty; otherwise it
// must contain exactly one capture group naming the suppressed rule.
func NewExtractor(analyzer *pysyntax.Analyzer, resolver *Resolver, noqaRegex string) (*Extractor, error) {
	e := &Extractor{analyzer: analyzer, resolver: resolver}
	if noqaRegex != "" {
		re, err := CompileNoqa(noqaRegex)
		if err != nil {
			return nil, err
		}
		e.noqa = re
	}
	return e, nil
}

// CompileNoqa compiles a noqa pattern, anchored at the start of a line.
func CompileNoqa(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid noqa_regex: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("noqa_regex must contain one capture group (specifying the rule)")
	}
	return re, nil
}

// Extract walks the notebook once for per-cell facts and once, as a flattened
// script, for definition counts and magics. Entries in overrides whose name
// matches a metadata key replace the derived value.
func (e *Extractor) Extract(nb *models.Notebook, overrides models.RuleSet) (*Extraction, error) {
	x := &Extraction{}
	meta := &x.Metadata
	noqa := make(map[string]bool)

	codeIndex := 0
	for i, cell := range nb.Cells {
		if !cell.IsCode() {
			continue
		}
		codeIndex++

		markers := ScanMarkers(cell.Tests)
		fact := models.CellFact{
			CodeIndex:     codeIndex,
			NotebookIndex: i,
			Source:        cell.Source,
			Empty:         e.analyzer.IsEmpty(notebook.CellScript(cell)),
			TestLines:     cell.Tests,
			Inject:        markers.Inject,
			Skip:          markers.Skip,
		}

		if !fact.Empty {
			for _, line := range strings.Split(cell.Source, "\n") {
				if pysyntax.IsCountedLine(line) {
					fact.Lines++
				}
				if e.noqa != nil {
					if m := e.noqa.FindStringSubmatch(line); m != nil {
						noqa[m[1]] = true
					}
				}
			}

			tested := false
			if unit, err := e.resolver.Resolve(fact); err == nil {
				tested = unit.Disposition.Injects()
			}

			meta.CellCount++
			meta.Lines += fact.Lines
			meta.CellLines = append(meta.CellLines, fact.Lines)
			meta.CellTested = append(meta.CellTested, tested)
			if tested {
				meta.TestCount++
			}
		}

		x.Facts = append(x.Facts, fact)
	}

	counts, err := e.analyzer.Analyze(notebook.Script(nb))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze notebook script: %w", err)
	}
	meta.Functions = counts.Functions
	meta.Classes = counts.Classes
	meta.Magics = models.SortedKeys(counts.Magics)
	meta.Kernelspec = nb.Kernelspec
	meta.Noqa = models.SortedKeys(noqa)

	if err := meta.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	return x, nil
}
