package celltest

import (
	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

// DefaultKernelName is used when neither the caller nor the notebook names a kernel.
const DefaultKernelName = "python3"

// Options configures a Generator.
type Options struct {
	KernelName        string // Overrides the notebook's kernelspec name when set
	NoqaRegex         string // Optional; exactly one capture group
	AutoRunEmptyTests bool   // Whitespace-only tests run the cell verbatim
}

// Generator assembles GeneratedModules from notebooks.
type Generator struct {
	opts      Options
	extractor *Extractor
	resolver  *Resolver
}

// NewGenerator creates a Generator with its own syntax analyzer.
func NewGenerator(opts Options) (*Generator, error) {
	analyzer := pysyntax.NewAnalyzer()
	resolver := NewResolver(analyzer, opts.AutoRunEmptyTests)
	extractor, err := NewExtractor(analyzer, resolver, opts.NoqaRegex)
	if err != nil {
		return nil, err
	}
	return &Generator{opts: opts, extractor: extractor, resolver: resolver}, nil
}

// Extract exposes the generator's extractor for linting.
func (g *Generator) Extract(nb *models.Notebook, rules models.RuleSet) (*Extraction, error) {
	return g.extractor.Extract(nb, rules)
}

// Assemble builds the module for nb. rules is the effective rule set
// (notebook metadata merged with configured overrides). Any GenerationError
// aborts assembly; no partial module is returned.
func (g *Generator) Assemble(nb *models.Notebook, rules models.RuleSet) (*models.GeneratedModule, error) {
	for i, cell := range nb.Cells {
		if !cell.IsCode() && !pysyntax.OnlyWhitespace(cell.TestSource()) {
			return nil, nonCodeCellError(i)
		}
	}

	x, err := g.extractor.Extract(nb, rules)
	if err != nil {
		return nil, err
	}

	kernel := g.opts.KernelName
	if kernel == "" {
		kernel = nb.KernelName(DefaultKernelName)
	}

	mod := &models.GeneratedModule{
		NotebookPath: nb.Path,
		KernelName:   kernel,
		Units:        make([]models.CellTestUnit, 0, len(x.Facts)),
	}
	for _, f := range x.Facts {
		unit, err := g.resolver.Resolve(f)
		if err != nil {
			return nil, err
		}
		mod.Units = append(mod.Units, unit)
	}

	if rules.Has(models.RuleCellCoverage) {
		required, err := rules.Float(models.RuleCellCoverage)
		if err != nil {
			return nil, err
		}
		mod.Coverage = &models.CoverageCheck{
			Measured: x.Metadata.Coverage(),
			Required: required,
		}
	}

	return mod, nil
}
