package celltest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

func sampleNotebook() *models.Notebook {
	return &models.Notebook{
		Kernelspec: map[string]string{"name": "python3", "display_name": "Python 3"},
		Cells: []models.Cell{
			markdownCell("# Analysis"),
			codeCell("import os\n\n# noqa lines_per_cell\nx = 1\n", "%cell"),
			codeCell("# nothing yet"),
			codeCell("%matplotlib inline\ndef f():\n    pass\n"),
			codeCell("class A:\n    def m(self):\n        pass\n", "# no %cell\n", "assert A"),
		},
	}
}

func newExtractor(t *testing.T, noqa string) *Extractor {
	t.Helper()
	a := pysyntax.NewAnalyzer()
	e, err := NewExtractor(a, NewResolver(a, true), noqa)
	require.NoError(t, err)
	return e
}

func TestExtract_Facts(t *testing.T) {
	x, err := newExtractor(t, "").Extract(sampleNotebook(), nil)
	require.NoError(t, err)

	require.Len(t, x.Facts, 4)
	for i, f := range x.Facts {
		assert.Equal(t, i+1, f.CodeIndex)
		assert.Equal(t, i+1, f.NotebookIndex)
	}

	assert.False(t, x.Facts[0].Empty)
	assert.Equal(t, 2, x.Facts[0].Lines)
	assert.True(t, x.Facts[0].Inject)

	assert.True(t, x.Facts[1].Empty)
	assert.Equal(t, 0, x.Facts[1].Lines)

	assert.False(t, x.Facts[2].Empty, "magics are statements")
	assert.Equal(t, 3, x.Facts[2].Lines)

	assert.True(t, x.Facts[3].Skip)
	assert.False(t, x.Facts[3].Inject)

	assert.Len(t, x.NonEmptyFacts(), 3)
}

func TestExtract_Metadata(t *testing.T) {
	x, err := newExtractor(t, "").Extract(sampleNotebook(), nil)
	require.NoError(t, err)

	m := x.Metadata
	assert.Equal(t, 3, m.CellCount)
	assert.Equal(t, 8, m.Lines)
	assert.Equal(t, []int{2, 3, 3}, m.CellLines)
	assert.Equal(t, []bool{true, true, false}, m.CellTested)
	assert.Equal(t, 2, m.TestCount)
	assert.InDelta(t, 200.0/3, m.Coverage(), 1e-9)
	assert.Equal(t, 1, m.Functions)
	assert.Equal(t, 1, m.Classes)
	assert.Equal(t, []string{"matplotlib"}, m.Magics)
	assert.Equal(t, "python3", m.Kernelspec["name"])
	assert.Empty(t, m.Noqa)
}

func TestExtract_Noqa(t *testing.T) {
	x, err := newExtractor(t, `#\s*noqa\s+(\w+)`).Extract(sampleNotebook(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lines_per_cell"}, x.Metadata.Noqa)
}

func TestExtract_NoqaAnchoredAtLineStart(t *testing.T) {
	nb := &models.Notebook{Cells: []models.Cell{codeCell("x = 1  # noqa cells_per_notebook\n")}}

	x, err := newExtractor(t, `#\s*noqa\s+(\w+)`).Extract(nb, nil)
	require.NoError(t, err)
	assert.Empty(t, x.Metadata.Noqa)
}

func TestExtract_OverridesWin(t *testing.T) {
	overrides := models.RuleSet{
		models.KeyFunctions:  7,
		models.KeyMagics:     []any{"time"},
		models.KeyKernelspec: map[string]any{"name": "other"},
		"lines_per_cell":     10,
	}

	x, err := newExtractor(t, "").Extract(sampleNotebook(), overrides)
	require.NoError(t, err)
	assert.Equal(t, 7, x.Metadata.Functions)
	assert.Equal(t, []string{"time"}, x.Metadata.Magics)
	assert.Equal(t, "other", x.Metadata.Kernelspec["name"])
	assert.Equal(t, 1, x.Metadata.Classes)
}

func TestExtract_BadOverride(t *testing.T) {
	_, err := newExtractor(t, "").Extract(sampleNotebook(), models.RuleSet{models.KeyFunctions: "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "override functions")
}

func TestExtract_InstancesDoNotShareCounts(t *testing.T) {
	e := newExtractor(t, "")
	first, err := e.Extract(sampleNotebook(), nil)
	require.NoError(t, err)
	second, err := e.Extract(sampleNotebook(), nil)
	require.NoError(t, err)
	assert.Equal(t, first.Metadata.Functions, second.Metadata.Functions)
	assert.Equal(t, first.Metadata.Classes, second.Metadata.Classes)
}
