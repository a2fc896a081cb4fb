package notebook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
)

const sampleNotebook = `{
 "cells": [
  {"cell_type": "markdown", "metadata": {}, "source": ["# Title\n", "Some prose"]},
  {"cell_type": "code", "metadata": {"tests": ["%cell\n", "assert x == 1"]}, "source": ["x = 1\n"], "outputs": [], "execution_count": null},
  {"cell_type": "code", "metadata": {}, "source": "import os\nprint(os.name)", "outputs": [], "execution_count": null},
  {"cell_type": "code", "metadata": {"tests": []}, "source": [], "outputs": [], "execution_count": null},
  {"cell_type": "raw", "metadata": {}, "source": "raw text"}
 ],
 "metadata": {
  "kernelspec": {"name": "python3", "display_name": "Python 3", "language": "python"},
  "celltests": {"lines_per_cell": 10, "magics_denylist": ["bash"]}
 },
 "nbformat": 4,
 "nbformat_minor": 4
}`

func TestParse(t *testing.T) {
	nb, err := Parse(strings.NewReader(sampleNotebook))
	require.NoError(t, err)

	require.Len(t, nb.Cells, 5)
	assert.Equal(t, models.CellMarkdown, nb.Cells[0].Type)
	assert.Equal(t, "# Title\nSome prose", nb.Cells[0].Source)

	code := nb.CodeCells()
	require.Len(t, code, 3)

	assert.Equal(t, "x = 1\n", code[0].Source)
	assert.True(t, code[0].HasTests)
	assert.Equal(t, "%cell\nassert x == 1", code[0].TestSource())

	assert.Equal(t, "import os\nprint(os.name)", code[1].Source)
	assert.False(t, code[1].HasTests)
	assert.Nil(t, code[1].Tests)

	assert.Equal(t, "", code[2].Source)
	assert.True(t, code[2].HasTests)
	assert.Empty(t, code[2].Tests)

	assert.Equal(t, "python3", nb.KernelName("fallback"))
	assert.Equal(t, "Python 3", nb.Kernelspec["display_name"])

	n, err := nb.Rules.Int(models.RuleLinesPerCell)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	deny, err := nb.Rules.StringList(models.RuleMagicsDenylist)
	require.NoError(t, err)
	assert.Equal(t, []string{"bash"}, deny)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"invalid json", `{`, "failed to parse notebook JSON"},
		{"old format", `{"cells": [], "metadata": {}, "nbformat": 3}`, "unsupported nbformat 3"},
		{"unknown cell type", `{"cells": [{"cell_type": "widget", "source": ""}], "metadata": {}, "nbformat": 4}`, `cell 0: unknown cell_type "widget"`},
		{"bad source", `{"cells": [{"cell_type": "code", "source": 5}], "metadata": {}, "nbformat": 4}`, "cell 0: source"},
		{"bad tests", `{"cells": [{"cell_type": "code", "source": "", "metadata": {"tests": {"a": 1}}}], "metadata": {}, "nbformat": 4}`, "metadata.tests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_NoKernelspecOrRules(t *testing.T) {
	nb, err := Parse(strings.NewReader(`{"cells": [], "metadata": {}, "nbformat": 4}`))
	require.NoError(t, err)
	assert.NotNil(t, nb.Rules)
	assert.Equal(t, "python3", nb.KernelName("python3"))
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.ipynb")
	require.NoError(t, os.WriteFile(path, []byte(sampleNotebook), 0644))

	nb, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, path, nb.Path)

	_, err = Read(filepath.Join(t.TempDir(), "missing.ipynb"))
	assert.Error(t, err)
}

func TestSplitLinesKeepEnds(t *testing.T) {
	assert.Nil(t, SplitLinesKeepEnds(""))
	assert.Equal(t, []string{"a\n", "b"}, SplitLinesKeepEnds("a\nb"))
	assert.Equal(t, []string{"a\n", "\n"}, SplitLinesKeepEnds("a\n\n"))
}

func TestScript(t *testing.T) {
	nb, err := Parse(strings.NewReader(sampleNotebook))
	require.NoError(t, err)

	script := Script(nb)
	assert.True(t, strings.HasPrefix(script, "#!/usr/bin/env python\n"))
	assert.Contains(t, script, "# # Title\n# Some prose\n")
	assert.Contains(t, script, "# In[ ]:\n\n\nx = 1\n")
	assert.Equal(t, 3, strings.Count(script, "# In[ ]:"))
	assert.NotContains(t, script, "raw text")
}

func TestCellScript(t *testing.T) {
	cell := models.Cell{Type: models.CellCode, Source: "%matplotlib inline"}
	assert.Equal(t, "get_ipython().run_line_magic('matplotlib', 'inline')", CellScript(cell))
}
