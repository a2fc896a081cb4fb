package notebook

import (
	"strings"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

// Script flattens the notebook's code cells into one Python script, with
// IPython syntax rewritten to plain calls. Markdown cells become comments and
// raw cells are dropped, matching what a notebook-to-script export produces.
func Script(nb *models.Notebook) string {
	var sb strings.Builder
	sb.WriteString("#!/usr/bin/env python\n# coding: utf-8\n")

	for _, cell := range nb.Cells {
		switch cell.Type {
		case models.CellCode:
			sb.WriteString("\n# In[ ]:\n\n\n")
			sb.WriteString(pysyntax.TransformIPython(cell.Source))
			sb.WriteString("\n\n")
		case models.CellMarkdown:
			sb.WriteByte('\n')
			for _, line := range strings.Split(strings.TrimRight(cell.Source, "\n"), "\n") {
				sb.WriteString("# " + line + "\n")
			}
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}

// CellScript returns a single cell's source with IPython syntax rewritten.
func CellScript(cell models.Cell) string {
	return pysyntax.TransformIPython(cell.Source)
}
