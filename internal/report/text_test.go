package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
)

func TestTextWriter_Lint(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)

	err := w.WriteLint("a.ipynb", []models.LintMessage{
		{Cell: 1, Message: "Checking lines in cell (max=10; actual=3)", Passed: true},
		{Cell: -1, Message: "Checking magics", Passed: false},
	})
	require.NoError(t, err)

	want := "a.ipynb\n" +
		"  PASSED: Checking lines in cell (max=10; actual=3) (Cell 1)\n" +
		"  FAILED: Checking magics (Notebook)\n" +
		"  1 passed, 1 failed\n"
	assert.Equal(t, want, buf.String())
}

func TestTextWriter_Tests(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)

	err := w.WriteTests("a.ipynb", []models.TestMessage{
		{Cell: 1, Message: "Testing cell", Outcome: models.OutcomePassed},
		{Cell: 2, Message: "Testing cell", Outcome: models.OutcomeFailed, Detail: "line one\nline two"},
		{Cell: 3, Message: "Testing cell", Outcome: models.OutcomeSkipped, Detail: "empty code cell"},
	})
	require.NoError(t, err)

	want := "a.ipynb\n" +
		"  PASSED: Testing cell (Cell 1)\n" +
		"  FAILED: Testing cell (Cell 2)\n" +
		"      line one\n" +
		"      line two\n" +
		"  SKIPPED: Testing cell (Cell 3) [empty code cell]\n" +
		"  1 passed, 1 failed, 1 skipped\n"
	assert.Equal(t, want, buf.String())
}
