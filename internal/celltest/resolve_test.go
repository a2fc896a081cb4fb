package celltest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

// fact builds the CellFact the extractor would derive for one code cell.
func fact(index int, src string, tests ...string) models.CellFact {
	m := ScanMarkers(tests)
	return models.CellFact{
		CodeIndex: index,
		Source:    src,
		Empty:     pysyntax.IsEmpty(pysyntax.TransformIPython(src)),
		TestLines: tests,
		Inject:    m.Inject,
		Skip:      m.Skip,
	}
}

func TestInjectionSpan(t *testing.T) {
	tests := []struct {
		line      string
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{"%cell", 0, 5, true},
		{"    %cell", 4, 9, true},
		{"\t%cell # tail\n", 1, 6, true},
		{"%cellar", 0, 5, true},
		{"# no %cell", 0, 0, false},
		{"# %cell", 0, 0, false},
		{"x = 1  # %cell", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		start, end, ok := InjectionSpan(tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %q", tt.line)
		assert.Equal(t, tt.wantStart, start, "line %q", tt.line)
		assert.Equal(t, tt.wantEnd, end, "line %q", tt.line)
	}
}

func TestScanMarkers(t *testing.T) {
	assert.Equal(t, Markers{}, ScanMarkers(nil))
	assert.Equal(t, Markers{Inject: true}, ScanMarkers([]string{"x = 2\n", "  %cell\n"}))
	assert.Equal(t, Markers{Skip: true}, ScanMarkers([]string{"   # no %cell\n", "assert True"}))
	assert.Equal(t, Markers{Inject: true, Skip: true}, ScanMarkers([]string{"# no %cell\n%cell"}))
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		test string
		cell string
		want string
	}{
		{
			name: "indented injection with trailing comment",
			test: "if cond:\n    %cell # tail\n",
			cell: "a=1\nb=2",
			want: "if cond:\n    a=1\n    b=2 # tail\n",
		},
		{
			name: "bare token",
			test: "%cell",
			cell: "x = 1\ny = 2\n",
			want: "x = 1\ny = 2",
		},
		{
			name: "token repeated",
			test: "%cell\n%cell\nassert x == 2\n",
			cell: "x = x + 1",
			want: "x = x + 1\nx = x + 1\nassert x == 2\n",
		},
		{
			name: "empty cell keeps suffix",
			test: "pre\n  %cell # t\npost",
			cell: "",
			want: "pre\n   # t\npost",
		},
		{
			name: "lines without token untouched",
			test: "# no %cell\nassert True\n",
			cell: "x = 1",
			want: "# no %cell\nassert True\n",
		},
		{
			name: "crlf cell source",
			test: "  %cell\n",
			cell: "a\r\nb\r\n",
			want: "  a\n  b\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.test, tt.cell))
		})
	}
}

func TestSubstitute_PreservesLineCountAndPrefix(t *testing.T) {
	cell := "a = 1\nb = 2\nc = 3\nd = 4"
	for _, prefix := range []string{"", "    ", "\t\t"} {
		got := Substitute(prefix+InjectionToken, cell)
		lines := strings.Split(got, "\n")
		require.Len(t, lines, 4, "prefix %q", prefix)
		for i, line := range lines {
			assert.Equal(t, prefix+strings.Split(cell, "\n")[i], line)
		}
	}
}

func TestResolve_Dispositions(t *testing.T) {
	tests := []struct {
		name       string
		fact       models.CellFact
		autoRun    bool
		wantDisp   models.Disposition
		wantSource string
	}{
		{
			name:     "empty cell without test",
			fact:     fact(1, ""),
			autoRun:  true,
			wantDisp: models.SkipEmptyCell,
		},
		{
			name:     "comment-only cell with bare injection",
			fact:     fact(1, "# nothing here\n", "%cell"),
			autoRun:  true,
			wantDisp: models.SkipEmptyCell,
		},
		{
			name:       "no test metadata runs the cell",
			fact:       fact(3, "z = 3"),
			autoRun:    true,
			wantDisp:   models.RunCellOnly,
			wantSource: "z = 3",
		},
		{
			name:     "whitespace test without auto-run",
			fact:     fact(1, "x = 1", "  \n", "\t"),
			autoRun:  false,
			wantDisp: models.SkipNoTestSupplied,
		},
		{
			name:     "comment-only test",
			fact:     fact(1, "x = 1", "# check later\n"),
			autoRun:  true,
			wantDisp: models.SkipNoTestSupplied,
		},
		{
			name:       "injection",
			fact:       fact(2, "y = x + 1", "%cell\n", "assert y == 2"),
			autoRun:    true,
			wantDisp:   models.RunTestWithInjection,
			wantSource: "y = x + 1\nassert y == 2",
		},
		{
			name:       "deliberately not injected",
			fact:       fact(4, "slow()", "# no %cell\n", "assert True"),
			autoRun:    true,
			wantDisp:   models.RunTestNoInjection,
			wantSource: "# no %cell\nassert True",
		},
		{
			name:       "syntax error is not empty",
			fact:       fact(1, "def (:"),
			autoRun:    true,
			wantDisp:   models.RunCellOnly,
			wantSource: "def (:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(pysyntax.NewAnalyzer(), tt.autoRun)
			unit, err := r.Resolve(tt.fact)
			require.NoError(t, err)
			assert.Equal(t, tt.fact.CodeIndex, unit.CodeIndex)
			assert.Equal(t, tt.wantDisp, unit.Disposition)
			assert.Equal(t, tt.wantSource, unit.Source)
		})
	}
}

func TestResolve_Contradiction(t *testing.T) {
	r := NewResolver(pysyntax.NewAnalyzer(), true)

	orders := [][]string{
		{"%cell\n", "# no %cell\n", "assert x"},
		{"# no %cell\n", "assert x\n", "%cell"},
	}
	for _, tests := range orders {
		_, err := r.Resolve(fact(5, "x = 1", tests...))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMarkerContradiction))
		assert.Contains(t, err.Error(), "code cell 5")
		assert.Contains(t, err.Error(), InjectionToken)
		assert.Contains(t, err.Error(), SkipToken)

		var genErr *GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, 5, genErr.Cell)
	}

	// Empty cells do not escape the check.
	_, err := r.Resolve(fact(1, "", "%cell\n", "# no %cell"))
	assert.ErrorIs(t, err, ErrMarkerContradiction)
}

func TestResolve_NotInjected(t *testing.T) {
	r := NewResolver(pysyntax.NewAnalyzer(), true)

	_, err := r.Resolve(fact(7, "x = 1", "assert x == 1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCellNotInjected)
	assert.Contains(t, err.Error(), "code cell 7")
	assert.Contains(t, err.Error(), "cell code not injected into test")
	assert.Contains(t, err.Error(), InjectionToken)
	assert.Contains(t, err.Error(), SkipToken)
}

func TestResolve_EmptyCellWithTest(t *testing.T) {
	r := NewResolver(pysyntax.NewAnalyzer(), true)

	_, err := r.Resolve(fact(2, "   \n", "# no %cell\n", "assert True"))
	assert.ErrorIs(t, err, ErrEmptyCellWithTest)

	_, err = r.Resolve(fact(2, "", "%cell\n", "assert True"))
	assert.ErrorIs(t, err, ErrEmptyCellWithTest)
}
