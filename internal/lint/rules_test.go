package lint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
)

func TestLinesPerCell(t *testing.T) {
	msgs := LinesPerCell([]int{3, 12}, 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Checking lines in cell (max=10; actual=3)", msgs[0].Message)
	assert.Equal(t, 1, msgs[0].Cell)
	assert.True(t, msgs[0].Passed)
	assert.Equal(t, 2, msgs[1].Cell)
	assert.False(t, msgs[1].Passed)

	assert.Empty(t, LinesPerCell([]int{100}, -1))
}

func TestNotebookLimits(t *testing.T) {
	tests := []struct {
		name   string
		msgs   []models.LintMessage
		want   string
		passed bool
	}{
		{"cells", CellsPerNotebook(5, 5), "Checking cells per notebook (max=5; actual=5)", true},
		{"functions", FunctionDefinitions(2, 1), "Checking functions per notebook (max=1; actual=2)", false},
		{"classes", ClassDefinitions(0, 0), "Checking classes per notebook (max=0; actual=0)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.msgs, 1)
			assert.Equal(t, tt.want, tt.msgs[0].Message)
			assert.Equal(t, tt.passed, tt.msgs[0].Passed)
			assert.Equal(t, -1, tt.msgs[0].Cell)
		})
	}

	assert.Empty(t, CellsPerNotebook(5, -1))
	assert.Empty(t, FunctionDefinitions(5, -3))
	assert.Empty(t, ClassDefinitions(5, -1))
}

func TestKernelspec(t *testing.T) {
	actual := map[string]string{"name": "python3", "language": "python"}

	msgs := Kernelspec(actual, map[string]string{"name": "python3"})
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Passed)
	assert.Equal(t, "Checking kernelspec (min. required={'name': 'python3'}; actual={'language': 'python', 'name': 'python3'})", msgs[0].Message)

	msgs = Kernelspec(actual, map[string]string{"name": "ir"})
	assert.False(t, msgs[0].Passed)

	msgs = Kernelspec(nil, map[string]string{})
	assert.True(t, msgs[0].Passed)
	assert.Equal(t, "Checking kernelspec (min. required={}; actual={})", msgs[0].Message)
}

func TestMagics(t *testing.T) {
	magics := []string{"matplotlib", "time"}

	msgs, err := Magics(magics, []string{"time", "matplotlib"}, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Checking magics", msgs[0].Message)
	assert.True(t, msgs[0].Passed)

	msgs, err = Magics(magics, []string{"time"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Checking magics (missing from allowlist: {'matplotlib'})", msgs[0].Message)
	assert.False(t, msgs[0].Passed)

	msgs, err = Magics(magics, nil, []string{"time", "bash"})
	require.NoError(t, err)
	assert.Equal(t, "Checking magics (present in denylist: {'time'})", msgs[0].Message)
	assert.False(t, msgs[0].Passed)

	msgs, err = Magics(magics, []string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Checking magics (missing from allowlist: {'matplotlib', 'time'})", msgs[0].Message)

	msgs, err = Magics(magics, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMagics_AllowAndDeny(t *testing.T) {
	_, err := Magics(nil, []string{"a"}, []string{"b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllowDenyBoth))
	assert.Contains(t, err.Error(), "Must specify either a allowlist or a denylist, not both.")
}
