package pysyntax

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"empty string", "", true},
		{"space", " ", true},
		{"tab", "\t", true},
		{"newline", "\n", true},
		{"crlf", "\r\n", true},
		{"comment only", "#pass", true},
		{"several comments", "# one\n\n  # two\n", true},
		{"import and call", "import blah\nblah.do_something()", false},
		{"line magic", "get_ipython().run_line_magic('matplotlib', 'inline')", false},
		{"pass", "pass", false},
		{"syntax error", "def (:", false},
		{"comment then statement", "# setup\nx = 1\n", false},
	}

	a := NewAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.IsEmpty(tt.src))
		})
	}
}

func TestIsEmpty_IPythonSyntaxIsNotEmpty(t *testing.T) {
	assert.False(t, IsEmpty(TransformIPython("%matplotlib inline")))
}

func TestAnalyze_Counts(t *testing.T) {
	script := `
import os

def top():
    def inner():
        pass
    return inner

async def fetch():
    pass

class Model:
    def method(self):
        pass

    class Meta:
        pass

class Other(Model):
    pass
`
	counts, err := NewAnalyzer().Analyze(script)
	require.NoError(t, err)

	assert.Equal(t, 3, counts.Functions, "top, inner and fetch; methods excluded")
	assert.Equal(t, 2, counts.Classes, "nested Meta excluded")
	assert.Empty(t, counts.Magics)
}

func TestAnalyze_Magics(t *testing.T) {
	script := TransformIPython("%matplotlib inline\n!ls -la\nx = %time compute()\n") + "\n" +
		TransformIPython("%%bash\necho hi\n") + "\n" +
		"get_ipython().magic('load_ext autoreload')\n" +
		"other().run_line_magic('nope', '')\n" +
		"get_ipython().run_line_magic(name, '')\n"

	counts, err := NewAnalyzer().Analyze(script)
	require.NoError(t, err)

	assert.Equal(t, []string{"bash", "load_ext", "matplotlib", "time"}, sortedMagics(counts))
}

func TestAnalyze_ConcurrentUse(t *testing.T) {
	a := NewAnalyzer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counts, err := a.Analyze("def f():\n    pass\n")
			if err != nil {
				t.Errorf("Analyze failed: %v", err)
				return
			}
			if counts.Functions != 1 {
				t.Errorf("expected 1 function, got %d", counts.Functions)
			}
		}()
	}
	wg.Wait()
}

func TestIsCountedLine(t *testing.T) {
	assert.True(t, IsCountedLine("x = 1"))
	assert.True(t, IsCountedLine("    return x  # done"))
	assert.False(t, IsCountedLine(""))
	assert.False(t, IsCountedLine("   \t"))
	assert.False(t, IsCountedLine("  # comment"))
}

func sortedMagics(c Counts) []string {
	var names []string
	for _, n := range []string{"bash", "load_ext", "matplotlib", "nope", "time"} {
		if c.Magics[n] {
			names = append(names, n)
		}
	}
	return names
}
