// Package pysyntax performs the shallow Python syntax-tree analysis needed to
// lint notebooks and classify cells. It uses the tree-sitter Python grammar;
// no semantic analysis is attempted.
package pysyntax

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// magic call attribute names on get_ipython()
var (
	cellAndLineMagics = map[string]bool{"run_line_magic": true, "run_cell_magic": true}
	legacyMagic       = "magic"
)

// Counts is the result of one walk over a script.
type Counts struct {
	Functions int             // function definitions outside class bodies
	Classes   int             // class definitions outside class bodies
	Magics    map[string]bool // magic names seen in get_ipython() calls
}

// Analyzer parses Python source with tree-sitter.
// A single Analyzer is safe for concurrent use; parses are serialized.
type Analyzer struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewAnalyzer creates an Analyzer for the Python grammar.
func NewAnalyzer() *Analyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &Analyzer{parser: parser}
}

func (a *Analyzer) parse(src string) (*sitter.Tree, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parser.ParseCtx(context.Background(), nil, []byte(src))
}

// IsEmpty reports whether src parses to zero statements.
// Comments and whitespace parse to nothing. Source with a syntax error is
// never empty: the error is left for the kernel to report at execution time.
func (a *Analyzer) IsEmpty(src string) bool {
	if OnlyWhitespace(src) {
		return true
	}

	tree, err := a.parse(src)
	if err != nil {
		return false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return false
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if root.NamedChild(i).Type() != "comment" {
			return false
		}
	}
	return true
}

// Analyze walks script once, counting definitions and recording magics.
// Methods, and anything else nested in a class body, are not counted.
// Functions nested in other functions are.
func (a *Analyzer) Analyze(script string) (Counts, error) {
	counts := Counts{Magics: make(map[string]bool)}

	src := []byte(script)
	tree, err := a.parse(script)
	if err != nil {
		return counts, err
	}
	defer tree.Close()

	w := &walker{src: src, counts: &counts}
	w.walk(tree.RootNode(), false)
	return counts, nil
}

// walker holds the accumulators for a single Analyze call.
type walker struct {
	src    []byte
	counts *Counts
}

func (w *walker) walk(n *sitter.Node, inClass bool) {
	switch n.Type() {
	case "function_definition":
		if !inClass {
			w.counts.Functions++
		}
	case "class_definition":
		if !inClass {
			w.counts.Classes++
		}
		inClass = true
	case "call":
		w.recordMagic(n)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i), inClass)
	}
}

// recordMagic recognizes get_ipython().run_line_magic(name, ...),
// get_ipython().run_cell_magic(name, ...) and get_ipython().magic("name args").
func (w *walker) recordMagic(call *sitter.Node) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return
	}
	attr := fn.ChildByFieldName("attribute")
	obj := fn.ChildByFieldName("object")
	if attr == nil || obj == nil || obj.Type() != "call" {
		return
	}
	method := attr.Content(w.src)
	if !cellAndLineMagics[method] && method != legacyMagic {
		return
	}
	callee := obj.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" || callee.Content(w.src) != "get_ipython" {
		return
	}

	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	first := args.NamedChild(0)
	if first.Type() != "string" {
		return
	}
	name, ok := decodeStringLiteral(first.Content(w.src))
	if !ok {
		return
	}
	if method == legacyMagic {
		fields := strings.Fields(name)
		if len(fields) == 0 {
			return
		}
		name = fields[0]
	}
	if name != "" {
		w.counts.Magics[name] = true
	}
}

// OnlyWhitespace reports whether s contains nothing but whitespace.
func OnlyWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsCountedLine reports whether a source line counts toward line limits:
// blank lines and comment-only lines do not.
func IsCountedLine(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "#")
}

var defaultAnalyzer = NewAnalyzer()

// IsEmpty reports whether src parses to zero statements, using a shared Analyzer.
func IsEmpty(src string) bool {
	return defaultAnalyzer.IsEmpty(src)
}
