package celltest

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/pysyntax"
)

//go:embed templates/module.py.tmpl
var templatesFS embed.FS

var moduleTemplates = template.Must(
	template.New("module.py.tmpl").Funcs(template.FuncMap{
		"pyrepr":  pysyntax.PyRepr,
		"pyset":   pySet,
		"pyfloat": models.FormatPercent,
	}).ParseFS(templatesFS, "templates/module.py.tmpl"),
)

// DefaultTimeout bounds each wait for a kernel reply in the rendered runtime.
const DefaultTimeout = 60 * time.Second

// moduleData is the template view of a GeneratedModule.
type moduleData struct {
	*models.GeneratedModule
	TimeoutSeconds string
	Injected       []int
	NotInjected    []int
	Tests          []unitData
}

// unitData is the template view of one unit.
type unitData struct {
	models.CellTestUnit
	TestName string
}

// RenderModule renders mod as a self-contained Python unittest module.
// timeout bounds each wait for a kernel reply; zero means DefaultTimeout.
func RenderModule(mod *models.GeneratedModule, timeout time.Duration) ([]byte, error) {
	data := newModuleData(mod, timeout)
	var buf bytes.Buffer
	if err := moduleTemplates.ExecuteTemplate(&buf, "module", data); err != nil {
		return nil, fmt.Errorf("failed to render test module: %w", err)
	}
	return buf.Bytes(), nil
}

func newModuleData(mod *models.GeneratedModule, timeout time.Duration) moduleData {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	data := moduleData{
		GeneratedModule: mod,
		TimeoutSeconds:  strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64),
	}
	for _, u := range mod.Units {
		data.Tests = append(data.Tests, unitData{CellTestUnit: u, TestName: mod.UnitName(u)})
		switch {
		case u.Disposition.Injects():
			data.Injected = append(data.Injected, u.CodeIndex)
		case u.Disposition == models.RunTestNoInjection:
			data.NotInjected = append(data.NotInjected, u.CodeIndex)
		}
	}
	return data
}

func renderUnit(u models.CellTestUnit, width int) (string, error) {
	return execute("unit", unitData{CellTestUnit: u, TestName: u.Name(width)})
}

func renderCoverage(c models.CoverageCheck) (string, error) {
	return execute("coverage", &c)
}

func renderRuntime(timeout time.Duration) (string, error) {
	return execute("runtime", newModuleData(&models.GeneratedModule{}, timeout))
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := moduleTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func pySet(ids []int) string {
	if len(ids) == 0 {
		return "set()"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DefaultModulePath returns where the test module for a notebook is written
// when no output path is given: "_<name>_test.py" next to the notebook.
func DefaultModulePath(notebookPath string) string {
	dir := filepath.Dir(notebookPath)
	base := strings.TrimSuffix(filepath.Base(notebookPath), filepath.Ext(notebookPath))
	return filepath.Join(dir, "_"+base+"_test.py")
}
