package celltest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
)

// stubKernel stands in for jupyter_client. Every fragment is executed in one
// shared namespace and appended as a JSON line to fragments.log.
const stubKernel = `import json
import os
import queue

LOG = os.path.join(os.path.dirname(os.path.dirname(os.path.abspath(__file__))), "fragments.log")


class _Manager:
    def shutdown_kernel(self, now=False):
        pass


class _Client:
    def __init__(self):
        self.namespace = {}
        self.shell = queue.Queue()
        self.iopub = queue.Queue()
        self.count = 0

    def execute(self, code, allow_stdin=False):
        self.count += 1
        parent = {"msg_id": "msg-%d" % self.count}
        with open(LOG, "a") as f:
            f.write(json.dumps(code) + "\n")
        try:
            exec(code, self.namespace)
        except Exception as e:
            self.iopub.put({"parent_header": parent, "msg_type": "error",
                            "content": {"traceback": [repr(e)]}})
        self.iopub.put({"parent_header": parent, "msg_type": "status",
                        "content": {"execution_state": "idle"}})
        self.shell.put({"parent_header": parent})
        return parent["msg_id"]

    def get_shell_msg(self, timeout=None):
        return self.shell.get(timeout=timeout)

    def get_iopub_msg(self, timeout=None):
        return self.iopub.get(timeout=timeout)

    def stop_channels(self):
        pass


def start_new_kernel(kernel_name="python3"):
    return _Manager(), _Client()
`

// runModule renders mod into a temp dir next to the stub kernel, runs it
// with python3 -m unittest and returns the fragments the kernel received.
func runModule(t *testing.T, mod *models.GeneratedModule) ([]string, string, error) {
	t.Helper()
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skipf("python3 not installed: %v", err)
	}

	dir := t.TempDir()
	pkg := filepath.Join(dir, "jupyter_client")
	require.NoError(t, os.Mkdir(pkg, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "__init__.py"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "manager.py"), []byte(stubKernel), 0644))

	src, err := RenderModule(mod, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_demo_test.py"), src, 0644))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, python, "-m", "unittest", "-v", "_demo_test")
	cmd.Dir = dir
	out, runErr := cmd.CombinedOutput()

	var fragments []string
	f, err := os.Open(filepath.Join(dir, "fragments.log"))
	if err != nil {
		require.ErrorIs(t, err, os.ErrNotExist, "output:\n%s", out)
		return nil, string(out), runErr
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var code string
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &code))
		fragments = append(fragments, code)
	}
	require.NoError(t, scanner.Err())
	return fragments, string(out), runErr
}

func TestRuntime_RunsCellsInCodeCellOrder(t *testing.T) {
	mod := &models.GeneratedModule{KernelName: "python3"}
	sources := map[int]string{
		1:  "x = 1",
		2:  "# no %cell\nassert 'late' not in globals()",
		10: "late = 1",
		11: "assert late == 1",
	}
	var want []string
	for i := 1; i <= 11; i++ {
		u := models.CellTestUnit{CodeIndex: i, Disposition: models.RunCellOnly, Source: sources[i]}
		switch i {
		case 1, 11:
			u.Disposition = models.RunTestWithInjection
		case 2:
			u.Disposition = models.RunTestNoInjection
		}
		if u.Source == "" {
			u.Source = fmt.Sprintf("c%d = %d", i, i)
		}
		mod.Units = append(mod.Units, u)
		want = append(want, u.Source)
	}

	fragments, out, err := runModule(t, mod)
	require.NoError(t, err, "output:\n%s", out)
	assert.Contains(t, out, "OK")

	// Each fragment runs exactly once, in code-cell order.
	assert.Equal(t, want, fragments)
}

func TestRuntime_FailedCellIsNotMarkedRun(t *testing.T) {
	mod := &models.GeneratedModule{
		KernelName: "python3",
		Units: []models.CellTestUnit{
			{CodeIndex: 1, Disposition: models.RunTestWithInjection, Source: "x = 1"},
			{CodeIndex: 2, Disposition: models.RunCellOnly, Source: "raise ValueError('boom')"},
			{CodeIndex: 3, Disposition: models.RunTestWithInjection, Source: "y = x"},
		},
	}

	fragments, out, err := runModule(t, mod)
	require.Error(t, err)
	assert.Contains(t, out, "FAILED (errors=2)")
	assert.Contains(t, out, "Running cell+test for code cell 2; execution caused an exception")

	// Cell 3 retries the failed cell 2 and stops there without running itself.
	assert.Equal(t, []string{"x = 1", "raise ValueError('boom')", "raise ValueError('boom')"}, fragments)
}

func TestRuntime_SkippedCellsNeverReachKernel(t *testing.T) {
	mod := &models.GeneratedModule{
		KernelName: "python3",
		Units: []models.CellTestUnit{
			{CodeIndex: 1, Disposition: models.SkipEmptyCell},
			{CodeIndex: 2, Disposition: models.RunCellOnly, Source: "z = 2"},
			{CodeIndex: 3, Disposition: models.SkipNoTestSupplied},
		},
		Coverage: &models.CoverageCheck{Measured: 50, Required: 25},
	}

	fragments, out, err := runModule(t, mod)
	require.NoError(t, err, "output:\n%s", out)
	assert.Contains(t, out, "skipped 'empty code cell'")
	assert.Contains(t, out, "skipped 'no test supplied'")
	assert.Equal(t, []string{"z = 2"}, fragments)
}
