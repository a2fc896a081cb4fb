package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/nbcelltests/internal/celltest"
	"github.com/harrison/nbcelltests/internal/config"
	"github.com/harrison/nbcelltests/internal/filelock"
	"github.com/harrison/nbcelltests/internal/history"
	"github.com/harrison/nbcelltests/internal/kernel"
	"github.com/harrison/nbcelltests/internal/logger"
	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/notebook"
	"github.com/harrison/nbcelltests/internal/report"
	"github.com/harrison/nbcelltests/internal/runner"
)

// newStarter creates the kernel starter for in-process runs.
var newStarter = func(cfg *config.Config) (kernel.Starter, error) {
	client, err := kernel.NewClient(cfg.ServerURL, cfg.Token, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewTestCommand creates the test command
func NewTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <notebook.ipynb>...",
		Short: "Run notebooks cell by cell with their tests",
		Long: `Test runs each notebook's cell tests in a fresh kernel.

By default cells are executed in-process against a Jupyter server
(--server-url, --token). Each notebook gets its own kernel; a test that
needs an earlier cell runs that cell first.

With --external the generated module is written to disk and run by the
configured test tool (python -m pytest -v by default), and its JUnit
report is read back.

The command fails if any test of any notebook fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTest,
	}

	cmd.Flags().Bool("external", false, "Run the generated module with the external test tool")
	cmd.Flags().String("test-executable", "", "Test tool command for --external (default: python -m pytest -v)")
	cmd.Flags().Bool("keep-module", false, "Keep the generated module after an --external run")
	cmd.Flags().String("html", "", "Write an HTML report to this file")
	cmd.Flags().String("server-url", "", "Jupyter server URL (default: http://localhost:8888)")
	cmd.Flags().String("token", "", "Jupyter server token (default: $JUPYTER_TOKEN)")
	cmd.Flags().String("kernel", "", "Kernel name (default: the notebook's kernelspec, then python3)")
	cmd.Flags().Duration("timeout", 0, "Time to wait for each cell (default: 60s)")

	return cmd
}

type testResult struct {
	path string
	msgs []models.TestMessage
	err  error
}

func runTest(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv(cmd, true)
	if err != nil {
		return err
	}
	defer env.Close()

	gen, err := celltest.NewGenerator(env.cfg.GeneratorOptions())
	if err != nil {
		return err
	}

	external, _ := cmd.Flags().GetBool("external")
	keepModule, _ := cmd.Flags().GetBool("keep-module")

	var starter kernel.Starter
	if !external {
		starter, err = newStarter(env.cfg)
		if err != nil {
			return err
		}
	}

	paths, err := env.notebooks(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	results := make([]testResult, len(paths))
	err = env.forEachNotebook(ctx, paths, func(ctx context.Context, i int, path string) error {
		r := testResult{path: path}
		env.log.LogNotebookStart(path, "test")
		start := time.Now()

		if external {
			r.msgs, r.err = testExternal(ctx, env, gen, path, keepModule)
		} else {
			r.msgs, r.err = testInProcess(ctx, env, gen, starter, path)
		}

		if r.err != nil {
			env.log.LogError(fmt.Sprintf("%s: %v", path, r.err))
		}
		if r.msgs != nil {
			summary := models.SummarizeTests(path, r.msgs, time.Since(start))
			env.log.LogSummary(summary)
			summary.Notebook = notebookKey(path)
			env.record(context.WithoutCancel(ctx), history.TestRun(env.runID, summary, r.msgs))
		}
		results[i] = r
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	out := report.NewTextWriter(cmd.OutOrStdout())
	failed := 0
	for _, r := range results {
		if len(r.msgs) > 0 {
			if err := out.WriteTests(r.path, r.msgs); err != nil {
				return err
			}
		}
		if r.err != nil {
			failed++
			if len(r.msgs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  ERROR: %v\n", r.err)
			continue
		}
		if !models.SummarizeTests(r.path, r.msgs, 0).OK() {
			failed++
		}
	}

	if htmlPath, _ := cmd.Flags().GetString("html"); htmlPath != "" {
		sections := make([]report.Section, 0, len(results))
		for _, r := range results {
			sections = append(sections, report.Section{Notebook: r.path, Tests: r.msgs})
		}
		if err := writeHTMLReport(ctx, htmlPath, "nbcelltests test report", sections); err != nil {
			return err
		}
		env.log.LogInfo("Wrote HTML report " + htmlPath)
	}

	if failed > 0 {
		return fmt.Errorf("tests failed for %d of %d notebook(s)", failed, len(paths))
	}
	return nil
}

func assemble(gen *celltest.Generator, env *runEnv, path string) (*models.GeneratedModule, error) {
	nb, err := notebook.Read(path)
	if err != nil {
		return nil, err
	}
	return gen.Assemble(nb, env.cfg.RulesFor(nb))
}

// testInProcess runs the notebook's units through a kernel session.
func testInProcess(ctx context.Context, env *runEnv, gen *celltest.Generator, starter kernel.Starter, path string) ([]models.TestMessage, error) {
	mod, err := assemble(gen, env, path)
	if err != nil {
		return nil, err
	}
	suite := runner.NewSuite(mod, starter, logger.ForNotebook(env.log, path))
	return suite.RunAll(ctx)
}

// testExternal writes the notebook's module beside it and runs it with the
// configured test tool.
func testExternal(ctx context.Context, env *runEnv, gen *celltest.Generator, path string, keep bool) ([]models.TestMessage, error) {
	mod, err := assemble(gen, env, path)
	if err != nil {
		return nil, err
	}
	data, err := celltest.RenderModule(mod, env.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	modulePath, err := filepath.Abs(celltest.DefaultModulePath(path))
	if err != nil {
		return nil, err
	}
	if err := filelock.WriteArtifact(ctx, modulePath, data); err != nil {
		return nil, fmt.Errorf("failed to write test module: %w", err)
	}
	if !keep {
		defer func() {
			if err := os.Remove(modulePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				env.log.LogWarn(fmt.Sprintf("failed to remove %s: %v", modulePath, err))
			}
		}()
	}

	ext := runner.NewExternal(
		runner.NewShellCommandRunner(filepath.Dir(modulePath)),
		env.cfg.TestExecutable,
		logger.ForNotebook(env.log, path),
	)
	return ext.Run(ctx, modulePath)
}
