package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/nbcelltests/internal/celltest"
	"github.com/harrison/nbcelltests/internal/filelock"
	"github.com/harrison/nbcelltests/internal/history"
	"github.com/harrison/nbcelltests/internal/lint"
	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/notebook"
	"github.com/harrison/nbcelltests/internal/report"
	"github.com/harrison/nbcelltests/internal/runner"
)

// NewLintCommand creates the lint command
func NewLintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <notebook.ipynb>...",
		Short: "Check notebooks against structural rules",
		Long: `Lint checks each notebook against the configured rules.

Rules come from the notebook's celltests metadata, the config file and
rule flags, in increasing precedence. Lines matching noqa_regex disable
the rule they name. With --run-linter the notebook's code is also
flattened into a Python script and checked by the external linter.

The command fails if any check of any notebook fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLint,
	}

	cmd.Flags().String("sarif", "", "Write lint results as SARIF to this file")
	cmd.Flags().String("html", "", "Write an HTML report to this file")
	cmd.Flags().Bool("run-linter", false, "Also run the external Python linter")
	cmd.Flags().String("lint-executable", "", "External Python linter command (default: flake8 --ignore=W391)")

	return cmd
}

type lintResult struct {
	path string
	msgs []models.LintMessage
	err  error
}

func runLint(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv(cmd, true)
	if err != nil {
		return err
	}
	defer env.Close()

	gen, err := celltest.NewGenerator(env.cfg.GeneratorOptions())
	if err != nil {
		return err
	}
	runLinter, _ := cmd.Flags().GetBool("run-linter")
	linter := lint.New(gen, runner.NewShellCommandRunner(""), lint.Options{
		Executable:      env.cfg.LintExecutable,
		RunPythonLinter: runLinter,
	})

	paths, err := env.notebooks(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	results := make([]lintResult, len(paths))
	err = env.forEachNotebook(ctx, paths, func(ctx context.Context, i int, path string) error {
		results[i] = lintNotebook(ctx, env, linter, path)
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	out := report.NewTextWriter(cmd.OutOrStdout())
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  ERROR: %v\n", r.path, r.err)
			continue
		}
		if err := out.WriteLint(r.path, r.msgs); err != nil {
			return err
		}
		if !models.SummarizeLint(r.path, r.msgs, 0).OK() {
			failed++
		}
	}

	if sarifPath, _ := cmd.Flags().GetString("sarif"); sarifPath != "" {
		builder := report.NewSARIFBuilder("nbcelltests", Version)
		for _, r := range results {
			builder.AddLint(r.path, r.msgs)
		}
		err := filelock.WriteArtifactFunc(ctx, sarifPath, func(w io.Writer) error {
			_, err := builder.WriteTo(w)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to write SARIF report: %w", err)
		}
		env.log.LogInfo("Wrote SARIF report " + sarifPath)
	}

	if htmlPath, _ := cmd.Flags().GetString("html"); htmlPath != "" {
		sections := make([]report.Section, 0, len(results))
		for _, r := range results {
			sections = append(sections, report.Section{Notebook: r.path, Lint: r.msgs})
		}
		if err := writeHTMLReport(ctx, htmlPath, "nbcelltests lint report", sections); err != nil {
			return err
		}
		env.log.LogInfo("Wrote HTML report " + htmlPath)
	}

	if failed > 0 {
		return fmt.Errorf("lint failed for %d of %d notebook(s)", failed, len(paths))
	}
	return nil
}

func lintNotebook(ctx context.Context, env *runEnv, linter *lint.Linter, path string) lintResult {
	res := lintResult{path: path}
	env.log.LogNotebookStart(path, "lint")
	start := time.Now()

	nb, err := notebook.Read(path)
	if err != nil {
		res.err = err
		env.log.LogError(err.Error())
		return res
	}

	res.msgs, res.err = linter.Lint(ctx, nb, env.cfg.RulesFor(nb))
	if res.err != nil {
		env.log.LogError(fmt.Sprintf("%s: %v", path, res.err))
		return res
	}
	for _, m := range res.msgs {
		env.log.LogLintResult(path, m)
	}

	summary := models.SummarizeLint(path, res.msgs, time.Since(start))
	env.log.LogSummary(summary)
	summary.Notebook = notebookKey(path)
	env.record(ctx, history.LintRun(env.runID, summary, res.msgs))
	return res
}

func writeHTMLReport(ctx context.Context, path, title string, sections []report.Section) error {
	page, err := report.HTML(title, report.Markdown(title, sections))
	if err != nil {
		return err
	}
	if err := filelock.WriteArtifact(ctx, path, page); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}
