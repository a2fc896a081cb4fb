package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for nbcelltests
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nbcelltests",
		Short: "Cell-by-cell testing and linting for Jupyter notebooks",
		Long: `nbcelltests checks Jupyter notebooks in CI.

Each code cell may carry a test in its metadata. The test decides where the
cell's own source runs (the %cell marker) and what is asserted around it.
nbcelltests assembles those tests into a module that replays the notebook
in a single kernel session, one cell at a time, and reports every cell.

It also lints notebooks against structural rules: lines per cell, cells per
notebook, function and class counts, kernelspec requirements and IPython
magics allow/deny lists.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	addCommonFlags(cmd)

	cmd.AddCommand(NewLintCommand())
	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewTestCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// ruleFlags maps rule flags to the rule names they set.
var ruleFlags = []struct {
	flag  string
	rule  string
	usage string
}{
	{"lines-per-cell", "lines_per_cell", "Maximum lines in a code cell (negative disables)"},
	{"cells-per-notebook", "cells_per_notebook", "Maximum non-empty code cells (negative disables)"},
	{"function-definitions", "function_definitions", "Maximum function definitions (negative disables)"},
	{"class-definitions", "class_definitions", "Maximum class definitions (negative disables)"},
	{"kernelspec-requirements", "kernelspec_requirements", "Required kernelspec entries as key=value,... or false to disable"},
	{"magics-allowlist", "magics_allowlist", "Comma-separated magics that may be used"},
	{"magics-denylist", "magics_denylist", "Comma-separated magics that must not be used"},
	{"cell-coverage", "cell_coverage", "Minimum percentage of code cells that must be tested"},
}

func addCommonFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: .celltests/config.yaml)")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-dir", "", "Directory for run log files")
	flags.Int("max-parallel", 0, "Number of notebooks processed at once")
	flags.String("noqa-regex", "", "Regex whose single capture group names a rule to disable")
	flags.Bool("auto-run-empty-tests", true, "Run a cell as-is when its test is blank")
	flags.Bool("no-history", false, "Do not record this run in the history database")
	for _, rf := range ruleFlags {
		flags.String(rf.flag, "", rf.usage)
	}
}
