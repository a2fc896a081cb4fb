package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/nbcelltests/internal/celltest"
	"github.com/harrison/nbcelltests/internal/filelock"
	"github.com/harrison/nbcelltests/internal/notebook"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <notebook.ipynb>...",
		Short: "Write the Python test module for notebooks",
		Long: `Generate assembles each notebook's cell tests into a self-contained
Python unittest module.

The module starts one kernel, replays the notebook cell by cell and has one
test_code_cell_N per code cell. By default it is written beside the notebook
as _<name>_test.py.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGenerate,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (only with a single notebook)")
	cmd.Flags().Duration("timeout", 0, "Per-cell timeout written into the module (default: 60s)")
	cmd.Flags().String("kernel", "", "Kernel name (default: the notebook's kernelspec, then python3)")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv(cmd, false)
	if err != nil {
		return err
	}
	defer env.Close()

	paths, err := env.notebooks(args)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "" && len(paths) > 1 {
		return fmt.Errorf("--output can only be used with a single notebook")
	}

	gen, err := celltest.NewGenerator(env.cfg.GeneratorOptions())
	if err != nil {
		return err
	}

	written := make([]string, len(paths))
	err = env.forEachNotebook(cmd.Context(), paths, func(ctx context.Context, i int, path string) error {
		target := output
		if target == "" {
			target = celltest.DefaultModulePath(path)
		}
		if err := generateModule(ctx, gen, env, path, target); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		written[i] = target
		return nil
	})
	if err != nil {
		return err
	}

	for i, path := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, written[i])
	}
	return nil
}

// generateModule assembles the notebook at path and writes its module to target.
func generateModule(ctx context.Context, gen *celltest.Generator, env *runEnv, path, target string) error {
	nb, err := notebook.Read(path)
	if err != nil {
		return err
	}
	mod, err := gen.Assemble(nb, env.cfg.RulesFor(nb))
	if err != nil {
		return err
	}
	data, err := celltest.RenderModule(mod, env.cfg.Timeout)
	if err != nil {
		return err
	}
	if err := filelock.WriteArtifact(ctx, target, data); err != nil {
		return fmt.Errorf("failed to write test module: %w", err)
	}
	env.log.LogDebug(fmt.Sprintf("%s: %d of %d code cells inject their source", path, mod.InjectedCount(), len(mod.Units)))
	return nil
}
