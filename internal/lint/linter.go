// Package lint evaluates notebook structure rules (cell sizes, definition
// counts, kernelspec and magics) and optionally runs an external Python
// linter over the notebook flattened to a script.
package lint

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/harrison/nbcelltests/internal/celltest"
	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/notebook"
	"github.com/harrison/nbcelltests/internal/runner"
)

// DefaultExecutable is the external linter used when none is configured.
const DefaultExecutable = "flake8 --ignore=W391"

// Options configures a Linter.
type Options struct {
	Executable      string // Shell command of the external linter; the script path is appended
	RunPythonLinter bool   // Run Executable over the flattened script
}

// Linter checks notebooks against a RuleSet.
type Linter struct {
	generator *celltest.Generator
	commands  runner.CommandRunner
	opts      Options
}

// New creates a Linter. commands is only used when RunPythonLinter is set.
func New(generator *celltest.Generator, commands runner.CommandRunner, opts Options) *Linter {
	if opts.Executable == "" {
		opts.Executable = DefaultExecutable
	}
	return &Linter{generator: generator, commands: commands, opts: opts}
}

// EffectiveRules removes the rules disabled by noqa lines in the notebook.
func EffectiveRules(rules models.RuleSet, noqa []string) models.RuleSet {
	return rules.Without(noqa)
}

// Lint runs every configured rule over nb. rules is the merged rule set
// (notebook metadata, then configuration, then flags).
func (l *Linter) Lint(ctx context.Context, nb *models.Notebook, rules models.RuleSet) ([]models.LintMessage, error) {
	x, err := l.generator.Extract(nb, rules)
	if err != nil {
		return nil, err
	}
	meta := x.Metadata
	rules = EffectiveRules(rules, meta.Noqa)

	var msgs []models.LintMessage

	limits := []struct {
		rule  string
		check func(max int) []models.LintMessage
	}{
		{models.RuleLinesPerCell, func(max int) []models.LintMessage { return LinesPerCell(meta.CellLines, max) }},
		{models.RuleCellsPerNotebook, func(max int) []models.LintMessage { return CellsPerNotebook(meta.CellCount, max) }},
		{models.RuleFunctionDefinitions, func(max int) []models.LintMessage { return FunctionDefinitions(meta.Functions, max) }},
		{models.RuleClassDefinitions, func(max int) []models.LintMessage { return ClassDefinitions(meta.Classes, max) }},
	}
	for _, lim := range limits {
		if !rules.Has(lim.rule) {
			continue
		}
		max, err := rules.Int(lim.rule)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, lim.check(max)...)
	}

	if rules.Has(models.RuleKernelspecRequirements) {
		required, enabled, err := kernelspecRequirements(rules)
		if err != nil {
			return nil, err
		}
		if enabled {
			msgs = append(msgs, Kernelspec(meta.Kernelspec, required)...)
		}
	}

	allow, err := optionalList(rules, models.RuleMagicsAllowlist)
	if err != nil {
		return nil, err
	}
	deny, err := optionalList(rules, models.RuleMagicsDenylist)
	if err != nil {
		return nil, err
	}
	magics, err := Magics(meta.Magics, allow, deny)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, magics...)

	if l.opts.RunPythonLinter {
		msg, err := l.runPythonLinter(ctx, nb)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// kernelspecRequirements reads the rule value: false disables the check,
// null requires nothing, and a mapping lists required pairs.
func kernelspecRequirements(rules models.RuleSet) (map[string]string, bool, error) {
	switch v := rules[models.RuleKernelspecRequirements].(type) {
	case nil:
		return map[string]string{}, true, nil
	case bool:
		if v {
			return nil, false, fmt.Errorf("rule %s: expected a mapping or false, got true", models.RuleKernelspecRequirements)
		}
		return nil, false, nil
	}
	m, err := rules.StringMap(models.RuleKernelspecRequirements)
	return m, err == nil, err
}

func optionalList(rules models.RuleSet, name string) ([]string, error) {
	if !rules.Has(name) {
		return nil, nil
	}
	list, err := rules.StringList(name)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (l *Linter) runPythonLinter(ctx context.Context, nb *models.Notebook) (models.LintMessage, error) {
	tmp, err := os.CreateTemp("", "nbcelltests-*.py")
	if err != nil {
		return models.LintMessage{}, fmt.Errorf("failed to create lint script: %w", err)
	}
	scriptPath := tmp.Name()
	defer os.Remove(scriptPath)

	if _, err := tmp.WriteString(notebook.Script(nb)); err != nil {
		tmp.Close()
		return models.LintMessage{}, fmt.Errorf("failed to write lint script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return models.LintMessage{}, fmt.Errorf("failed to write lint script: %w", err)
	}

	// The linter's exit status only mirrors whether it printed findings.
	output, _ := l.commands.Run(ctx, l.opts.Executable+" "+runner.ShellQuote(scriptPath))
	if ctx.Err() != nil {
		return models.LintMessage{}, ctx.Err()
	}

	output = strings.TrimSpace(output)
	if nb.Path != "" {
		output = strings.ReplaceAll(output, scriptPath, fmt.Sprintf("%s (in %s)", nb.Path, scriptPath))
	}

	var sb strings.Builder
	sb.WriteString("Checking lint:")
	if output != "" {
		for _, line := range strings.Split(output, "\n") {
			sb.WriteString("\n\t" + line)
		}
	}
	return models.LintMessage{
		Cell:    -1,
		Message: sb.String(),
		Type:    models.LintLinter,
		Passed:  output == "",
	}, nil
}
