package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/harrison/nbcelltests/internal/config"
	"github.com/harrison/nbcelltests/internal/fileutil"
	"github.com/harrison/nbcelltests/internal/history"
	"github.com/harrison/nbcelltests/internal/logger"
	"github.com/harrison/nbcelltests/internal/models"
)

// loadConfig reads the configuration file and applies the flags that were
// given on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var cfg *config.Config
	var err error
	configPath, _ := flags.GetString("config")
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	overrides, err := flagOverrides(flags)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// flagOverrides collects only the flags that were explicitly set. Flags a
// command does not define are never Changed.
func flagOverrides(flags *pflag.FlagSet) (config.FlagOverrides, error) {
	o := config.FlagOverrides{
		LogLevel:       changedString(flags, "log-level"),
		LogDir:         changedString(flags, "log-dir"),
		KernelName:     changedString(flags, "kernel"),
		ServerURL:      changedString(flags, "server-url"),
		Token:          changedString(flags, "token"),
		TestExecutable: changedString(flags, "test-executable"),
		LintExecutable: changedString(flags, "lint-executable"),
		NoqaRegex:      changedString(flags, "noqa-regex"),
		Rules:          models.RuleSet{},
	}

	if flags.Changed("timeout") {
		timeout, err := flags.GetDuration("timeout")
		if err != nil {
			return o, fmt.Errorf("invalid --timeout: %w", err)
		}
		o.Timeout = &timeout
	}
	if flags.Changed("max-parallel") {
		n, _ := flags.GetInt("max-parallel")
		o.MaxParallel = &n
	}
	if flags.Changed("auto-run-empty-tests") {
		v, _ := flags.GetBool("auto-run-empty-tests")
		o.AutoRunEmptyTests = &v
	}

	for _, rf := range ruleFlags {
		if !flags.Changed(rf.flag) {
			continue
		}
		v, _ := flags.GetString(rf.flag)
		o.Rules[rf.rule] = ruleFlagValue(rf.rule, v)
	}
	return o, nil
}

func changedString(flags *pflag.FlagSet, name string) *string {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetString(name)
	return &v
}

// ruleFlagValue converts a rule flag to a rule value. Most rules accept the
// string form directly; kernelspec_requirements also takes false and none.
func ruleFlagValue(rule, v string) any {
	if rule == models.RuleKernelspecRequirements {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "false":
			return false
		case "none", "null":
			return nil
		}
	}
	return v
}

// runEnv is the state shared by every notebook of one invocation.
type runEnv struct {
	cfg     *config.Config
	log     logger.Logger
	fileLog *logger.FileLogger
	store   *history.Store
	runID   string
}

// newRunEnv loads the configuration and opens the loggers. The history
// store is opened only when withHistory is set and history is enabled.
// Failing to open the run log or the history store is a warning.
func newRunEnv(cmd *cobra.Command, withHistory bool) (*runEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	env := &runEnv{cfg: cfg, log: console, runID: history.NewRunID()}

	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			console.LogWarn(fmt.Sprintf("run log disabled: %v", err))
		} else {
			env.fileLog = fileLog
			env.log = logger.NewMultiLogger(console, fileLog)
			console.LogDebug("Logging run to " + fileLog.RunFile())
		}
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if withHistory && !noHistory && cfg.HistoryDB != "" {
		store, err := history.NewStore(cfg.HistoryDB)
		if err != nil {
			env.log.LogWarn(fmt.Sprintf("run history disabled: %v", err))
		} else {
			env.store = store
		}
	}
	return env, nil
}

// Close releases the run log and history store.
func (e *runEnv) Close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.fileLog != nil {
		e.fileLog.Close()
	}
}

// notebooks expands the command arguments into notebook paths.
func (e *runEnv) notebooks(args []string) ([]string, error) {
	paths, warnings, err := fileutil.ExpandNotebooks(args)
	for _, w := range warnings {
		e.log.LogWarn(w.Error())
	}
	return paths, err
}

// record stores run in the history database, if one is open.
func (e *runEnv) record(ctx context.Context, run *history.Run) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordRun(ctx, run); err != nil {
		e.log.LogWarn(fmt.Sprintf("failed to record %s run of %s: %v", run.Kind, run.Notebook, err))
	}
}

// forEachNotebook calls fn for every path, running up to max_parallel at
// once. fn reports per-notebook failures through its own results; a
// returned error cancels the remaining notebooks.
func (e *runEnv) forEachNotebook(ctx context.Context, paths []string, fn func(ctx context.Context, i int, path string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)

	var bar *logger.ProgressBar
	if len(paths) > 1 {
		bar = logger.NewProgressBar(len(paths), 20, false)
	}
	var mu sync.Mutex

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := fn(gctx, i, path); err != nil {
				return err
			}
			if bar != nil {
				mu.Lock()
				e.log.LogInfo(bar.Increment())
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

// notebookKey is the name a notebook is recorded under in the history.
func notebookKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
