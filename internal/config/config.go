// Package config loads nbcelltests settings from .celltests/config.yaml and
// merges them with defaults and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/nbcelltests/internal/celltest"
	"github.com/harrison/nbcelltests/internal/lint"
	"github.com/harrison/nbcelltests/internal/logger"
	"github.com/harrison/nbcelltests/internal/models"
)

// Dir is the per-project settings directory.
const Dir = ".celltests"

// Config represents nbcelltests configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written
	LogDir string `yaml:"log_dir"`

	// KernelName overrides the notebook's kernelspec name when set
	KernelName string `yaml:"kernel_name"`

	// ServerURL is the base URL of the Jupyter server that hosts kernels
	ServerURL string `yaml:"server_url"`

	// Token authenticates against the Jupyter server
	Token string `yaml:"token"`

	// Timeout bounds the wait for each fragment's reply
	Timeout time.Duration `yaml:"timeout"`

	// TestExecutable runs a generated module in --external mode
	TestExecutable string `yaml:"test_executable"`

	// LintExecutable is the external Python linter
	LintExecutable string `yaml:"lint_executable"`

	// NoqaRegex matches lines that disable a rule; one capture group names it
	NoqaRegex string `yaml:"noqa_regex"`

	// AutoRunEmptyTests runs a cell verbatim when its test is blank
	AutoRunEmptyTests bool `yaml:"auto_run_empty_tests"`

	// HistoryDB is the SQLite run history; empty disables history
	HistoryDB string `yaml:"history_db"`

	// MaxParallel is how many notebooks are processed at once
	MaxParallel int `yaml:"max_parallel"`

	// Rules apply on top of each notebook's own metadata rules
	Rules models.RuleSet `yaml:"rules"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		LogDir:            filepath.Join(Dir, "logs"),
		ServerURL:         "http://localhost:8888",
		Token:             os.Getenv("JUPYTER_TOKEN"),
		Timeout:           celltest.DefaultTimeout,
		TestExecutable:    "python -m pytest -v",
		LintExecutable:    lint.DefaultExecutable,
		AutoRunEmptyTests: true,
		HistoryDB:         filepath.Join(Dir, "history.db"),
		MaxParallel:       1,
		Rules:             models.RuleSet{},
	}
}

// fileConfig mirrors Config with pointer fields so that keys present in
// the file, even with zero values, can be told apart from absent ones.
type fileConfig struct {
	LogLevel          *string        `yaml:"log_level"`
	LogDir            *string        `yaml:"log_dir"`
	KernelName        *string        `yaml:"kernel_name"`
	ServerURL         *string        `yaml:"server_url"`
	Token             *string        `yaml:"token"`
	Timeout           *string        `yaml:"timeout"`
	TestExecutable    *string        `yaml:"test_executable"`
	LintExecutable    *string        `yaml:"lint_executable"`
	NoqaRegex         *string        `yaml:"noqa_regex"`
	AutoRunEmptyTests *bool          `yaml:"auto_run_empty_tests"`
	HistoryDB         *string        `yaml:"history_db"`
	MaxParallel       *int           `yaml:"max_parallel"`
	Rules             map[string]any `yaml:"rules"`
}

// LoadConfig loads configuration from path.
// A missing file yields the defaults; a malformed one is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogDir, fc.LogDir)
	setString(&cfg.KernelName, fc.KernelName)
	setString(&cfg.ServerURL, fc.ServerURL)
	setString(&cfg.Token, fc.Token)
	setString(&cfg.TestExecutable, fc.TestExecutable)
	setString(&cfg.LintExecutable, fc.LintExecutable)
	setString(&cfg.NoqaRegex, fc.NoqaRegex)
	setString(&cfg.HistoryDB, fc.HistoryDB)
	if fc.Timeout != nil {
		timeout, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", *fc.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if fc.AutoRunEmptyTests != nil {
		cfg.AutoRunEmptyTests = *fc.AutoRunEmptyTests
	}
	if fc.MaxParallel != nil {
		cfg.MaxParallel = *fc.MaxParallel
	}
	for k, v := range fc.Rules {
		cfg.Rules[k] = v
	}

	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// LoadConfigFromDir loads .celltests/config.yaml from the nearest directory
// at or above dir that has one, falling back to the defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	root, ok := FindProjectRoot(dir)
	if !ok {
		return DefaultConfig(), nil
	}
	return LoadConfig(filepath.Join(root, Dir, "config.yaml"))
}

// FindProjectRoot walks up from start to the first directory containing
// .celltests/config.yaml.
func FindProjectRoot(start string) (string, bool) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(current, Dir, "config.yaml")); err == nil {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// FlagOverrides carries CLI flag values. Nil fields were not given.
type FlagOverrides struct {
	LogLevel          *string
	LogDir            *string
	KernelName        *string
	ServerURL         *string
	Token             *string
	Timeout           *time.Duration
	TestExecutable    *string
	LintExecutable    *string
	NoqaRegex         *string
	AutoRunEmptyTests *bool
	HistoryDB         *string
	MaxParallel       *int
	Rules             models.RuleSet
}

// MergeWithFlags applies flags on top of the configuration.
// Flag rules win over configured rules of the same name.
func (c *Config) MergeWithFlags(f FlagOverrides) {
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogDir, f.LogDir)
	setString(&c.KernelName, f.KernelName)
	setString(&c.ServerURL, f.ServerURL)
	setString(&c.Token, f.Token)
	setString(&c.TestExecutable, f.TestExecutable)
	setString(&c.LintExecutable, f.LintExecutable)
	setString(&c.NoqaRegex, f.NoqaRegex)
	setString(&c.HistoryDB, f.HistoryDB)
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.AutoRunEmptyTests != nil {
		c.AutoRunEmptyTests = *f.AutoRunEmptyTests
	}
	if f.MaxParallel != nil {
		c.MaxParallel = *f.MaxParallel
	}
	c.Rules = c.Rules.Merge(f.Rules)
}

// RulesFor returns the rules in effect for nb: the notebook's own
// metadata rules overridden by the configured ones.
func (c *Config) RulesFor(nb *models.Notebook) models.RuleSet {
	return nb.Rules.Merge(c.Rules)
}

// GeneratorOptions returns the assembly options this configuration selects.
func (c *Config) GeneratorOptions() celltest.Options {
	return celltest.Options{
		KernelName:        c.KernelName,
		NoqaRegex:         c.NoqaRegex,
		AutoRunEmptyTests: c.AutoRunEmptyTests,
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	valid := false
	for _, l := range logger.ValidLevels {
		if c.LogLevel == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be >= 1, got %d", c.MaxParallel)
	}
	if c.NoqaRegex != "" {
		if _, err := celltest.CompileNoqa(c.NoqaRegex); err != nil {
			return err
		}
	}
	if c.TestExecutable == "" {
		return fmt.Errorf("test_executable cannot be empty")
	}
	if c.Rules.Has(models.RuleCellCoverage) {
		if _, err := c.Rules.Float(models.RuleCellCoverage); err != nil {
			return err
		}
	}
	return nil
}
