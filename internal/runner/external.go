package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/harrison/nbcelltests/internal/models"
	"github.com/harrison/nbcelltests/internal/report"
)

// ErrNoReport is returned when the test tool exits without writing a report.
var ErrNoReport = errors.New("test tool produced no report")

// External runs a rendered test module with an outside test tool
// (pytest by default) and converts its JUnit-XML report into TestMessages.
type External struct {
	runner     CommandRunner
	executable string
	logger     Logger
}

// NewExternal creates an External runner. executable is the shell command
// that runs a test file, e.g. "python -m pytest -v". The logger parameter
// is optional and can be nil.
func NewExternal(runner CommandRunner, executable string, logger Logger) *External {
	return &External{runner: runner, executable: executable, logger: logger}
}

// Command returns the shell command used to run modulePath.
func (e *External) Command(modulePath, reportPath string) string {
	return fmt.Sprintf("%s --junitxml=%s %s", e.executable, ShellQuote(reportPath), ShellQuote(modulePath))
}

// Run executes the module at modulePath. A non-zero exit from the tool is
// expected when tests fail; only a missing or unreadable report is an error.
func (e *External) Run(ctx context.Context, modulePath string) ([]models.TestMessage, error) {
	reportPath := strings.TrimSuffix(modulePath, ".py") + ".junit.xml"
	os.Remove(reportPath)
	defer os.Remove(reportPath)

	output, runErr := e.runner.Run(ctx, e.Command(modulePath, reportPath))
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f, err := os.Open(reportPath)
	if err != nil {
		msg := fmt.Sprintf("%s: %v", modulePath, runErr)
		if out := strings.TrimSpace(output); out != "" {
			msg += "\nOutput:\n" + out
		}
		return nil, fmt.Errorf("%w: %s", ErrNoReport, msg)
	}
	defer f.Close()

	msgs, err := report.ParseJUnit(f)
	if err != nil {
		return nil, err
	}
	if e.logger != nil {
		for _, m := range msgs {
			e.logger.LogTestResult(m)
		}
	}
	return msgs, nil
}
