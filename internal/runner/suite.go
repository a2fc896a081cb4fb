// Package runner executes generated cell-test modules.
//
// Suite runs a module in-process against a kernel session, applying the
// sequencing rules the rendered Python runtime uses: before a cell's test
// runs, every earlier injected cell that has not yet run is executed in
// order, and no cell ever runs twice in one session. External runs the
// rendered module with an outside test tool and reads back its JUnit report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/nbcelltests/internal/kernel"
	"github.com/harrison/nbcelltests/internal/models"
)

// Logger receives per-test results and advisories. It may be nil.
type Logger interface {
	LogWarn(message string)
	LogTestResult(msg models.TestMessage)
}

// Suite runs the units of one GeneratedModule in a single kernel session.
type Suite struct {
	module  *models.GeneratedModule
	starter kernel.Starter
	logger  Logger

	session  kernel.Session
	cellsRun map[int]bool
}

// NewSuite creates a Suite for mod. The logger parameter is optional and can be nil.
func NewSuite(mod *models.GeneratedModule, starter kernel.Starter, logger Logger) *Suite {
	return &Suite{
		module:  mod,
		starter: starter,
		logger:  logger,
	}
}

// Setup starts the session shared by every unit of the module.
func (s *Suite) Setup(ctx context.Context) error {
	session, err := s.starter.Start(ctx, s.module.KernelName)
	if err != nil {
		return fmt.Errorf("failed to start kernel %s: %w", s.module.KernelName, err)
	}
	s.session = session
	s.cellsRun = make(map[int]bool)
	return nil
}

// Teardown stops the session. It is safe to call when Setup failed.
func (s *Suite) Teardown(ctx context.Context) error {
	if s.session == nil {
		return nil
	}
	err := s.session.Stop(ctx)
	s.session = nil
	if err != nil {
		return fmt.Errorf("failed to stop kernel: %w", err)
	}
	return nil
}

// CellsRun reports whether the fragment of a code cell has completed in this session.
func (s *Suite) CellsRun(cell int) bool {
	return s.cellsRun[cell]
}

// RunTest runs the test for a 1-based code-cell index.
//
// Earlier injected cells that have not run yet are executed first, in
// ascending order. The first failure stops the chain and is returned; a
// failed cell is not marked as run, so later tests that depend on it fail
// the same way. The cell's own fragment runs at most once per session.
// Skipped units never reach the session.
func (s *Suite) RunTest(ctx context.Context, cell int) error {
	if s.session == nil {
		return ErrNotSetUp
	}
	unit, ok := s.module.Unit(cell)
	if !ok {
		return fmt.Errorf("no test for code cell %d", cell)
	}
	if unit.Disposition.IsSkip() {
		return nil
	}

	for _, prev := range s.module.Units {
		if prev.CodeIndex >= cell {
			break
		}
		if prev.Disposition.Injects() && !s.cellsRun[prev.CodeIndex] {
			if err := s.runCell(ctx, prev); err != nil {
				return err
			}
		}
	}

	if !s.cellsRun[cell] {
		if err := s.runCell(ctx, unit); err != nil {
			return err
		}
	}

	if unit.Disposition == models.RunTestNoInjection && s.logger != nil {
		s.logger.LogWarn(fmt.Sprintf("Test for code cell %d does not run the cell's code", cell))
	}
	return nil
}

func (s *Suite) runCell(ctx context.Context, unit models.CellTestUnit) error {
	if err := s.session.Run(ctx, unit.Source); err != nil {
		return NewCellError(unit.CodeIndex, err)
	}
	s.cellsRun[unit.CodeIndex] = true
	return nil
}

// CheckCoverage returns the coverage failure, if the module carries a
// coverage check that did not pass.
func (s *Suite) CheckCoverage() error {
	c := s.module.Coverage
	if c == nil || c.Passed() {
		return nil
	}
	return errors.New(c.FailureMessage())
}

// RunAll runs every unit in code-cell order, then the coverage check, and
// returns one TestMessage per operation. The session is always stopped
// before RunAll returns.
func (s *Suite) RunAll(ctx context.Context) (msgs []models.TestMessage, err error) {
	if err := s.Setup(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if stopErr := s.Teardown(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	for _, unit := range s.module.Units {
		start := time.Now()
		msg := models.TestMessage{
			Cell:    unit.CodeIndex,
			Message: "Testing cell",
			Type:    models.TestCell,
		}

		switch {
		case ctx.Err() != nil:
			msg.Outcome = models.OutcomeNotRun
		case unit.Disposition.IsSkip():
			msg.Outcome = models.OutcomeSkipped
			msg.Detail = unit.Disposition.SkipReason()
		default:
			if runErr := s.RunTest(ctx, unit.CodeIndex); runErr != nil {
				msg.Outcome = models.OutcomeFailed
				msg.Detail = runErr.Error()
			} else {
				msg.Outcome = models.OutcomePassed
			}
		}
		msg.Duration = time.Since(start)
		msgs = append(msgs, s.report(msg))
	}

	if s.module.Coverage != nil {
		msg := models.TestMessage{
			Cell:    -1,
			Message: "Testing cell coverage",
			Type:    models.TestCellCoverage,
			Outcome: models.OutcomePassed,
		}
		if covErr := s.CheckCoverage(); covErr != nil {
			msg.Outcome = models.OutcomeFailed
			msg.Detail = covErr.Error()
		}
		msgs = append(msgs, s.report(msg))
	}

	return msgs, ctx.Err()
}

func (s *Suite) report(msg models.TestMessage) models.TestMessage {
	if s.logger != nil {
		s.logger.LogTestResult(msg)
	}
	return msg
}
