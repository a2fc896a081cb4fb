// Package history keeps a SQLite record of lint and test runs so that
// results can be compared across runs of the same notebook.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/nbcelltests/internal/models"
)

// Run is one lint or test pass over a notebook.
type Run struct {
	ID        int64
	RunID     string // Shared by every notebook processed in one invocation
	Notebook  string
	Kind      string // "lint" or "test"
	Passed    int
	Failed    int
	Skipped   int
	NotRun    int
	Duration  time.Duration
	Timestamp time.Time
	Results   []Result
}

// Result is one message of a Run.
type Result struct {
	Cell    int
	Type    string
	Outcome string
	Message string
	Detail  string
}

// NewRunID returns an identifier for one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// LintRun builds a Run from lint messages.
func LintRun(runID string, summary models.RunSummary, msgs []models.LintMessage) *Run {
	run := runFromSummary(runID, summary)
	for _, m := range msgs {
		outcome := models.OutcomeFailed
		if m.Passed {
			outcome = models.OutcomePassed
		}
		run.Results = append(run.Results, Result{Cell: m.Cell, Type: string(m.Type), Outcome: outcome.String(), Message: m.Message})
	}
	return run
}

// TestRun builds a Run from test messages.
func TestRun(runID string, summary models.RunSummary, msgs []models.TestMessage) *Run {
	run := runFromSummary(runID, summary)
	for _, m := range msgs {
		run.Results = append(run.Results, Result{Cell: m.Cell, Type: string(m.Type), Outcome: m.Outcome.String(), Message: m.Message, Detail: m.Detail})
	}
	return run
}

func runFromSummary(runID string, s models.RunSummary) *Run {
	return &Run{
		RunID:    runID,
		Notebook: s.Notebook,
		Kind:     s.Kind,
		Passed:   s.Passed,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
		NotRun:   s.NotRun,
		Duration: s.Duration,
	}
}

// Store manages the SQLite run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// DSN parameters apply to every pooled connection; the pragmas below
	// only reach the first one.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must be set before anything else takes a lock.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// execWithRetry retries statements that fail with "database is locked",
// doubling the delay after each attempt.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores run and its results, setting run.ID.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, notebook, kind, passed, failed, skipped, not_run, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Notebook, run.Kind, run.Passed, run.Failed, run.Skipped, run.NotRun,
		run.Duration.Milliseconds(), run.Timestamp)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	for _, r := range run.Results {
		if _, err := tx.ExecContext(ctx, `INSERT INTO results
			(run_ref, cell, type, outcome, message, detail) VALUES (?, ?, ?, ?, ?, ?)`,
			id, r.Cell, r.Type, r.Outcome, r.Message, r.Detail); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	run.ID = id
	return nil
}

// RecentRuns returns up to limit runs of notebook, most recent first.
// An empty notebook lists runs of every notebook. Results are not loaded.
func (s *Store) RecentRuns(ctx context.Context, notebook string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, run_id, notebook, kind, passed, failed, skipped, not_run, duration_ms, timestamp
		FROM runs`
	args := []any{}
	if notebook != "" {
		query += ` WHERE notebook = ?`
		args = append(args, notebook)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Notebook, &r.Kind, &r.Passed, &r.Failed,
			&r.Skipped, &r.NotRun, &durationMs, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetResults returns the results recorded for the run with the given ID.
func (s *Store) GetResults(ctx context.Context, id int64) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cell, type, outcome, message, COALESCE(detail, '')
		FROM results WHERE run_ref = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Cell, &r.Type, &r.Outcome, &r.Message, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CleanupOldRuns deletes runs older than keepDays, with their results.
// Zero or negative keeps everything.
func (s *Store) CleanupOldRuns(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_ref IN (SELECT id FROM runs WHERE timestamp < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup old results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old runs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return deleted, nil
}
