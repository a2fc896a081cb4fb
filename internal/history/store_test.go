package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_AppliesMigrations(t *testing.T) {
	s := newTestStore(t)
	v, err := s.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()
	v, err := s2.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNewStore_InMemory(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	run := &Run{RunID: "r", Notebook: "a.ipynb", Kind: "lint"}
	require.NoError(t, s.RecordRun(context.Background(), run))
	runs, err := s.RecentRuns(context.Background(), "a.ipynb", 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_TestResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []models.TestMessage{
		{Cell: 1, Message: "Testing cell", Type: models.TestCell, Outcome: models.OutcomePassed},
		{Cell: 2, Message: "Testing cell", Type: models.TestCell, Outcome: models.OutcomeFailed, Detail: "boom"},
		{Cell: -1, Message: "Testing cell coverage", Type: models.TestCellCoverage, Outcome: models.OutcomeSkipped},
	}
	summary := models.SummarizeTests("nb.ipynb", msgs, 1500*time.Millisecond)
	run := TestRun("run-1", summary, msgs)

	require.NoError(t, s.RecordRun(ctx, run))
	assert.NotZero(t, run.ID)

	runs, err := s.RecentRuns(ctx, "nb.ipynb", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "test", got.Kind)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.False(t, got.Timestamp.IsZero())

	results, err := s.GetResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, Result{Cell: 2, Type: "cell_test", Outcome: "FAILED", Message: "Testing cell", Detail: "boom"}, results[1])
	assert.Equal(t, "SKIPPED", results[2].Outcome)
}

func TestRecordRun_LintResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []models.LintMessage{
		{Cell: 1, Message: "Checking lines in cell (max=1; actual=2)", Type: models.LintLinesPerCell},
	}
	run := LintRun(NewRunID(), models.SummarizeLint("nb.ipynb", msgs, 0), msgs)
	require.NoError(t, s.RecordRun(ctx, run))

	results, err := s.GetResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "FAILED", results[0].Outcome)
	assert.Equal(t, "lines_per_cell", results[0].Type)
}

func TestRecentRuns_OrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, nb := range []string{"a.ipynb", "b.ipynb", "a.ipynb"} {
		require.NoError(t, s.RecordRun(ctx, &Run{RunID: "r", Notebook: nb, Kind: "lint", Passed: i, Timestamp: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := s.RecentRuns(ctx, "a.ipynb", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Passed)
	assert.Equal(t, 0, runs[1].Passed)

	all, err := s.RecentRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a.ipynb", all[0].Notebook)
	assert.Equal(t, "b.ipynb", all[1].Notebook)
}

func TestCleanupOldRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &Run{RunID: "old", Notebook: "a.ipynb", Kind: "test", Timestamp: time.Now().UTC().AddDate(0, 0, -40),
		Results: []Result{{Cell: 1, Type: "cell_test", Outcome: "PASSED", Message: "Testing cell"}}}
	recent := &Run{RunID: "new", Notebook: "a.ipynb", Kind: "test"}
	require.NoError(t, s.RecordRun(ctx, old))
	require.NoError(t, s.RecordRun(ctx, recent))

	n, err := s.CleanupOldRuns(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.CleanupOldRuns(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := s.RecentRuns(ctx, "a.ipynb", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].RunID)

	results, err := s.GetResults(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecordRun_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordRun(ctx, &Run{RunID: "c", Notebook: "c.ipynb", Kind: "lint"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	runs, err := s.RecentRuns(ctx, "c.ipynb", 100)
	require.NoError(t, err)
	assert.Len(t, runs, 8)
}
