package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/nbcelltests/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [notebook.ipynb]",
		Short: "Show recent lint and test runs",
		Long: `History lists recent lint and test runs recorded in the history
database, most recent first. With a notebook argument only that notebook's
runs are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	cmd.Flags().Bool("details", false, "Show every result of each run")
	cmd.Flags().Int("cleanup", 0, "Delete runs older than this many days before listing")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return fmt.Errorf("run history is disabled (history_db is empty)")
	}

	store, err := history.NewStore(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if keepDays, _ := cmd.Flags().GetInt("cleanup"); keepDays > 0 {
		deleted, err := store.CleanupOldRuns(ctx, keepDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d run(s) older than %d day(s)\n", deleted, keepDays)
	}

	notebookPath := ""
	if len(args) == 1 {
		notebookPath = notebookKey(args[0])
	}
	limit, _ := cmd.Flags().GetInt("limit")
	details, _ := cmd.Flags().GetBool("details")

	runs, err := store.RecentRuns(ctx, notebookPath, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	for _, run := range runs {
		if details {
			results, err := store.GetResults(ctx, run.ID)
			if err != nil {
				return err
			}
			run.Results = results
		}
		writeRun(out, run)
	}
	return nil
}

func writeRun(w io.Writer, run *history.Run) {
	fmt.Fprintf(w, "%s  %-4s  %s: %d passed, %d failed",
		run.Timestamp.Local().Format("2006-01-02 15:04:05"), run.Kind, run.Notebook, run.Passed, run.Failed)
	if run.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", run.Skipped)
	}
	if run.NotRun > 0 {
		fmt.Fprintf(w, ", %d not run", run.NotRun)
	}
	fmt.Fprintf(w, " (%s)\n", run.Duration)

	for _, r := range run.Results {
		where := "Notebook"
		if r.Cell > 0 {
			where = fmt.Sprintf("Cell %d", r.Cell)
		}
		fmt.Fprintf(w, "    %s: %s (%s)\n", r.Outcome, r.Message, where)
	}
}
