package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/keizerzilla/latin/internal/recognition"
	"github.com/keizerzilla/latin/internal/storage/sqlite"
)

// NewRunsCmd builds the command that lists or inspects stored classify runs.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List stored classify runs",
		Long: `Without arguments, list the runs stored in the results database, newest
first. With a run id, print its protocol summaries and classifier results.

Examples:
  latin runs --db results.db
  latin runs --db results.db 3f0c2b1e-...
  latin runs --db results.db --delete 3f0c2b1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRuns,
	}
	cmd.Flags().String("db", "results.db", "SQLite results database")
	cmd.Flags().String("delete", "", "Delete the run with this id")
	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlite.NewResultStore(db, nil)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if id, _ := cmd.Flags().GetString("delete"); id != "" {
		if err := store.DeleteRun(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", id)
		return nil
	}

	if len(args) == 0 {
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return err
		}
		table := pterm.TableData{{"Run", "Created", "Features"}}
		for _, r := range runs {
			table = append(table, []string{r.RunID, time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339), r.FeaturesPath})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).WithWriter(out).Render()
	}

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	sums, err := store.Summaries(ctx, run.RunID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s on %s\n", run.RunID, run.FeaturesPath)
	for _, s := range sums {
		fmt.Fprintln(out, recognition.FormatSummary(s.Protocol, s.Classifier, s.RatePercent))
	}
	rows, err := store.ClassifierResults(ctx, run.RunID)
	if err != nil {
		return err
	}
	table := pterm.TableData{{"Protocol", "Classifier", "Rate", "Elapsed", "Error"}}
	for _, r := range rows {
		table = append(table, []string{r.Protocol, r.Classifier, fmt.Sprintf("%.4f", r.RecognitionRate), r.Elapsed.String(), r.Error})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).WithWriter(out).Render()
}
