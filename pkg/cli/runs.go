package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shipcost/shipcost/pkg/metadatastore"
	"github.com/shipcost/shipcost/pkg/models"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List or inspect past training runs",
	Long: `List recorded training runs, newest first, or print one run in full.

Examples:
  shipcost runs
  shipcost runs --limit 5
  shipcost runs 3f0c9a6e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "max runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ledger, err := metadatastore.NewSQLiteStore(cfg.RunDB)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer ledger.Close()

	if len(args) == 1 {
		run, err := ledger.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	runs, err := ledger.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	renderRuns(cmd.OutOrStdout(), runs)
	return nil
}

func renderRuns(w io.Writer, runs []*models.RunRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Started", "Trigger", "Status", "Failed Stage", "Model", "Score", "Delta", "Duration"})
	for _, r := range runs {
		table.Append([]string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.TriggerType,
			string(r.Status),
			r.FailedStage,
			r.ModelName,
			optFloat(r.CandidateScore, "%.4f"),
			optFloat(r.ScoreDelta, "%+.4f"),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func optFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
