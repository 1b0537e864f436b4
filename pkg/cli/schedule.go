package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipcost/shipcost/pkg/scheduler"
)

var scheduleExpr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Retrain on a cron schedule",
	Long: `Run the training pipeline on a standard five-field cron schedule until
interrupted. A run that is still going when the next tick fires causes that
tick to be skipped.

The schedule defaults to RETRAIN_SCHEDULE.

Examples:
  shipcost schedule
  shipcost schedule --cron "0 */6 * * *"`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleExpr, "cron", "", "cron expression (default RETRAIN_SCHEDULE)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	expr := scheduleExpr
	if expr == "" {
		expr = cfg.RetrainSchedule
	}

	s, err := newSession(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	svc, err := scheduler.NewService(expr, s.runner, logger)
	if err != nil {
		return err
	}
	svc.Start(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Retraining on %q, next run at %s. Press Ctrl-C to stop.\n",
		expr, svc.NextRun().Format("2006-01-02 15:04:05"))

	<-ctx.Done()
	svc.Stop()
	return nil
}
