package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/pipeline"
)

var splitSeed int64

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the training pipeline once",
	Long: `Run one full training run and publish the model when evaluation accepts it.

A rejected model is not an error: the run ends with status skipped-publish.

Examples:
  shipcost train
  shipcost train --split-seed 42`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainFlags(trainCmd)
}

func trainFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&splitSeed, "split-seed", 0, "fix the train/test shuffle (random when unset)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx, cfg, chosenSeed(cmd))
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	result, err := s.runner.RunOnce(ctx, pipeline.TriggerManual)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

// chosenSeed returns the --split-seed value only when the flag was given
func chosenSeed(cmd *cobra.Command) *int64 {
	if !cmd.Flags().Changed("split-seed") {
		return nil
	}
	seed := splitSeed
	return &seed
}

func printResult(w io.Writer, r *models.RunResult) {
	fmt.Fprintf(w, "Run %s (%s): %s\n", r.RunID, r.Timestamp, r.Status)
	if r.Trainer != nil {
		fmt.Fprintf(w, "  Model: %s (test R² %.4f)\n", r.Trainer.ModelName, r.Trainer.Score)
		fmt.Fprintf(w, "  Saved: %s\n", r.Trainer.TrainedModelPath)
	}
	if r.Evaluation != nil && r.Evaluation.Result != nil {
		if b := r.Evaluation.Result.BaselineScore; b != nil {
			fmt.Fprintf(w, "  Published model R²: %.4f (delta %+.4f)\n", *b, r.Evaluation.ScoreDelta)
		} else {
			fmt.Fprintln(w, "  No published model to compare against")
		}
	}
	if r.Pusher != nil {
		fmt.Fprintf(w, "  Published: %s/%s\n", r.Pusher.BucketName, r.Pusher.RemoteModelKey)
	}
}
