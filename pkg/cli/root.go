// Package cli provides the shipcost command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shipcost/shipcost/pkg/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global config and logger, loaded before any command runs
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd runs the training pipeline when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "shipcost",
	Short: "Shipment cost model training pipeline",
	Long: `shipcost trains, evaluates and publishes the shipment cost regression model.

Running shipcost without a command executes one full training run:
ingestion, validation, transformation, training, evaluation and, when the
model is accepted, publishing.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.SlogLevel())
		slog.SetDefault(logger)
		return nil
	},
	RunE: runTrain,
}

// Execute runs the root command with ctx. The log file is closed here
// rather than in a post-run hook, which cobra skips when a command fails.
func Execute(ctx context.Context) error {
	defer closeLogFile()
	return rootCmd.ExecuteContext(ctx)
}

func closeLogFile() {
	if closeLog == nil {
		return
	}
	if err := closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	closeLog = nil
}

func init() {
	trainFlags(rootCmd)

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(scheduleCmd)
}
