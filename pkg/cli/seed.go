package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/dataset"
)

var (
	seedFile      string
	seedSynthetic int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load shipment records into the document store",
	Long: `Insert shipment records into the configured MongoDB collection.

Values of the schema's numerical columns and target are stored as numbers,
everything else as strings. Empty cells are stored as null.

Examples:
  shipcost seed --file data/train.csv
  shipcost seed --synthetic 1000`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "CSV file to insert")
	seedCmd.Flags().IntVar(&seedSynthetic, "synthetic", 0, "insert N generated shipments instead of a file")
	seedCmd.MarkFlagsMutuallyExclusive("file", "synthetic")
	seedCmd.MarkFlagsOneRequired("file", "synthetic")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var (
		table *dataset.Table
		err   error
	)
	if seedFile != "" {
		table, err = dataset.ReadCSV(seedFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", seedFile, err)
		}
	} else {
		if seedSynthetic <= 0 {
			return fmt.Errorf("--synthetic must be positive")
		}
		table = dataset.SyntheticShipments(seedSynthetic, rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	schema, err := config.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return err
	}

	docs, err := openDocuments(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer docs.Close(ctx)
	docs.SetNumericColumns(append([]string{schema.TargetColumn}, schema.NumericalColumns...)...)

	if err := docs.InsertTable(ctx, table, cfg.MongoDatabase, cfg.MongoCollection); err != nil {
		return err
	}
	logger.Info("Inserted shipment records",
		"rows", table.Len(), "database", cfg.MongoDatabase, "collection", cfg.MongoCollection)
	fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d records into %s.%s\n", table.Len(), cfg.MongoDatabase, cfg.MongoCollection)
	return nil
}
