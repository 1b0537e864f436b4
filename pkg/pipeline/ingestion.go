package pipeline

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/stageerr"
	"github.com/shipcost/shipcost/pkg/storage"
)

// Ingestion pulls the shipment collection and writes the train/test split
type Ingestion struct {
	cfg    IngestionConfig
	store  storage.DocumentStore
	logger *slog.Logger
}

// NewIngestion creates the ingestion stage
func NewIngestion(cfg IngestionConfig, store storage.DocumentStore, logger *slog.Logger) *Ingestion {
	return &Ingestion{cfg: cfg, store: store, logger: logger}
}

// Run fetches the collection, cleans a copy, splits and persists both partitions
func (s *Ingestion) Run(ctx context.Context) (*models.IngestionArtefact, error) {
	s.logger.Info("Fetching shipment data", "database", s.cfg.Database, "collection", s.cfg.Collection)

	raw, err := s.store.FetchTable(ctx, s.cfg.Database, s.cfg.Collection)
	if err != nil {
		return nil, s.fail("failed to fetch collection", err)
	}
	if raw.Len() == 0 {
		return nil, s.fail("collection is empty", dataset.ErrEmptyTable)
	}

	dropped, err := raw.Drop(s.cfg.DropColumns...)
	if err != nil {
		return nil, s.fail("failed to drop configured columns", err)
	}
	cleaned := dropped.DropNA()
	s.logger.Info("Cleaned shipment data",
		"rows", raw.Len(), "complete_rows", cleaned.Len(), "dropped_columns", len(s.cfg.DropColumns))

	source := raw
	if s.cfg.SplitSource == models.SplitCleaned {
		source = cleaned
	}

	var rng *rand.Rand
	if s.cfg.SplitSeed != nil {
		rng = rand.New(rand.NewSource(*s.cfg.SplitSeed))
	}
	train, test, err := source.Split(s.cfg.TestSize, rng)
	if err != nil {
		return nil, s.fail("failed to split data", err)
	}

	if err := dataset.WriteCSV(s.cfg.TrainPath, train); err != nil {
		return nil, s.fail("failed to write train partition", err)
	}
	if err := dataset.WriteCSV(s.cfg.TestPath, test); err != nil {
		return nil, s.fail("failed to write test partition", err)
	}

	s.logger.Info("Wrote train/test split",
		"split_source", s.cfg.SplitSource,
		"train_rows", train.Len(), "test_rows", test.Len(),
		"train_path", s.cfg.TrainPath, "test_path", s.cfg.TestPath)

	return &models.IngestionArtefact{TrainPath: s.cfg.TrainPath, TestPath: s.cfg.TestPath}, nil
}

func (s *Ingestion) fail(msg string, cause error) error {
	err := stageerr.NewDepth(1, stageerr.Ingestion, msg, cause)
	s.logger.Error("Ingestion failed", "error", err)
	return err
}
