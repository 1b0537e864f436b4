package pipeline

import (
	"context"
	"log/slog"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/drift"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/stageerr"
)

// Validation checks both partitions against the schema and reports drift
// between them. Its verdict is advisory.
type Validation struct {
	cfg      ValidationConfig
	detector *drift.Detector
	logger   *slog.Logger
}

// NewValidation creates the validation stage
func NewValidation(cfg ValidationConfig, detector *drift.Detector, logger *slog.Logger) *Validation {
	if detector == nil {
		detector = drift.NewDetector()
	}
	return &Validation{cfg: cfg, detector: detector, logger: logger}
}

// SchemaChecks is the outcome of the column checks on one partition
type SchemaChecks struct {
	ColumnCount bool
	Numerical   bool
	Categorical bool
}

// OK reports whether every check passed
func (c SchemaChecks) OK() bool {
	return c.ColumnCount && c.Numerical && c.Categorical
}

// CheckSchema runs the column checks of schema against t. Partitions split
// from the cleaned table are expected to lack drop_columns.
func CheckSchema(schema *config.Schema, t *dataset.Table, split models.SplitSource) SchemaChecks {
	width := len(schema.Columns)
	if split == models.SplitCleaned {
		width = len(schema.KeptColumns())
	}
	return SchemaChecks{
		ColumnCount: t.Width() == width,
		Numerical:   len(t.Missing(schema.NumericalColumns...)) == 0,
		Categorical: len(t.Missing(schema.CategoricalColumns...)) == 0,
	}
}

// Run validates the ingested partitions
func (s *Validation) Run(ctx context.Context, in *models.IngestionArtefact) (*models.ValidationArtefact, error) {
	if s.cfg.Schema == nil || len(s.cfg.Schema.Columns) == 0 {
		return nil, s.fail("schema declares no columns", nil)
	}

	train, err := dataset.ReadCSV(in.TrainPath)
	if err != nil {
		return nil, s.fail("failed to read train partition", err)
	}
	test, err := dataset.ReadCSV(in.TestPath)
	if err != nil {
		return nil, s.fail("failed to read test partition", err)
	}

	trainChecks := CheckSchema(s.cfg.Schema, train, s.cfg.SplitSource)
	testChecks := CheckSchema(s.cfg.Schema, test, s.cfg.SplitSource)
	for name, c := range map[string]SchemaChecks{"train": trainChecks, "test": testChecks} {
		if !c.OK() {
			s.logger.Warn("Schema check failed",
				"partition", name,
				"column_count", c.ColumnCount,
				"numerical_columns", c.Numerical,
				"categorical_columns", c.Categorical)
		}
	}

	report, err := s.detector.Compute(train, test)
	if err != nil {
		return nil, s.fail("failed to compute drift report", err)
	}
	if err := drift.WriteReport(s.cfg.DriftReportPath, report); err != nil {
		return nil, s.fail("failed to write drift report", err)
	}
	s.logger.Info("Drift report written",
		"path", s.cfg.DriftReportPath,
		"columns", report.NumberOfColumns,
		"drifted_columns", report.NumberOfDriftedColumns,
		"dataset_drift", report.DatasetDrift)

	accepted := trainChecks.OK() && testChecks.OK() && !report.DatasetDrift
	s.logger.Info("Validation finished", "accepted", accepted)

	return &models.ValidationArtefact{
		DriftReportPath: s.cfg.DriftReportPath,
		Accepted:        accepted,
		DatasetDrift:    report.DatasetDrift,
	}, nil
}

func (s *Validation) fail(msg string, cause error) error {
	err := stageerr.NewDepth(1, stageerr.Validation, msg, cause)
	s.logger.Error("Validation failed", "error", err)
	return err
}
