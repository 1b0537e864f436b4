package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/preprocess"
	"github.com/shipcost/shipcost/pkg/stageerr"
)

// Transformation fits the column transformer on the train partition and
// writes the encoded matrices with the target as their last column
type Transformation struct {
	cfg    TransformationConfig
	logger *slog.Logger
}

// NewTransformation creates the transformation stage
func NewTransformation(cfg TransformationConfig, logger *slog.Logger) *Transformation {
	return &Transformation{cfg: cfg, logger: logger}
}

// Preprocessor builds the unfitted column transformer described by the schema
func (s *Transformation) Preprocessor() *preprocess.Preprocessor {
	return preprocess.New(preprocess.Options{
		OneHotColumns:    s.cfg.Schema.OneHotColumns,
		BinaryColumns:    s.cfg.Schema.BinaryColumns,
		NumericalColumns: s.cfg.Schema.NumericalColumns,
		OutlierColumns:   s.cfg.Schema.OutlierColumns,
		HandleUnknown:    s.cfg.Schema.HandleUnknown,
	})
}

// Run encodes both partitions
func (s *Transformation) Run(ctx context.Context, in *models.IngestionArtefact) (*models.TransformationArtefact, error) {
	target := s.cfg.Schema.TargetColumn

	train, err := dataset.ReadCSV(in.TrainPath)
	if err != nil {
		return nil, s.fail("failed to read train partition", err)
	}
	test, err := dataset.ReadCSV(in.TestPath)
	if err != nil {
		return nil, s.fail("failed to read test partition", err)
	}

	trainX, trainY, err := splitFeatures(train, target)
	if err != nil {
		return nil, s.fail("invalid train partition", err)
	}
	testX, testY, err := splitFeatures(test, target)
	if err != nil {
		return nil, s.fail("invalid test partition", err)
	}

	pre := s.Preprocessor()
	trainFeatures, err := pre.FitTransform(trainX)
	if err != nil {
		return nil, s.fail("failed to fit preprocessor", err)
	}
	testFeatures, err := pre.Transform(testX)
	if err != nil {
		return nil, s.fail("failed to transform test partition", err)
	}
	s.logger.Info("Fitted preprocessor", "input_columns", len(pre.InputColumns()), "output_width", pre.Width())

	trainMatrix, err := dataset.WithTarget(trainFeatures, trainY)
	if err != nil {
		return nil, s.fail("failed to assemble train matrix", err)
	}
	testMatrix, err := dataset.WithTarget(testFeatures, testY)
	if err != nil {
		return nil, s.fail("failed to assemble test matrix", err)
	}

	if err := pre.Save(s.cfg.PreprocessorPath); err != nil {
		return nil, s.fail("failed to persist preprocessor", err)
	}
	if err := dataset.SaveNPZ(s.cfg.TrainMatrixPath, trainMatrix); err != nil {
		return nil, s.fail("failed to persist train matrix", err)
	}
	if err := dataset.SaveNPZ(s.cfg.TestMatrixPath, testMatrix); err != nil {
		return nil, s.fail("failed to persist test matrix", err)
	}

	s.logger.Info("Wrote transformed data",
		"preprocessor_path", s.cfg.PreprocessorPath,
		"train_path", s.cfg.TrainMatrixPath,
		"test_path", s.cfg.TestMatrixPath)

	return &models.TransformationArtefact{
		PreprocessorPath:     s.cfg.PreprocessorPath,
		TransformedTrainPath: s.cfg.TrainMatrixPath,
		TransformedTestPath:  s.cfg.TestMatrixPath,
	}, nil
}

// splitFeatures separates the target column from the input features
func splitFeatures(t *dataset.Table, target string) (*dataset.Table, []float64, error) {
	if !t.Has(target) {
		return nil, nil, fmt.Errorf("%w: target column %q", dataset.ErrColumnNotFound, target)
	}
	y, err := t.Floats(target)
	if err != nil {
		return nil, nil, err
	}
	features, err := t.Drop(target)
	if err != nil {
		return nil, nil, err
	}
	return features, y, nil
}

func (s *Transformation) fail(msg string, cause error) error {
	err := stageerr.NewDepth(1, stageerr.Transformation, msg, cause)
	s.logger.Error("Transformation failed", "error", err)
	return err
}
