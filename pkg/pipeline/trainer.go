package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/mlmodel"
	"github.com/shipcost/shipcost/pkg/mlmodel/training"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/preprocess"
	"github.com/shipcost/shipcost/pkg/stageerr"
)

// Trainer tunes every candidate model, keeps the best one and persists it
// together with the fitted preprocessor
type Trainer struct {
	cfg      TrainerConfig
	registry *training.Registry
	logger   *slog.Logger
}

// NewTrainer creates the trainer stage
func NewTrainer(cfg TrainerConfig, registry *training.Registry, logger *slog.Logger) *Trainer {
	if registry == nil {
		registry = training.DefaultRegistry()
	}
	return &Trainer{cfg: cfg, registry: registry, logger: logger}
}

// Run trains the candidates in declared order. Ties keep the earlier
// candidate. A best score under base_model_score fails the stage and no
// model file is written.
func (s *Trainer) Run(ctx context.Context, in *models.TransformationArtefact) (*models.TrainerArtefact, error) {
	trainMatrix, err := dataset.LoadNPZ(in.TransformedTrainPath)
	if err != nil {
		return nil, s.fail("failed to load train matrix", err)
	}
	testMatrix, err := dataset.LoadNPZ(in.TransformedTestPath)
	if err != nil {
		return nil, s.fail("failed to load test matrix", err)
	}
	var data training.TrainingData
	data.TrainFeatures, data.TrainLabels = dataset.SplitTarget(trainMatrix)
	data.TestFeatures, data.TestLabels = dataset.SplitTarget(testMatrix)

	var best *training.TunedModel
	for _, c := range s.cfg.Model.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, s.fail("training cancelled", err)
		}
		start := time.Now()
		tuned, err := s.registry.Tune(c.Name, paramGrid(c), data, s.cfg.Model.CVFolds)
		if err != nil {
			return nil, s.fail(fmt.Sprintf("failed to train %s", c.Name), err)
		}
		s.logger.Info("Trained candidate",
			"model", c.Name,
			"params", tuned.Params,
			"cv_score", tuned.CVScore,
			"test_score", tuned.TestScore,
			"duration", time.Since(start))

		if best == nil || tuned.TestScore > best.TestScore {
			best = tuned
		}
	}
	if best == nil {
		return nil, s.fail("no candidate models configured", nil)
	}

	if best.TestScore < s.cfg.Model.BaseModelScore {
		return nil, s.fail(fmt.Sprintf("no model reached the base score %.4f, best was %s with %.4f",
			s.cfg.Model.BaseModelScore, best.Name, best.TestScore), nil)
	}
	s.logger.Info("Selected best model", "model", best.Name, "score", best.TestScore)

	pre, err := preprocess.Load(in.PreprocessorPath)
	if err != nil {
		return nil, s.fail("failed to load preprocessor", err)
	}
	model := &mlmodel.CostModel{
		Preprocessor: pre,
		Regressor:    best.Model,
		ModelName:    best.Name,
		Params:       best.Params,
		Score:        best.TestScore,
		TargetColumn: s.cfg.TargetColumn,
		TrainedAt:    time.Now().UTC(),
	}
	if err := model.Save(s.cfg.ModelPath, s.registry); err != nil {
		return nil, s.fail("failed to persist model", err)
	}
	s.logger.Info("Saved model", "path", s.cfg.ModelPath)

	return &models.TrainerArtefact{
		TrainedModelPath: s.cfg.ModelPath,
		ModelName:        best.Name,
		Score:            best.TestScore,
	}, nil
}

func paramGrid(c config.Candidate) training.ParamGrid {
	grid := make(training.ParamGrid, len(c.Grid))
	for i, p := range c.Grid {
		grid[i] = training.Param{Name: p.Name, Values: p.Values}
	}
	return grid
}

func (s *Trainer) fail(msg string, cause error) error {
	err := stageerr.NewDepth(1, stageerr.Training, msg, cause)
	s.logger.Error("Training failed", "error", err)
	return err
}
