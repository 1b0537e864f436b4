package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/mlmodel"
	"github.com/shipcost/shipcost/pkg/mlmodel/training"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/stageerr"
	"github.com/shipcost/shipcost/pkg/storage"
)

// Evaluation scores the candidate and, when one is published, the current
// model on the raw test partition and applies the acceptance policy
type Evaluation struct {
	cfg      EvaluationConfig
	store    storage.ObjectStore
	registry *training.Registry
	logger   *slog.Logger
}

// NewEvaluation creates the evaluation stage
func NewEvaluation(cfg EvaluationConfig, store storage.ObjectStore, registry *training.Registry, logger *slog.Logger) *Evaluation {
	if registry == nil {
		registry = training.DefaultRegistry()
	}
	return &Evaluation{cfg: cfg, store: store, registry: registry, logger: logger}
}

// Run compares the trained model against the published one
func (s *Evaluation) Run(ctx context.Context, trained *models.TrainerArtefact, ingested *models.IngestionArtefact) (*models.EvaluationArtefact, error) {
	test, err := dataset.ReadCSV(ingested.TestPath)
	if err != nil {
		return nil, s.fail("failed to read test partition", err)
	}

	candidate, err := mlmodel.Load(trained.TrainedModelPath, s.registry)
	if err != nil {
		return nil, s.fail("failed to load trained model", err)
	}
	candidate.TargetColumn = s.cfg.TargetColumn
	candidateScore, err := s.score(candidate, test)
	if err != nil {
		return nil, s.fail("failed to score trained model", err)
	}
	s.logger.Info("Scored trained model", "model", candidate.ModelName, "score", candidateScore)

	result := &models.EvaluationResult{CandidateScore: candidateScore}

	exists, err := s.store.Exists(ctx, s.cfg.Bucket, s.cfg.Key)
	if err != nil {
		return nil, s.fail("failed to check for a published model", err)
	}
	if exists {
		published, err := mlmodel.LoadFromStore(ctx, s.store, s.registry, s.cfg.Bucket, s.cfg.Key)
		if err != nil {
			return nil, s.fail("failed to load published model", err)
		}
		published.TargetColumn = s.cfg.TargetColumn
		baseline, err := s.score(published, test)
		if err != nil {
			return nil, s.fail("failed to score published model", err)
		}
		result.BaselineScore = &baseline
		result.ScoreDelta = candidateScore - baseline
		s.logger.Info("Scored published model", "model", published.ModelName, "score", baseline)
	} else {
		s.logger.Info("No published model found", "bucket", s.cfg.Bucket, "key", s.cfg.Key)
	}

	result.Accepted = s.cfg.Policy.Accept(candidateScore, result.BaselineScore, s.cfg.Tolerance)
	s.logger.Info("Evaluation finished",
		"policy", s.cfg.Policy,
		"accepted", result.Accepted,
		"score_delta", result.ScoreDelta)

	return &models.EvaluationArtefact{
		Accepted:         result.Accepted,
		TrainedModelPath: trained.TrainedModelPath,
		ScoreDelta:       result.ScoreDelta,
		Result:           result,
	}, nil
}

func (s *Evaluation) score(m *mlmodel.CostModel, test *dataset.Table) (float64, error) {
	score, err := m.ScoreTable(test)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) {
		return 0, errNaNScore
	}
	return score, nil
}

func (s *Evaluation) fail(msg string, cause error) error {
	err := stageerr.NewDepth(1, stageerr.Evaluation, msg, cause)
	s.logger.Error("Evaluation failed", "error", err)
	return err
}
