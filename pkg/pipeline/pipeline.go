package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shipcost/shipcost/pkg/drift"
	"github.com/shipcost/shipcost/pkg/mlmodel/training"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/stageerr"
	"github.com/shipcost/shipcost/pkg/storage"
)

var errNaNScore = errors.New("score is undefined")

// Trigger types recorded in the run ledger
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Stage contracts. Each stage consumes the artefacts named in its signature
// and nothing else.
type (
	IngestionStage interface {
		Run(ctx context.Context) (*models.IngestionArtefact, error)
	}
	ValidationStage interface {
		Run(ctx context.Context, in *models.IngestionArtefact) (*models.ValidationArtefact, error)
	}
	TransformationStage interface {
		Run(ctx context.Context, in *models.IngestionArtefact) (*models.TransformationArtefact, error)
	}
	TrainerStage interface {
		Run(ctx context.Context, in *models.TransformationArtefact) (*models.TrainerArtefact, error)
	}
	EvaluationStage interface {
		Run(ctx context.Context, trained *models.TrainerArtefact, ingested *models.IngestionArtefact) (*models.EvaluationArtefact, error)
	}
	PusherStage interface {
		Run(ctx context.Context, trained *models.TrainerArtefact) (*models.PusherArtefact, error)
	}
)

// RunRecorder keeps the outcome of each run. Implemented by the run ledger.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
}

// Pipeline runs the stages of one run in order
type Pipeline struct {
	RunContext     *RunContext
	Ingestion      IngestionStage
	Validation     ValidationStage
	Transformation TransformationStage
	Trainer        TrainerStage
	Evaluation     EvaluationStage
	Pusher         PusherStage

	Recorder RunRecorder
	Trigger  string
	Logger   *slog.Logger
}

// Dependencies are the collaborators shared by every run
type Dependencies struct {
	Documents storage.DocumentStore
	Objects   storage.ObjectStore
	Registry  *training.Registry
	Detector  *drift.Detector
}

// New wires the real stages for one run
func New(rc *RunContext, cfgs *StageConfigs, deps Dependencies, logger *slog.Logger) *Pipeline {
	if deps.Registry == nil {
		deps.Registry = training.DefaultRegistry()
	}
	base := logger.With("run_id", rc.RunID)
	stageLogger := func(name string) *slog.Logger { return base.With("stage", name) }

	return &Pipeline{
		RunContext:     rc,
		Ingestion:      NewIngestion(cfgs.Ingestion, deps.Documents, stageLogger("ingestion")),
		Validation:     NewValidation(cfgs.Validation, deps.Detector, stageLogger("validation")),
		Transformation: NewTransformation(cfgs.Transformation, stageLogger("transformation")),
		Trainer:        NewTrainer(cfgs.Trainer, deps.Registry, stageLogger("trainer")),
		Evaluation:     NewEvaluation(cfgs.Evaluation, deps.Objects, deps.Registry, stageLogger("evaluation")),
		Pusher:         NewPusher(cfgs.Pusher, deps.Objects, stageLogger("pusher")),
		Trigger:        TriggerManual,
		Logger:         base,
	}
}

// Execute runs ingestion through evaluation and publishes the model when
// evaluation accepts it. The first stage error ends the run and is returned
// unchanged. A rejected model is not an error.
func (p *Pipeline) Execute(ctx context.Context) (*models.RunResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	record := &models.RunRecord{
		ID:           p.RunContext.RunID,
		Timestamp:    p.RunContext.Timestamp,
		ArtefactsDir: p.RunContext.RootDir,
		Status:       models.RunStatusRunning,
		TriggerType:  p.Trigger,
		StartedAt:    p.RunContext.StartedAt,
	}
	p.record(ctx, logger, record)
	logger.Info("Starting training pipeline", "artefacts_dir", p.RunContext.RootDir)

	result := &models.RunResult{RunID: p.RunContext.RunID, Timestamp: p.RunContext.Timestamp}
	err := p.execute(ctx, logger, result, record)

	now := time.Now().UTC()
	record.CompletedAt = &now
	if err != nil {
		record.Status = models.RunStatusFailed
		record.Error = err.Error()
		if kind, ok := stageerr.KindOf(err); ok {
			record.FailedStage = kind.Stage()
		}
		logger.Error("Training pipeline failed", "failed_stage", record.FailedStage, "duration", record.Duration())
	} else {
		record.Status = result.Status
		logger.Info("Training pipeline finished", "status", result.Status, "duration", record.Duration())
	}
	p.record(ctx, logger, record)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, result *models.RunResult, record *models.RunRecord) error {
	var err error

	if err = timed(logger, "ingestion", func() error {
		result.Ingestion, err = p.Ingestion.Run(ctx)
		return err
	}); err != nil {
		return err
	}

	if err = timed(logger, "validation", func() error {
		result.Validation, err = p.Validation.Run(ctx, result.Ingestion)
		return err
	}); err != nil {
		return err
	}
	validationOK := result.Validation.Accepted
	drifted := result.Validation.DatasetDrift
	record.ValidationOK, record.DriftDetected = &validationOK, &drifted
	if !validationOK {
		// advisory: the run continues
		logger.Warn("Validation did not pass, continuing", "drift_report", result.Validation.DriftReportPath)
	}

	if err = timed(logger, "transformation", func() error {
		result.Transformation, err = p.Transformation.Run(ctx, result.Ingestion)
		return err
	}); err != nil {
		return err
	}

	if err = timed(logger, "trainer", func() error {
		result.Trainer, err = p.Trainer.Run(ctx, result.Transformation)
		return err
	}); err != nil {
		return err
	}
	record.ModelName = result.Trainer.ModelName
	record.TrainedModelURI = result.Trainer.TrainedModelPath

	if err = timed(logger, "evaluation", func() error {
		result.Evaluation, err = p.Evaluation.Run(ctx, result.Trainer, result.Ingestion)
		return err
	}); err != nil {
		return err
	}
	accepted, delta := result.Evaluation.Accepted, result.Evaluation.ScoreDelta
	record.Accepted, record.ScoreDelta = &accepted, &delta
	if r := result.Evaluation.Result; r != nil {
		candidate := r.CandidateScore
		record.CandidateScore, record.BaselineScore = &candidate, r.BaselineScore
	}

	if !result.Evaluation.Accepted {
		logger.Info("Trained model rejected, skipping publish", "score_delta", delta)
		result.Status = models.RunStatusSkippedPublish
		return nil
	}

	if err = timed(logger, "pusher", func() error {
		result.Pusher, err = p.Pusher.Run(ctx, result.Trainer)
		return err
	}); err != nil {
		return err
	}
	record.BucketName = result.Pusher.BucketName
	record.RemoteModelKey = result.Pusher.RemoteModelKey
	result.Status = models.RunStatusPublished
	return nil
}

func timed(logger *slog.Logger, stage string, fn func() error) error {
	start := time.Now()
	logger.Debug("Stage started", "stage", stage)
	err := fn()
	if err == nil {
		logger.Info("Stage completed", "stage", stage, "duration", time.Since(start))
	}
	return err
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, record *models.RunRecord) {
	if p.Recorder == nil {
		return
	}
	if err := p.Recorder.SaveRun(ctx, record); err != nil {
		logger.Warn("Failed to record run", "error", err)
	}
}

// Runner starts complete, independent runs. Each call allocates a fresh run
// directory and stage configuration.
type Runner struct {
	ArtefactsDir string
	Settings     Settings
	Deps         Dependencies
	Recorder     RunRecorder
	Logger       *slog.Logger
}

// RunOnce executes one full pipeline run
func (r *Runner) RunOnce(ctx context.Context, trigger string) (*models.RunResult, error) {
	rc, err := NewRunContext(r.ArtefactsDir, time.Now())
	if err != nil {
		return nil, err
	}
	cfgs, err := NewStageConfigs(rc, r.Settings)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline settings: %w", err)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := New(rc, cfgs, r.Deps, logger)
	p.Recorder = r.Recorder
	if trigger != "" {
		p.Trigger = trigger
	}
	return p.Execute(ctx)
}
