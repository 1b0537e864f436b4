package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/stageerr"
	"github.com/shipcost/shipcost/pkg/storage"
)

// fake stages record the order they were called in

type callLog []string

func (c *callLog) add(name string) { *c = append(*c, name) }

type fakeIngestion struct {
	calls *callLog
	err   error
}

func (f *fakeIngestion) Run(ctx context.Context) (*models.IngestionArtefact, error) {
	f.calls.add("ingestion")
	if f.err != nil {
		return nil, f.err
	}
	return &models.IngestionArtefact{TrainPath: "train.csv", TestPath: "test.csv"}, nil
}

type fakeValidation struct {
	calls    *callLog
	accepted bool
}

func (f *fakeValidation) Run(ctx context.Context, in *models.IngestionArtefact) (*models.ValidationArtefact, error) {
	f.calls.add("validation")
	return &models.ValidationArtefact{DriftReportPath: "report.yaml", Accepted: f.accepted, DatasetDrift: !f.accepted}, nil
}

type fakeTransformation struct {
	calls *callLog
}

func (f *fakeTransformation) Run(ctx context.Context, in *models.IngestionArtefact) (*models.TransformationArtefact, error) {
	f.calls.add("transformation")
	return &models.TransformationArtefact{PreprocessorPath: "pre.pkl", TransformedTrainPath: "train.npz", TransformedTestPath: "test.npz"}, nil
}

type fakeTrainer struct {
	calls *callLog
	err   error
}

func (f *fakeTrainer) Run(ctx context.Context, in *models.TransformationArtefact) (*models.TrainerArtefact, error) {
	f.calls.add("trainer")
	if f.err != nil {
		return nil, f.err
	}
	return &models.TrainerArtefact{TrainedModelPath: "/runs/model.pkl", ModelName: "Ridge", Score: 0.9}, nil
}

type fakeEvaluation struct {
	calls    *callLog
	accepted bool
}

func (f *fakeEvaluation) Run(ctx context.Context, trained *models.TrainerArtefact, ingested *models.IngestionArtefact) (*models.EvaluationArtefact, error) {
	f.calls.add("evaluation")
	baseline := 0.95
	return &models.EvaluationArtefact{
		Accepted:         f.accepted,
		TrainedModelPath: trained.TrainedModelPath,
		ScoreDelta:       -0.05,
		Result:           &models.EvaluationResult{CandidateScore: 0.9, BaselineScore: &baseline, Accepted: f.accepted, ScoreDelta: -0.05},
	}, nil
}

type fakePusher struct {
	calls  *callLog
	pushed []string
}

func (f *fakePusher) Run(ctx context.Context, trained *models.TrainerArtefact) (*models.PusherArtefact, error) {
	f.calls.add("pusher")
	f.pushed = append(f.pushed, trained.TrainedModelPath)
	return &models.PusherArtefact{BucketName: "bucket", RemoteModelKey: "key"}, nil
}

type fakeSetup struct {
	calls    callLog
	pusher   *fakePusher
	recorder *memoryRecorder
	pipeline *Pipeline
}

func newFakePipeline(t *testing.T, validationOK, accepted bool) *fakeSetup {
	t.Helper()
	rc, err := NewRunContext(t.TempDir(), fixedTime)
	if err != nil {
		t.Fatalf("Failed to create run context: %v", err)
	}
	s := &fakeSetup{recorder: newMemoryRecorder()}
	s.pusher = &fakePusher{calls: &s.calls}
	s.pipeline = &Pipeline{
		RunContext:     rc,
		Ingestion:      &fakeIngestion{calls: &s.calls},
		Validation:     &fakeValidation{calls: &s.calls, accepted: validationOK},
		Transformation: &fakeTransformation{calls: &s.calls},
		Trainer:        &fakeTrainer{calls: &s.calls},
		Evaluation:     &fakeEvaluation{calls: &s.calls, accepted: accepted},
		Pusher:         s.pusher,
		Recorder:       s.recorder,
		Trigger:        TriggerManual,
		Logger:         config.Discard(),
	}
	return s
}

func (s *fakeSetup) record(t *testing.T) models.RunRecord {
	t.Helper()
	r, ok := s.recorder.runs[s.pipeline.RunContext.RunID]
	if !ok {
		t.Fatalf("Run %s was not recorded", s.pipeline.RunContext.RunID)
	}
	return r
}

func TestExecutePublishesAcceptedModel(t *testing.T) {
	s := newFakePipeline(t, true, true)

	result, err := s.pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Status != models.RunStatusPublished {
		t.Errorf("Expected status %s, got %s", models.RunStatusPublished, result.Status)
	}
	if len(s.pusher.pushed) != 1 || s.pusher.pushed[0] != "/runs/model.pkl" {
		t.Errorf("Expected one push of the trained model, got %v", s.pusher.pushed)
	}
	want := []string{"ingestion", "validation", "transformation", "trainer", "evaluation", "pusher"}
	if len(s.calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, s.calls)
	}
	for i := range want {
		if s.calls[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], s.calls[i])
		}
	}

	rec := s.record(t)
	if rec.Status != models.RunStatusPublished {
		t.Errorf("Expected recorded status %s, got %s", models.RunStatusPublished, rec.Status)
	}
	if rec.RemoteModelKey != "key" || rec.BucketName != "bucket" {
		t.Errorf("Expected publish location to be recorded, got %s/%s", rec.BucketName, rec.RemoteModelKey)
	}
	if rec.CompletedAt == nil {
		t.Error("Expected completion time to be recorded")
	}
	if s.recorder.saves != 2 {
		t.Errorf("Expected run to be saved at start and end, got %d saves", s.recorder.saves)
	}
}

func TestExecuteSkipsPublishWhenRejected(t *testing.T) {
	s := newFakePipeline(t, true, false)

	result, err := s.pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("A rejected model must not be an error: %v", err)
	}
	if result.Status != models.RunStatusSkippedPublish {
		t.Errorf("Expected status %s, got %s", models.RunStatusSkippedPublish, result.Status)
	}
	if len(s.pusher.pushed) != 0 {
		t.Errorf("Expected no push, got %v", s.pusher.pushed)
	}
	if result.Pusher != nil {
		t.Error("Expected no pusher artefact")
	}
	rec := s.record(t)
	if rec.Accepted == nil || *rec.Accepted {
		t.Error("Expected the rejection to be recorded")
	}
	if rec.ScoreDelta == nil || *rec.ScoreDelta != -0.05 {
		t.Errorf("Expected score delta -0.05 to be recorded, got %v", rec.ScoreDelta)
	}
}

func TestExecuteContinuesAfterFailedValidation(t *testing.T) {
	s := newFakePipeline(t, false, true)

	result, err := s.pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Validation.Accepted {
		t.Error("Expected validation artefact to report failure")
	}
	if result.Status != models.RunStatusPublished {
		t.Errorf("Expected status %s, got %s", models.RunStatusPublished, result.Status)
	}
	rec := s.record(t)
	if rec.ValidationOK == nil || *rec.ValidationOK {
		t.Error("Expected failed validation to be recorded")
	}
	if rec.DriftDetected == nil || !*rec.DriftDetected {
		t.Error("Expected drift to be recorded")
	}
}

func TestExecuteStopsAtFirstStageError(t *testing.T) {
	s := newFakePipeline(t, true, true)
	stageErr := stageerr.New(stageerr.Training, "no model reached the base score", nil)
	s.pipeline.Trainer = &fakeTrainer{calls: &s.calls, err: stageErr}

	result, err := s.pipeline.Execute(context.Background())
	if err != stageErr {
		t.Fatalf("Expected the stage error unchanged, got %v", err)
	}
	if result != nil {
		t.Error("Expected no result on failure")
	}
	if s.calls[len(s.calls)-1] != "trainer" {
		t.Errorf("Expected no stage after the trainer, got %v", s.calls)
	}

	rec := s.record(t)
	if rec.Status != models.RunStatusFailed {
		t.Errorf("Expected status %s, got %s", models.RunStatusFailed, rec.Status)
	}
	if rec.FailedStage != "trainer" {
		t.Errorf("Expected failed stage trainer, got %q", rec.FailedStage)
	}
	if rec.Error == "" {
		t.Error("Expected the error message to be recorded")
	}
}

func TestExecuteIngestionFailure(t *testing.T) {
	s := newFakePipeline(t, true, true)
	s.pipeline.Ingestion = &fakeIngestion{calls: &s.calls, err: stageerr.New(stageerr.Ingestion, "failed to fetch collection", errors.New("timeout"))}

	_, err := s.pipeline.Execute(context.Background())
	if !errors.Is(err, stageerr.Ingestion) {
		t.Fatalf("Expected IngestionError, got %v", err)
	}
	if len(s.calls) != 1 {
		t.Errorf("Expected only ingestion to run, got %v", s.calls)
	}
	if rec := s.record(t); rec.FailedStage != "ingestion" {
		t.Errorf("Expected failed stage ingestion, got %q", rec.FailedStage)
	}
}

func newRunner(t *testing.T, docs storage.DocumentStore, objects storage.ObjectStore) (*Runner, *memoryRecorder) {
	t.Helper()
	recorder := newMemoryRecorder()
	return &Runner{
		ArtefactsDir: filepath.Join(t.TempDir(), "artefacts"),
		Settings:     testSettings(t),
		Deps:         Dependencies{Documents: docs, Objects: objects},
		Recorder:     recorder,
		Logger:       config.Discard(),
	}, recorder
}

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	objects, err := storage.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create object store: %v", err)
	}
	runner, recorder := newRunner(t, seededDocuments(t, 100), objects)

	first, err := runner.RunOnce(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.Status != models.RunStatusPublished {
		t.Fatalf("Expected first run to publish, got %s", first.Status)
	}
	if first.Pusher.BucketName != config.DefaultModelBucket || first.Pusher.RemoteModelKey != config.DefaultModelKey {
		t.Errorf("Unexpected publish location %s/%s", first.Pusher.BucketName, first.Pusher.RemoteModelKey)
	}
	if first.Evaluation.Result.HasBaseline() {
		t.Error("First run must not see a baseline")
	}
	if _, err := os.Stat(first.Trainer.TrainedModelPath); err != nil {
		t.Errorf("Expected local model file to remain: %v", err)
	}
	if _, err := os.Stat(first.Validation.DriftReportPath); err != nil {
		t.Errorf("Expected drift report: %v", err)
	}
	exists, err := objects.Exists(ctx, config.DefaultModelBucket, config.DefaultModelKey)
	if err != nil || !exists {
		t.Fatalf("Expected published model, exists=%v err=%v", exists, err)
	}

	second, err := runner.RunOnce(ctx, TriggerScheduled)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if !second.Evaluation.Result.HasBaseline() {
		t.Error("Second run must score the published model")
	}
	if second.RunID == first.RunID {
		t.Error("Expected distinct run ids")
	}
	if len(recorder.runs) != 2 {
		t.Errorf("Expected two recorded runs, got %d", len(recorder.runs))
	}
	if rec := recorder.runs[second.RunID]; rec.TriggerType != TriggerScheduled {
		t.Errorf("Expected scheduled trigger, got %q", rec.TriggerType)
	}
}

func TestRunnerRecordsFailure(t *testing.T) {
	objects, err := storage.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create object store: %v", err)
	}
	runner, recorder := newRunner(t, storage.NewMemoryDocumentStore(), objects)

	_, err = runner.RunOnce(context.Background(), TriggerManual)
	if !errors.Is(err, stageerr.Ingestion) {
		t.Fatalf("Expected IngestionError, got %v", err)
	}
	if len(recorder.runs) != 1 {
		t.Fatalf("Expected one recorded run, got %d", len(recorder.runs))
	}
	for _, rec := range recorder.runs {
		if rec.Status != models.RunStatusFailed || rec.FailedStage != "ingestion" {
			t.Errorf("Expected failed ingestion run, got %s/%s", rec.Status, rec.FailedStage)
		}
	}
}
