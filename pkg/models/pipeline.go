package models

import "time"

// RunStatus represents the state of a training run
type RunStatus string

const (
	RunStatusRunning        RunStatus = "running"
	RunStatusPublished      RunStatus = "published"
	RunStatusSkippedPublish RunStatus = "skipped-publish"
	RunStatusFailed         RunStatus = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusPublished || s == RunStatusSkippedPublish || s == RunStatusFailed
}

// RunResult is what a successful run hands back to its caller
type RunResult struct {
	RunID          string                  `json:"run_id"`
	Timestamp      string                  `json:"timestamp"`
	Status         RunStatus               `json:"status"`
	Ingestion      *IngestionArtefact      `json:"ingestion"`
	Validation     *ValidationArtefact     `json:"validation"`
	Transformation *TransformationArtefact `json:"transformation"`
	Trainer        *TrainerArtefact        `json:"trainer"`
	Evaluation     *EvaluationArtefact     `json:"evaluation"`
	Pusher         *PusherArtefact         `json:"pusher,omitempty"`
}

// RunRecord represents a single execution of the training pipeline as kept
// in the run ledger. It is written for traceability only and never read back
// to resume a run.
type RunRecord struct {
	ID           string     `json:"id"`
	Timestamp    string     `json:"timestamp"`
	ArtefactsDir string     `json:"artefacts_dir"`
	Status       RunStatus  `json:"status"`
	TriggerType  string     `json:"trigger_type"` // manual, scheduled
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FailedStage  string     `json:"failed_stage,omitempty"`
	Error        string     `json:"error,omitempty"`

	DriftDetected   *bool    `json:"drift_detected,omitempty"`
	ValidationOK    *bool    `json:"validation_ok,omitempty"`
	ModelName       string   `json:"model_name,omitempty"`
	CandidateScore  *float64 `json:"candidate_score,omitempty"`
	BaselineScore   *float64 `json:"baseline_score,omitempty"`
	ScoreDelta      *float64 `json:"score_delta,omitempty"`
	Accepted        *bool    `json:"accepted,omitempty"`
	BucketName      string   `json:"bucket_name,omitempty"`
	RemoteModelKey  string   `json:"remote_model_key,omitempty"`
	TrainedModelURI string   `json:"trained_model_path,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running
func (r *RunRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
