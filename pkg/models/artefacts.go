package models

// Artefact records are produced once by a stage and never modified after.
// Every path they hold points at a file that exists when the record is handed
// to the next stage.

// IngestionArtefact locates the train/test partitions written by ingestion
type IngestionArtefact struct {
	TrainPath string `json:"train_path"`
	TestPath  string `json:"test_path"`
}

// ValidationArtefact is advisory: nothing downstream reads Accepted
type ValidationArtefact struct {
	DriftReportPath string `json:"drift_report_path"`
	Accepted        bool   `json:"accepted"`
	DatasetDrift    bool   `json:"dataset_drift"`
}

// TransformationArtefact locates the fitted preprocessor and the transformed matrices
type TransformationArtefact struct {
	PreprocessorPath     string `json:"preprocessor_path"`
	TransformedTrainPath string `json:"transformed_train_path"`
	TransformedTestPath  string `json:"transformed_test_path"`
}

// TrainerArtefact locates the persisted composite model
type TrainerArtefact struct {
	TrainedModelPath string  `json:"trained_model_path"`
	ModelName        string  `json:"model_name"`
	Score            float64 `json:"score"`
}

// EvaluationResult is the comparison between the candidate and the published model
type EvaluationResult struct {
	CandidateScore float64  `json:"candidate_score"`
	BaselineScore  *float64 `json:"baseline_score,omitempty"`
	Accepted       bool     `json:"accepted"`
	ScoreDelta     float64  `json:"score_delta"`
}

// HasBaseline reports whether a previously published model was scored
func (r *EvaluationResult) HasBaseline() bool {
	return r.BaselineScore != nil
}

// EvaluationArtefact carries the single accept/reject decision of a run
type EvaluationArtefact struct {
	Accepted         bool              `json:"accepted"`
	TrainedModelPath string            `json:"trained_model_path"`
	ScoreDelta       float64           `json:"score_delta"`
	Result           *EvaluationResult `json:"result,omitempty"`
}

// PusherArtefact names where the model was published
type PusherArtefact struct {
	BucketName     string `json:"bucket_name"`
	RemoteModelKey string `json:"remote_model_key"`
}
