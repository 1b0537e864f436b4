package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/models"
)

// TimestampLayout names the per-run artefact directory
const TimestampLayout = "2006_01_02_15_04_05"

// Directory and file names under a run root
const (
	IngestionDir      = "DataIngestionArtefacts"
	ValidationDir     = "DataValidationArtefacts"
	TransformationDir = "DataTransformationArtefacts"
	TrainerDir        = "ModelTrainerArtefacts"

	TrainFileName        = "train.csv"
	TestFileName         = "test.csv"
	DriftReportFileName  = "DataDriftReport.yaml"
	PreprocessorFileName = "shipping_preprocessor.pkl"
	TrainMatrixFileName  = "train.npz"
	TestMatrixFileName   = "test.npz"
	ModelFileName        = "shipping_price_model.pkl"
)

// RunContext identifies one pipeline run. It is built once, before any
// stage runs, and never changes.
type RunContext struct {
	RunID     string
	Timestamp string
	StartedAt time.Time
	RootDir   string
}

// NewRunContext allocates the run root <artefactsDir>/<timestamp>. When a
// run already claimed that second, the first 8 characters of the run id are
// appended.
func NewRunContext(artefactsDir string, now time.Time) (*RunContext, error) {
	rc := &RunContext{
		RunID:     uuid.New().String(),
		Timestamp: now.Format(TimestampLayout),
		StartedAt: now,
	}
	if err := os.MkdirAll(artefactsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artefacts directory: %w", err)
	}

	root := filepath.Join(artefactsDir, rc.Timestamp)
	if err := os.Mkdir(root, 0755); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
		root = filepath.Join(artefactsDir, rc.Timestamp+"_"+rc.RunID[:8])
		if err := os.Mkdir(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	rc.RootDir = root
	return rc, nil
}

// Settings are the run-independent inputs the stage configs are derived from
type Settings struct {
	Database   string
	Collection string

	TestSize    float64
	SplitSource models.SplitSource
	// SplitSeed fixes the shuffle. Nil shuffles differently on every run.
	SplitSeed *int64

	Schema *config.Schema
	Model  *config.ModelConfig

	Bucket              string
	Key                 string
	AcceptancePolicy    models.AcceptancePolicy
	AcceptanceTolerance float64
	RemoveLocalModel    bool
}

// SettingsFromConfig combines the environment configuration with the parsed
// schema and model files
func SettingsFromConfig(cfg *config.Config, schema *config.Schema, model *config.ModelConfig) Settings {
	return Settings{
		Database:            cfg.MongoDatabase,
		Collection:          cfg.MongoCollection,
		TestSize:            cfg.TestSize,
		SplitSource:         cfg.SplitSource,
		Schema:              schema,
		Model:               model,
		Bucket:              cfg.ModelBucket,
		Key:                 cfg.ModelKey,
		AcceptancePolicy:    cfg.AcceptancePolicy,
		AcceptanceTolerance: cfg.AcceptanceTolerance,
		RemoveLocalModel:    cfg.RemoveLocalModel,
	}
}

// IngestionConfig is where ingestion reads from and writes to
type IngestionConfig struct {
	Dir         string
	TrainPath   string
	TestPath    string
	Database    string
	Collection  string
	DropColumns []string
	TestSize    float64
	SplitSource models.SplitSource
	SplitSeed   *int64
}

// ValidationConfig holds the schema checks and the drift report location
type ValidationConfig struct {
	Dir             string
	DriftReportPath string
	Schema          *config.Schema
	// SplitSource tells validation whether drop_columns were removed
	// before the split.
	SplitSource models.SplitSource
}

// TransformationConfig locates the preprocessor and matrix outputs
type TransformationConfig struct {
	Dir              string
	PreprocessorPath string
	TrainMatrixPath  string
	TestMatrixPath   string
	Schema           *config.Schema
}

// TrainerConfig holds the candidate models and the output model path
type TrainerConfig struct {
	Dir          string
	ModelPath    string
	Model        *config.ModelConfig
	TargetColumn string
}

// EvaluationConfig names the published model and the acceptance policy
type EvaluationConfig struct {
	Bucket       string
	Key          string
	TargetColumn string
	Policy       models.AcceptancePolicy
	Tolerance    float64
}

// PusherConfig names the publish destination
type PusherConfig struct {
	Bucket      string
	Key         string
	RemoveLocal bool
}

// StageConfigs is every stage's configuration for one run
type StageConfigs struct {
	Ingestion      IngestionConfig
	Validation     ValidationConfig
	Transformation TransformationConfig
	Trainer        TrainerConfig
	Evaluation     EvaluationConfig
	Pusher         PusherConfig
}

// NewStageConfigs derives all stage configurations from the run context
func NewStageConfigs(rc *RunContext, s Settings) (*StageConfigs, error) {
	if s.Schema == nil || s.Model == nil {
		return nil, fmt.Errorf("schema and model configuration are required")
	}
	policy := s.AcceptancePolicy
	if policy == "" {
		policy = models.AcceptAlways
	}
	split := s.SplitSource
	if split == "" {
		split = models.SplitRaw
	}

	ingestionDir := filepath.Join(rc.RootDir, IngestionDir)
	transformationDir := filepath.Join(rc.RootDir, TransformationDir)
	trainerDir := filepath.Join(rc.RootDir, TrainerDir)

	return &StageConfigs{
		Ingestion: IngestionConfig{
			Dir:         ingestionDir,
			TrainPath:   filepath.Join(ingestionDir, "Train", TrainFileName),
			TestPath:    filepath.Join(ingestionDir, "Test", TestFileName),
			Database:    s.Database,
			Collection:  s.Collection,
			DropColumns: s.Schema.DropColumns,
			TestSize:    s.TestSize,
			SplitSource: split,
			SplitSeed:   s.SplitSeed,
		},
		Validation: ValidationConfig{
			Dir:             filepath.Join(rc.RootDir, ValidationDir),
			DriftReportPath: filepath.Join(rc.RootDir, ValidationDir, DriftReportFileName),
			Schema:          s.Schema,
			SplitSource:     split,
		},
		Transformation: TransformationConfig{
			Dir:              transformationDir,
			PreprocessorPath: filepath.Join(transformationDir, PreprocessorFileName),
			TrainMatrixPath:  filepath.Join(transformationDir, "TransformedTrain", TrainMatrixFileName),
			TestMatrixPath:   filepath.Join(transformationDir, "TransformedTest", TestMatrixFileName),
			Schema:           s.Schema,
		},
		Trainer: TrainerConfig{
			Dir:          trainerDir,
			ModelPath:    filepath.Join(trainerDir, ModelFileName),
			Model:        s.Model,
			TargetColumn: s.Schema.TargetColumn,
		},
		Evaluation: EvaluationConfig{
			Bucket:       s.Bucket,
			Key:          s.Key,
			TargetColumn: s.Schema.TargetColumn,
			Policy:       policy,
			Tolerance:    s.AcceptanceTolerance,
		},
		Pusher: PusherConfig{
			Bucket:      s.Bucket,
			Key:         s.Key,
			RemoveLocal: s.RemoveLocalModel,
		},
	}, nil
}
