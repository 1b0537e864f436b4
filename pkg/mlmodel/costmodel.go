package mlmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/mlmodel/training"
	"github.com/shipcost/shipcost/pkg/preprocess"
	"github.com/shipcost/shipcost/pkg/storage"
)

var ErrIncompleteModel = errors.New("cost model is missing its preprocessor or regressor")

// CostModel bundles the fitted preprocessor with the selected regressor so
// raw shipment rows can be scored in one call
type CostModel struct {
	Preprocessor *preprocess.Preprocessor
	Regressor    training.Regressor
	ModelName    string
	Params       map[string]any
	Score        float64
	TargetColumn string
	TrainedAt    time.Time
}

// costModelFile is the persisted form of a CostModel
type costModelFile struct {
	ModelName    string                   `json:"model_name"`
	Params       map[string]any           `json:"params,omitempty"`
	Score        float64                  `json:"score"`
	TargetColumn string                   `json:"target_column"`
	TrainedAt    time.Time                `json:"trained_at"`
	Preprocessor *preprocess.Preprocessor `json:"preprocessor"`
	Regressor    json.RawMessage          `json:"regressor"`
}

// Predict transforms the feature columns of t and returns one cost per row.
// Columns the preprocessor does not use, including the target, are ignored.
func (m *CostModel) Predict(t *dataset.Table) ([]float64, error) {
	if m.Preprocessor == nil || m.Regressor == nil {
		return nil, ErrIncompleteModel
	}
	X, err := m.Preprocessor.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("failed to transform input: %w", err)
	}
	return m.Regressor.Predict(X)
}

// ScoreTable returns R² of the model on t, which must carry the target column
func (m *CostModel) ScoreTable(t *dataset.Table) (float64, error) {
	actual, err := t.Floats(m.TargetColumn)
	if err != nil {
		return 0, fmt.Errorf("failed to read target column: %w", err)
	}
	pred, err := m.Predict(t)
	if err != nil {
		return 0, err
	}
	return training.R2Score(actual, pred), nil
}

// Marshal encodes the model with registry
func (m *CostModel) Marshal(registry *training.Registry) ([]byte, error) {
	if m.Preprocessor == nil || m.Regressor == nil {
		return nil, ErrIncompleteModel
	}
	reg, err := registry.Marshal(m.Regressor)
	if err != nil {
		return nil, err
	}
	return json.Marshal(costModelFile{
		ModelName:    m.ModelName,
		Params:       m.Params,
		Score:        m.Score,
		TargetColumn: m.TargetColumn,
		TrainedAt:    m.TrainedAt,
		Preprocessor: m.Preprocessor,
		Regressor:    reg,
	})
}

// Save writes the model to path, creating parent directories
func (m *CostModel) Save(path string, registry *training.Registry) error {
	data, err := m.Marshal(registry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Decode restores a model written by Marshal
func Decode(data []byte, registry *training.Registry) (*CostModel, error) {
	var f costModelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode cost model: %w", err)
	}
	if f.Preprocessor == nil || !f.Preprocessor.Fitted || len(f.Regressor) == 0 {
		return nil, ErrIncompleteModel
	}
	reg, err := registry.Unmarshal(f.Regressor)
	if err != nil {
		return nil, err
	}
	return &CostModel{
		Preprocessor: f.Preprocessor,
		Regressor:    reg,
		ModelName:    f.ModelName,
		Params:       f.Params,
		Score:        f.Score,
		TargetColumn: f.TargetColumn,
		TrainedAt:    f.TrainedAt,
	}, nil
}

// Load reads a model file
func Load(path string, registry *training.Registry) (*CostModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Decode(data, registry)
}

// LoadFromStore downloads and decodes the model at bucket/key
func LoadFromStore(ctx context.Context, store storage.ObjectStore, registry *training.Registry, bucket, key string) (*CostModel, error) {
	data, err := store.Download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s/%s: %w", bucket, key, err)
	}
	return Decode(data, registry)
}
