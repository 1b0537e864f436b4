package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/storage"
)

const testSchemaYAML = `
columns:
  - Customer Id: category
  - Artist Name: category
  - Artist Reputation: float
  - Height: float
  - Width: float
  - Weight: float
  - Material: category
  - Price Of Sculpture: float
  - Base Shipping Price: float
  - International: category
  - Express Shipment: category
  - Installation Included: category
  - Transport: category
  - Fragile: category
  - Customer Information: category
  - Remote Location: category
  - Scheduled Date: category
  - Delivery Date: category
  - Customer Location: category
  - Cost: float
drop_columns: [Customer Id, Artist Name, Scheduled Date, Delivery Date, Customer Location]
numerical_columns: [Artist Reputation, Height, Width, Weight, Price Of Sculpture, Base Shipping Price]
categorical_columns: [Material, International, Express Shipment, Installation Included, Transport, Fragile, Customer Information, Remote Location]
onehot_columns: [International, Express Shipment, Installation Included, Fragile, Customer Information, Remote Location]
binary_columns: [Material, Transport]
target_column: Cost
`

const testModelYAML = `
base_model_score: 0.6
cv_folds: 2
train_model:
  LinearRegression:
  Ridge:
    alpha: [0.1, 1.0]
  DecisionTreeRegressor:
    max_depth: [4]
`

func testSchema(t *testing.T) *config.Schema {
	t.Helper()
	s, err := config.ParseSchema([]byte(testSchemaYAML))
	if err != nil {
		t.Fatalf("Failed to parse schema: %v", err)
	}
	return s
}

func testModelConfig(t *testing.T) *config.ModelConfig {
	t.Helper()
	mc, err := config.ParseModelConfig([]byte(testModelYAML))
	if err != nil {
		t.Fatalf("Failed to parse model config: %v", err)
	}
	return mc
}

func testSettings(t *testing.T) Settings {
	seed := int64(7)
	return Settings{
		Database:         "shipmentdata",
		Collection:       "ship",
		TestSize:         0.2,
		SplitSource:      models.SplitRaw,
		SplitSeed:        &seed,
		Schema:           testSchema(t),
		Model:            testModelConfig(t),
		Bucket:           config.DefaultModelBucket,
		Key:              config.DefaultModelKey,
		AcceptancePolicy: models.AcceptAlways,
	}
}

var fixedTime = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

// newTestRun allocates a run directory under a temp dir
func newTestRun(t *testing.T, s Settings) (*RunContext, *StageConfigs) {
	t.Helper()
	rc, err := NewRunContext(t.TempDir(), fixedTime)
	if err != nil {
		t.Fatalf("Failed to create run context: %v", err)
	}
	cfgs, err := NewStageConfigs(rc, s)
	if err != nil {
		t.Fatalf("Failed to build stage configs: %v", err)
	}
	return rc, cfgs
}

func seededDocuments(t *testing.T, n int) *storage.MemoryDocumentStore {
	t.Helper()
	docs := storage.NewMemoryDocumentStore()
	tbl := dataset.SyntheticShipments(n, rand.New(rand.NewSource(11)))
	if err := docs.InsertTable(context.Background(), tbl, "shipmentdata", "ship"); err != nil {
		t.Fatalf("Failed to seed documents: %v", err)
	}
	return docs
}

// memoryRecorder keeps the last saved state of each run
type memoryRecorder struct {
	mu    sync.Mutex
	saves int
	runs  map[string]models.RunRecord
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{runs: make(map[string]models.RunRecord)}
}

func (r *memoryRecorder) SaveRun(_ context.Context, run *models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.runs[run.ID] = *run
	return nil
}
