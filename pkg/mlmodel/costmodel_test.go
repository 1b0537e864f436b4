package mlmodel

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/mlmodel/training"
	"github.com/shipcost/shipcost/pkg/preprocess"
	"github.com/shipcost/shipcost/pkg/storage"
)

func fitCostModel(t *testing.T, tbl *dataset.Table) *CostModel {
	t.Helper()
	pre := preprocess.New(preprocess.Options{
		OneHotColumns:    []string{"International", "Express Shipment", "Installation Included", "Fragile", "Customer Information", "Remote Location"},
		BinaryColumns:    []string{"Material", "Transport"},
		NumericalColumns: []string{"Artist Reputation", "Height", "Width", "Weight", "Price Of Sculpture", "Base Shipping Price"},
	})
	X, err := pre.FitTransform(tbl)
	require.NoError(t, err)
	y, err := tbl.Floats("Cost")
	require.NoError(t, err)

	reg := training.NewLinearRegression()
	require.NoError(t, reg.Fit(X, y))

	return &CostModel{
		Preprocessor: pre,
		Regressor:    reg,
		ModelName:    reg.Name(),
		Params:       map[string]any{"fit_intercept": true},
		Score:        0.9,
		TargetColumn: "Cost",
		TrainedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCostModelPredictAndScore(t *testing.T) {
	tbl := dataset.SyntheticShipments(120, rand.New(rand.NewSource(1)))
	m := fitCostModel(t, tbl)

	pred, err := m.Predict(tbl)
	require.NoError(t, err)
	assert.Len(t, pred, 120)

	score, err := m.ScoreTable(tbl)
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)
}

func TestCostModelSaveLoad(t *testing.T) {
	tbl := dataset.SyntheticShipments(60, rand.New(rand.NewSource(2)))
	m := fitCostModel(t, tbl)
	registry := training.DefaultRegistry()

	path := filepath.Join(t.TempDir(), "ModelTrainerArtefacts", config.DefaultModelKey)
	require.NoError(t, m.Save(path, registry))

	loaded, err := Load(path, registry)
	require.NoError(t, err)
	assert.Equal(t, "LinearRegression", loaded.ModelName)
	assert.Equal(t, "Cost", loaded.TargetColumn)
	assert.Equal(t, 0.9, loaded.Score)
	assert.True(t, m.TrainedAt.Equal(loaded.TrainedAt))

	want, err := m.Predict(tbl)
	require.NoError(t, err)
	got, err := loaded.Predict(tbl)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestDecodeRejectsIncompleteModel(t *testing.T) {
	registry := training.DefaultRegistry()

	_, err := Decode([]byte(`{"model_name":"Ridge"}`), registry)
	assert.True(t, errors.Is(err, ErrIncompleteModel))

	_, err = Decode([]byte(`not json`), registry)
	assert.Error(t, err)

	_, err = (&CostModel{}).Marshal(registry)
	assert.True(t, errors.Is(err, ErrIncompleteModel))
}

func TestCostPredictorUsesPublishedModel(t *testing.T) {
	ctx := context.Background()
	tbl := dataset.SyntheticShipments(120, rand.New(rand.NewSource(5)))
	m := fitCostModel(t, tbl)
	registry := training.DefaultRegistry()

	local := filepath.Join(t.TempDir(), "model.pkl")
	require.NoError(t, m.Save(local, registry))

	store, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Upload(ctx, local, "shipping_price_model.pkl", "shipment-price-model", false))

	p := NewCostPredictor(store, registry, "shipment-price-model", "shipping_price_model.pkl", config.Discard())

	record := ShipmentRecord{
		ArtistReputation:     0.5,
		Height:               20,
		Width:                10,
		Weight:               1000,
		Material:             "Brass",
		PriceOfSculpture:     5000,
		BaseShippingPrice:    50,
		International:        "Yes",
		ExpressShipment:      "No",
		InstallationIncluded: "No",
		Transport:            "Airways",
		Fragile:              "Yes",
		CustomerInformation:  "Wealthy",
		RemoteLocation:       "No",
	}
	got, err := p.PredictRecord(ctx, record)
	require.NoError(t, err)

	want, err := m.Predict(record.ToTable())
	require.NoError(t, err)
	assert.InDelta(t, want[0], got, 1e-9)
	// 100 + 250 + 100 + 20 + 60 + 10 + 150 + 60
	assert.InDelta(t, 750, got, 60)
}

func TestCostPredictorMissingModel(t *testing.T) {
	store, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	p := NewCostPredictor(store, nil, "bucket", "missing.pkl", config.Discard())

	_, err = p.Predict(context.Background(), dataset.SyntheticShipments(1, rand.New(rand.NewSource(1))))
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
}

func TestShipmentRecordToTable(t *testing.T) {
	tbl := ShipmentRecord{Height: 12.5, Material: "Wood"}.ToTable()
	assert.Equal(t, 1, tbl.Len())
	h, err := tbl.Column("Height")
	require.NoError(t, err)
	assert.Equal(t, []string{"12.5"}, h)
	assert.NotContains(t, tbl.Columns, "Cost")
}
