package mlmodel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/mlmodel/training"
	"github.com/shipcost/shipcost/pkg/storage"
)

// ShipmentRecord is one shipment to price, with the fields a customer
// fills in
type ShipmentRecord struct {
	ArtistReputation     float64 `json:"artist_reputation"`
	Height               float64 `json:"height"`
	Width                float64 `json:"width"`
	Weight               float64 `json:"weight"`
	Material             string  `json:"material"`
	PriceOfSculpture     float64 `json:"price_of_sculpture"`
	BaseShippingPrice    float64 `json:"base_shipping_price"`
	International        string  `json:"international"`
	ExpressShipment      string  `json:"express_shipment"`
	InstallationIncluded string  `json:"installation_included"`
	Transport            string  `json:"transport"`
	Fragile              string  `json:"fragile"`
	CustomerInformation  string  `json:"customer_information"`
	RemoteLocation       string  `json:"remote_location"`
}

// shipmentColumns is the column order of ToTable
var shipmentColumns = []string{
	"Artist Reputation", "Height", "Width", "Weight", "Material",
	"Price Of Sculpture", "Base Shipping Price", "International",
	"Express Shipment", "Installation Included", "Transport", "Fragile",
	"Customer Information", "Remote Location",
}

// ToTable converts the record to a one-row table
func (r ShipmentRecord) ToTable() *dataset.Table {
	return dataset.MustTable(shipmentColumns, [][]string{{
		dataset.FormatFloat(r.ArtistReputation),
		dataset.FormatFloat(r.Height),
		dataset.FormatFloat(r.Width),
		dataset.FormatFloat(r.Weight),
		r.Material,
		dataset.FormatFloat(r.PriceOfSculpture),
		dataset.FormatFloat(r.BaseShippingPrice),
		r.International,
		r.ExpressShipment,
		r.InstallationIncluded,
		r.Transport,
		r.Fragile,
		r.CustomerInformation,
		r.RemoteLocation,
	}})
}

// CostPredictor prices shipments with the published model
type CostPredictor struct {
	store    storage.ObjectStore
	registry *training.Registry
	bucket   string
	key      string
	logger   *slog.Logger
}

// NewCostPredictor creates a predictor reading bucket/key from store
func NewCostPredictor(store storage.ObjectStore, registry *training.Registry, bucket, key string, logger *slog.Logger) *CostPredictor {
	if registry == nil {
		registry = training.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CostPredictor{store: store, registry: registry, bucket: bucket, key: key, logger: logger}
}

// Predict loads the published model and returns one cost per row of t.
// The model is fetched on every call so a newly published model is picked
// up without a restart.
func (p *CostPredictor) Predict(ctx context.Context, t *dataset.Table) ([]float64, error) {
	model, err := LoadFromStore(ctx, p.store, p.registry, p.bucket, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load published model: %w", err)
	}
	p.logger.Info("Loaded published model",
		"bucket", p.bucket, "key", p.key, "model", model.ModelName, "score", model.Score)

	pred, err := model.Predict(t)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	return pred, nil
}

// PredictRecord prices a single shipment
func (p *CostPredictor) PredictRecord(ctx context.Context, r ShipmentRecord) (float64, error) {
	pred, err := p.Predict(ctx, r.ToTable())
	if err != nil {
		return 0, err
	}
	return pred[0], nil
}
