package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shipcost/shipcost/pkg/dataset"
	"github.com/shipcost/shipcost/pkg/mlmodel"
)

var (
	predictInput  string
	predictOutput string
	predictRecord mlmodel.ShipmentRecord
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Price shipments with the published model",
	Long: `Predict shipment cost with the model currently published to the model bucket.

Read shipments from a CSV file with the training column names, or describe a
single shipment with flags.

Examples:
  shipcost predict --input shipments.csv
  shipcost predict --input shipments.csv --output priced.csv
  shipcost predict --height 21 --width 8 --weight 3000 --material Brass \
    --price-of-sculpture 2.5 --base-shipping-price 16 --transport Airways`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictInput, "input", "i", "", "CSV file of shipments")
	f.StringVarP(&predictOutput, "output", "o", "", "write the input rows with a Predicted Cost column to this CSV")

	r := &predictRecord
	f.Float64Var(&r.ArtistReputation, "artist-reputation", 0.5, "artist reputation (0-1)")
	f.Float64Var(&r.Height, "height", 0, "height")
	f.Float64Var(&r.Width, "width", 0, "width")
	f.Float64Var(&r.Weight, "weight", 0, "weight")
	f.StringVar(&r.Material, "material", "", "material")
	f.Float64Var(&r.PriceOfSculpture, "price-of-sculpture", 0, "price of the sculpture")
	f.Float64Var(&r.BaseShippingPrice, "base-shipping-price", 0, "base shipping price")
	f.StringVar(&r.International, "international", "No", "international shipment (Yes/No)")
	f.StringVar(&r.ExpressShipment, "express-shipment", "No", "express shipment (Yes/No)")
	f.StringVar(&r.InstallationIncluded, "installation-included", "No", "installation included (Yes/No)")
	f.StringVar(&r.Transport, "transport", "Roadways", "transport (Airways, Roadways, Waterways)")
	f.StringVar(&r.Fragile, "fragile", "No", "fragile (Yes/No)")
	f.StringVar(&r.CustomerInformation, "customer-information", "Working Class", "customer information")
	f.StringVar(&r.RemoteLocation, "remote-location", "No", "remote location (Yes/No)")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input := predictRecord.ToTable()
	if predictInput != "" {
		var err error
		if input, err = dataset.ReadCSV(predictInput); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}

	store, err := openObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	predictor := mlmodel.NewCostPredictor(store, nil, cfg.ModelBucket, cfg.ModelKey, logger)
	costs, err := predictor.Predict(ctx, input)
	if err != nil {
		return err
	}

	if predictOutput != "" {
		priced, err := withPredictions(input, costs)
		if err != nil {
			return err
		}
		if err := dataset.WriteCSV(predictOutput, priced); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		logger.Info("Predictions written", "path", predictOutput, "rows", priced.Len())
	}
	return renderPredictions(cmd.OutOrStdout(), input, costs)
}

const predictedCostColumn = "Predicted Cost"

// withPredictions appends the predicted cost of each row as a new column
func withPredictions(input *dataset.Table, costs []float64) (*dataset.Table, error) {
	cells := make([]string, len(costs))
	for i, c := range costs {
		cells[i] = dataset.FormatFloat(c)
	}
	return input.AppendColumn(predictedCostColumn, cells)
}

// predictionColumns are shown next to the predicted cost when present
var predictionColumns = []string{"Material", "Transport", "Weight", "Price Of Sculpture"}

func renderPredictions(w io.Writer, input *dataset.Table, costs []float64) error {
	var shown []string
	for _, c := range predictionColumns {
		if input.Has(c) {
			shown = append(shown, c)
		}
	}
	cells := make([][]string, len(shown))
	for i, c := range shown {
		vals, err := input.Column(c)
		if err != nil {
			return err
		}
		cells[i] = vals
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(append(append([]string{"#"}, shown...), predictedCostColumn))
	table.SetAutoFormatHeaders(false)
	for row, cost := range costs {
		line := []string{strconv.Itoa(row + 1)}
		for i := range shown {
			line = append(line, cells[i][row])
		}
		table.Append(append(line, strconv.FormatFloat(cost, 'f', 2, 64)))
	}
	table.Render()
	return nil
}
