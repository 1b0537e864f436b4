package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// ShipmentColumns is the column layout of the shipment collection
var ShipmentColumns = []string{
	"Customer Id", "Artist Name", "Artist Reputation", "Height", "Width",
	"Weight", "Material", "Price Of Sculpture", "Base Shipping Price",
	"International", "Express Shipment", "Installation Included",
	"Transport", "Fragile", "Customer Information", "Remote Location",
	"Scheduled Date", "Delivery Date", "Customer Location", "Cost",
}

var (
	materials  = []string{"Brass", "Clay", "Aluminium", "Wood", "Marble", "Bronze", "Stone"}
	transports = []string{"Airways", "Roadways", "Waterways"}
	customers  = []string{"Wealthy", "Working Class"}
)

// SyntheticShipments generates n complete shipment rows whose cost is a
// noisy linear function of the features. Used to seed local collections.
func SyntheticShipments(n int, rng *rand.Rand) *Table {
	yesNo := func() (string, float64) {
		if rng.Intn(2) == 0 {
			return "No", 0
		}
		return "Yes", 1
	}
	uniform := func(lo, hi float64) float64 {
		return math.Round((lo+rng.Float64()*(hi-lo))*100) / 100
	}

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		reputation := uniform(0, 1)
		height := uniform(5, 50)
		width := uniform(5, 30)
		weight := uniform(100, 5000)
		price := uniform(100, 10000)
		base := uniform(10, 100)
		international, intl := yesNo()
		express, exp := yesNo()
		installation, inst := yesNo()
		fragile, frag := yesNo()
		remote, rem := yesNo()
		transport := transports[i%len(transports)]

		cost := 100 + 0.05*price + 2*base + 0.02*weight + 3*height + 20*reputation +
			150*intl + 80*exp + 40*inst + 60*frag + 30*rem +
			rng.NormFloat64()*10
		day := i%28 + 1

		rows[i] = []string{
			fmt.Sprintf("CUST-%05d", i),
			fmt.Sprintf("Artist %d", rng.Intn(50)),
			FormatFloat(reputation),
			FormatFloat(height),
			FormatFloat(width),
			FormatFloat(weight),
			materials[i%len(materials)],
			FormatFloat(price),
			FormatFloat(base),
			international,
			express,
			installation,
			transport,
			fragile,
			customers[rng.Intn(len(customers))],
			remote,
			fmt.Sprintf("2024-01-%02d", day),
			fmt.Sprintf("2024-02-%02d", day),
			fmt.Sprintf("City %d", rng.Intn(20)),
			FormatFloat(math.Round(cost*100) / 100),
		}
	}
	return MustTable(append([]string(nil), ShipmentColumns...), rows)
}
