package training

import (
	"fmt"
	"math/rand"
)

const randomForestName = "RandomForestRegressor"

// RandomForestRegressor averages trees grown on bootstrap samples
type RandomForestRegressor struct {
	NEstimators     int         `json:"n_estimators"`
	MaxDepth        int         `json:"max_depth"`
	MinSamplesSplit int         `json:"min_samples_split"`
	MinSamplesLeaf  int         `json:"min_samples_leaf"`
	MaxFeatures     MaxFeatures `json:"max_features"`
	Bootstrap       bool        `json:"bootstrap"`
	RandomState     *int64      `json:"random_state,omitempty"`

	Trees     []*DecisionTreeRegressor `json:"trees"`
	NFeatures int                      `json:"n_features"`
}

// NewRandomForestRegressor creates a forest of 100 trees considering every
// feature at each split
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
}

func (rf *RandomForestRegressor) Name() string { return randomForestName }

func (rf *RandomForestRegressor) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			rf.NEstimators, err = toInt(k, v)
			if err == nil && rf.NEstimators < 1 {
				err = fmt.Errorf("parameter n_estimators must be >= 1")
			}
		case "max_depth":
			rf.MaxDepth, err = toOptionalInt(k, v)
		case "min_samples_split":
			rf.MinSamplesSplit, err = toInt(k, v)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, err = toInt(k, v)
		case "max_features":
			rf.MaxFeatures, err = parseMaxFeatures(k, v)
		case "bootstrap":
			rf.Bootstrap, err = toBool(k, v)
		case "random_state":
			rf.RandomState, err = toSeed(k, v)
		case "n_jobs", "criterion", "verbose", "oob_score", "warm_start":
		default:
			err = unknownParam(rf.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Fit grows NEstimators trees
func (rf *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	rng := newRand(rf.RandomState)
	rf.NFeatures = p
	rf.Trees = make([]*DecisionTreeRegressor, rf.NEstimators)

	for i := range rf.Trees {
		tree := &DecisionTreeRegressor{
			MaxDepth:        rf.MaxDepth,
			MinSamplesSplit: rf.MinSamplesSplit,
			MinSamplesLeaf:  rf.MinSamplesLeaf,
			MaxFeatures:     rf.MaxFeatures,
			rng:             rand.New(rand.NewSource(rng.Int63())),
		}
		bx, by := X, y
		if rf.Bootstrap {
			bx, by = bootstrapSample(X, y, rng)
		}
		if err := tree.Fit(bx, by); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		rf.Trees[i] = tree
	}
	return nil
}

// bootstrapSample draws len(X) rows with replacement
func bootstrapSample(X [][]float64, y []float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(X)
	bx := make([][]float64, n)
	by := make([]float64, n)
	for i := 0; i < n; i++ {
		j := rng.Intn(n)
		bx[i] = X[j]
		by[i] = y[j]
	}
	return bx, by
}

// Predict averages the trees
func (rf *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkX(X, rf.NFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for _, tree := range rf.Trees {
		for i, row := range X {
			out[i] += tree.predict(tree.Root, row)
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out, nil
}

// FeatureImportance averages the normalised importances of the trees
func (rf *RandomForestRegressor) FeatureImportance() []float64 {
	imp := make([]float64, rf.NFeatures)
	if len(rf.Trees) == 0 {
		return imp
	}
	for _, tree := range rf.Trees {
		for j, v := range tree.Importance {
			imp[j] += v
		}
	}
	for j := range imp {
		imp[j] /= float64(len(rf.Trees))
	}
	return imp
}
