package training

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const gradientBoostingName = "GradientBoostingRegressor"

// GradientBoostingRegressor fits shallow trees to the residuals of the
// running prediction under squared loss
type GradientBoostingRegressor struct {
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Subsample      float64 `json:"subsample"`
	RandomState    *int64  `json:"random_state,omitempty"`

	Init      float64                  `json:"init"`
	Trees     []*DecisionTreeRegressor `json:"trees"`
	NFeatures int                      `json:"n_features"`
}

// NewGradientBoostingRegressor creates a 100-stage booster of depth-3 trees
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
		Subsample:      1.0,
	}
}

func (g *GradientBoostingRegressor) Name() string { return gradientBoostingName }

func (g *GradientBoostingRegressor) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			g.NEstimators, err = toInt(k, v)
			if err == nil && g.NEstimators < 1 {
				err = fmt.Errorf("parameter n_estimators must be >= 1")
			}
		case "learning_rate":
			g.LearningRate, err = toFloat(k, v)
			if err == nil && g.LearningRate <= 0 {
				err = fmt.Errorf("parameter learning_rate must be > 0")
			}
		case "max_depth":
			g.MaxDepth, err = toOptionalInt(k, v)
		case "min_samples_leaf":
			g.MinSamplesLeaf, err = toInt(k, v)
		case "subsample":
			g.Subsample, err = toFloat(k, v)
			if err == nil && (g.Subsample <= 0 || g.Subsample > 1) {
				err = fmt.Errorf("parameter subsample must be in (0, 1]")
			}
		case "random_state":
			g.RandomState, err = toSeed(k, v)
		case "loss", "criterion", "verbose":
		default:
			err = unknownParam(g.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Fit runs NEstimators boosting stages
func (g *GradientBoostingRegressor) Fit(X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	rng := newRand(g.RandomState)
	n := len(X)
	g.NFeatures = p
	g.Init = floats.Sum(y) / float64(n)
	g.Trees = make([]*DecisionTreeRegressor, 0, g.NEstimators)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Init
	}
	resid := make([]float64, n)

	for stage := 0; stage < g.NEstimators; stage++ {
		floats.SubTo(resid, y, pred)

		sx, sr := X, resid
		if g.Subsample < 1 {
			sx, sr = subsample(X, resid, g.Subsample, rng)
		}
		tree := &DecisionTreeRegressor{
			MaxDepth:        g.MaxDepth,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  g.MinSamplesLeaf,
			rng:             rand.New(rand.NewSource(rng.Int63())),
		}
		if err := tree.Fit(sx, sr); err != nil {
			return fmt.Errorf("stage %d: %w", stage, err)
		}
		for i, row := range X {
			pred[i] += g.LearningRate * tree.predict(tree.Root, row)
		}
		g.Trees = append(g.Trees, tree)
	}
	return nil
}

func subsample(X [][]float64, y []float64, frac float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(X)
	k := int(frac * float64(n))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	sx := make([][]float64, k)
	sy := make([]float64, k)
	for i, j := range perm {
		sx[i] = X[j]
		sy[i] = y[j]
	}
	return sx, sy
}

// Predict sums the initial value and the shrunken stage outputs
func (g *GradientBoostingRegressor) Predict(X [][]float64) ([]float64, error) {
	if g.Trees == nil {
		return nil, ErrNotFitted
	}
	if err := checkX(X, g.NFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := g.Init
		for _, tree := range g.Trees {
			v += g.LearningRate * tree.predict(tree.Root, row)
		}
		out[i] = v
	}
	return out, nil
}
