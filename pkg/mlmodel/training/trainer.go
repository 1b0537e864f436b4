package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrNotFitted    = errors.New("model is not fitted")
)

// Regressor is the contract every model family implements. A Regressor is
// JSON-serialisable once fitted; Registry.Marshal wraps it with its name.
type Regressor interface {
	// Name returns the registry name, e.g. "RandomForestRegressor".
	Name() string

	// SetParams applies hyperparameters. Unknown keys are an error.
	SetParams(params map[string]any) error

	// Fit trains on rows of features and their targets
	Fit(X [][]float64, y []float64) error

	// Predict returns one value per row
	Predict(X [][]float64) ([]float64, error)
}

// TrainingData holds the data for training and scoring
type TrainingData struct {
	TrainFeatures [][]float64 // Training features (rows x features)
	TrainLabels   []float64   // Training targets
	TestFeatures  [][]float64 // Test features
	TestLabels    []float64   // Test targets
}

// Factory creates an unfitted regressor with default hyperparameters
type Factory func() Regressor

// Registry maps model names to factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in regressor
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(linearRegressionName, func() Regressor { return NewLinearRegression() })
	r.Register(ridgeName, func() Regressor { return NewRidge() })
	r.Register(lassoName, func() Regressor { return NewLasso() })
	r.Register(elasticNetName, func() Regressor { return NewElasticNet() })
	r.Register(decisionTreeName, func() Regressor { return NewDecisionTreeRegressor() })
	r.Register(randomForestName, func() Regressor { return NewRandomForestRegressor() })
	r.Register(kNeighborsName, func() Regressor { return NewKNeighborsRegressor() })
	r.Register(gradientBoostingName, func() Regressor { return NewGradientBoostingRegressor() })
	return r
}

// Register adds or replaces a factory
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New returns a fresh regressor for name
func (r *Registry) New(name string) (Regressor, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return f(), nil
}

// Names lists registered models, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type envelope struct {
	Type  string          `json:"type"`
	State json.RawMessage `json:"state"`
}

// Marshal serialises a fitted regressor with its type name
func (r *Registry) Marshal(m Regressor) ([]byte, error) {
	state, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Name(), err)
	}
	return json.Marshal(envelope{Type: m.Name(), State: state})
}

// Unmarshal restores a regressor written by Marshal
func (r *Registry) Unmarshal(data []byte) (Regressor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode model envelope: %w", err)
	}
	m, err := r.New(env.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.State, m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}
	return m, nil
}

// checkXY validates a training set
func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("no training data provided")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d feature rows but %d targets", len(X), len(y))
	}
	p := len(X[0])
	for i, row := range X {
		if len(row) != p {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), p)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("input contains NaN or infinity at row %d", i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, fmt.Errorf("target contains NaN or infinity at row %d", i)
		}
	}
	return p, nil
}

// checkX validates rows passed to Predict
func checkX(X [][]float64, p int) error {
	for i, row := range X {
		if len(row) != p {
			return fmt.Errorf("row %d has %d features, model expects %d", i, len(row), p)
		}
		for _, v := range row {
			if math.IsNaN(v) {
				return fmt.Errorf("input contains NaN at row %d", i)
			}
		}
	}
	return nil
}
