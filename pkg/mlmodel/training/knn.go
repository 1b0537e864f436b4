package training

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const kNeighborsName = "KNeighborsRegressor"

// KNeighborsRegressor predicts the (optionally distance-weighted) mean
// target of the nearest training rows
type KNeighborsRegressor struct {
	NNeighbors int     `json:"n_neighbors"`
	Weights    string  `json:"weights"` // uniform or distance
	P          float64 `json:"p"`       // Minkowski power

	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

// NewKNeighborsRegressor creates a 5-neighbour Euclidean model
func NewKNeighborsRegressor() *KNeighborsRegressor {
	return &KNeighborsRegressor{NNeighbors: 5, Weights: "uniform", P: 2}
}

func (m *KNeighborsRegressor) Name() string { return kNeighborsName }

func (m *KNeighborsRegressor) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_neighbors":
			m.NNeighbors, err = toInt(k, v)
			if err == nil && m.NNeighbors < 1 {
				err = fmt.Errorf("parameter n_neighbors must be >= 1")
			}
		case "weights":
			m.Weights, err = toString(k, v)
			if err == nil && m.Weights != "uniform" && m.Weights != "distance" {
				err = fmt.Errorf("parameter weights must be uniform or distance, got %q", m.Weights)
			}
		case "p":
			m.P, err = toFloat(k, v)
			if err == nil && m.P < 1 {
				err = fmt.Errorf("parameter p must be >= 1")
			}
		case "algorithm", "leaf_size", "n_jobs", "metric":
		default:
			err = unknownParam(m.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Fit stores the training set
func (m *KNeighborsRegressor) Fit(X [][]float64, y []float64) error {
	if _, err := checkXY(X, y); err != nil {
		return err
	}
	if len(X) < m.NNeighbors {
		return fmt.Errorf("expected n_neighbors <= n_samples, got %d > %d", m.NNeighbors, len(X))
	}
	m.X = make([][]float64, len(X))
	for i, row := range X {
		m.X[i] = append([]float64(nil), row...)
	}
	m.Y = append([]float64(nil), y...)
	return nil
}

type neighbor struct {
	dist float64
	idx  int
}

// Predict averages the targets of the nearest neighbours of each row
func (m *KNeighborsRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(m.X) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkX(X, len(m.X[0])); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	nb := make([]neighbor, len(m.X))
	for i, row := range X {
		for j, train := range m.X {
			nb[j] = neighbor{dist: floats.Distance(row, train, m.P), idx: j}
		}
		sort.SliceStable(nb, func(a, b int) bool { return nb[a].dist < nb[b].dist })
		out[i] = m.aggregate(nb[:m.NNeighbors])
	}
	return out, nil
}

func (m *KNeighborsRegressor) aggregate(nearest []neighbor) float64 {
	if m.Weights == "distance" {
		// exact matches take over, like sklearn
		var exact []float64
		for _, n := range nearest {
			if n.dist == 0 {
				exact = append(exact, m.Y[n.idx])
			}
		}
		if len(exact) > 0 {
			return floats.Sum(exact) / float64(len(exact))
		}
		var num, den float64
		for _, n := range nearest {
			w := 1 / n.dist
			num += w * m.Y[n.idx]
			den += w
		}
		return num / den
	}
	sum := 0.0
	for _, n := range nearest {
		sum += m.Y[n.idx]
	}
	return sum / float64(len(nearest))
}
