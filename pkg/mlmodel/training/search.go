package training

import (
	"fmt"
	"math"
)

// Param is one hyperparameter and the values to try for it
type Param struct {
	Name   string
	Values []any
}

// ParamGrid is an ordered list of hyperparameters
type ParamGrid []Param

// ExpandGrid returns the cartesian product of the grid in declared order,
// the last parameter varying fastest. An empty grid yields one empty set.
func ExpandGrid(grid ParamGrid) []map[string]any {
	combos := []map[string]any{{}}
	for _, p := range grid {
		if len(p.Values) == 0 {
			continue
		}
		next := make([]map[string]any, 0, len(combos)*len(p.Values))
		for _, c := range combos {
			for _, v := range p.Values {
				m := make(map[string]any, len(c)+1)
				for k, cv := range c {
					m[k] = cv
				}
				m[p.Name] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// CVResult is the cross-validated score of one parameter set
type CVResult struct {
	Params     map[string]any
	FoldScores []float64
	MeanScore  float64
}

// SearchResult is the outcome of a grid search for one model
type SearchResult struct {
	BestParams map[string]any
	BestScore  float64
	Results    []CVResult
}

// TunedModel is a model refit on the whole training partition with its
// best parameters and scored on the held-out partition
type TunedModel struct {
	Name      string
	Params    map[string]any
	CVScore   float64
	TestScore float64
	Model     Regressor
}

// GridSearch scores every parameter combination with k-fold cross
// validation. Folds are contiguous and unshuffled. The first combination
// with the strictly highest mean R² wins.
func (r *Registry) GridSearch(name string, grid ParamGrid, X [][]float64, y []float64, k int) (*SearchResult, error) {
	if k <= 1 {
		return nil, fmt.Errorf("k must be greater than 1")
	}
	if len(X) < k {
		return nil, fmt.Errorf("not enough samples for %d-fold cross-validation", k)
	}
	if _, err := r.New(name); err != nil {
		return nil, err
	}

	res := &SearchResult{BestScore: math.Inf(-1)}
	for _, params := range ExpandGrid(grid) {
		cv := CVResult{Params: params, FoldScores: make([]float64, k)}
		for fold := 0; fold < k; fold++ {
			trainX, trainY, valX, valY := kFoldSplit(X, y, fold, k)

			m, err := r.New(name)
			if err != nil {
				return nil, err
			}
			if err := m.SetParams(params); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if err := m.Fit(trainX, trainY); err != nil {
				return nil, fmt.Errorf("training %s failed at fold %d: %w", name, fold, err)
			}
			pred, err := m.Predict(valX)
			if err != nil {
				return nil, fmt.Errorf("prediction %s failed at fold %d: %w", name, fold, err)
			}
			cv.FoldScores[fold] = R2Score(valY, pred)
		}
		cv.MeanScore = orNegInf(mean(cv.FoldScores))
		res.Results = append(res.Results, cv)
		if res.BestParams == nil || cv.MeanScore > res.BestScore {
			res.BestScore = cv.MeanScore
			res.BestParams = params
		}
	}
	return res, nil
}

// Tune runs the grid search, refits the winner on all of data's training
// rows and scores it on the test rows
func (r *Registry) Tune(name string, grid ParamGrid, data TrainingData, k int) (*TunedModel, error) {
	search, err := r.GridSearch(name, grid, data.TrainFeatures, data.TrainLabels, k)
	if err != nil {
		return nil, err
	}
	m, err := r.New(name)
	if err != nil {
		return nil, err
	}
	if err := m.SetParams(search.BestParams); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := m.Fit(data.TrainFeatures, data.TrainLabels); err != nil {
		return nil, fmt.Errorf("refitting %s: %w", name, err)
	}
	pred, err := m.Predict(data.TestFeatures)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", name, err)
	}
	return &TunedModel{
		Name:      name,
		Params:    search.BestParams,
		CVScore:   search.BestScore,
		TestScore: orNegInf(R2Score(data.TestLabels, pred)),
		Model:     m,
	}, nil
}

// kFoldSplit splits data into train and validation sets for k-fold cross-validation
func kFoldSplit(X [][]float64, y []float64, fold int, k int) ([][]float64, []float64, [][]float64, []float64) {
	n := len(X)
	foldSize := n / k
	valStart := fold * foldSize
	valEnd := valStart + foldSize
	if fold == k-1 {
		valEnd = n // last fold gets remainder
	}

	trainX := append([][]float64{}, X[:valStart]...)
	trainX = append(trainX, X[valEnd:]...)
	trainY := append([]float64{}, y[:valStart]...)
	trainY = append(trainY, y[valEnd:]...)

	return trainX, trainY, X[valStart:valEnd], y[valStart:valEnd]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// orNegInf maps NaN to -Inf so it never wins a comparison
func orNegInf(score float64) float64 {
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}
