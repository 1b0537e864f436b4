package training

import "math"

// Metrics are the regression scores reported for a fitted model
type Metrics struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Evaluate computes all metrics for predictions against actual values
func Evaluate(predictions, actual []float64) Metrics {
	return Metrics{
		R2:   R2Score(actual, predictions),
		RMSE: RMSE(actual, predictions),
		MAE:  MAE(actual, predictions),
	}
}

// RMSE is the root mean squared error
func RMSE(actual, predictions []float64) float64 {
	if len(predictions) != len(actual) || len(predictions) == 0 {
		return 0
	}
	sum := 0.0
	for i := range predictions {
		diff := predictions[i] - actual[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(predictions)))
}

// MAE is the mean absolute error
func MAE(actual, predictions []float64) float64 {
	if len(predictions) != len(actual) || len(predictions) == 0 {
		return 0
	}
	sum := 0.0
	for i := range predictions {
		sum += math.Abs(predictions[i] - actual[i])
	}
	return sum / float64(len(predictions))
}

// R2Score is the coefficient of determination. A constant target scores 1
// for perfect predictions and 0 otherwise. Mismatched or empty inputs score
// NaN.
func R2Score(actual, predictions []float64) float64 {
	if len(predictions) != len(actual) || len(predictions) == 0 {
		return math.NaN()
	}

	meanActual := 0.0
	for _, v := range actual {
		meanActual += v
	}
	meanActual /= float64(len(actual))

	ssRes := 0.0
	ssTot := 0.0
	for i := range actual {
		ssRes += (actual[i] - predictions[i]) * (actual[i] - predictions[i])
		ssTot += (actual[i] - meanActual) * (actual[i] - meanActual)
	}

	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1.0 - (ssRes / ssTot)
}
