package training

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	linearRegressionName = "LinearRegression"
	ridgeName            = "Ridge"
	lassoName            = "Lasso"
	elasticNetName       = "ElasticNet"
)

// LinearModel is the fitted state shared by the linear regressors
type LinearModel struct {
	Coef         []float64 `json:"coef"`
	Intercept    float64   `json:"intercept"`
	FitIntercept bool      `json:"fit_intercept"`
	Fitted       bool      `json:"fitted"`
}

// Predict computes X·coef + intercept
func (m *LinearModel) Predict(X [][]float64) ([]float64, error) {
	if !m.Fitted {
		return nil, ErrNotFitted
	}
	if err := checkX(X, len(m.Coef)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = floats.Dot(row, m.Coef) + m.Intercept
	}
	return out, nil
}

// LinearRegression is ordinary least squares
type LinearRegression struct {
	LinearModel
}

// NewLinearRegression creates an unfitted model
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{LinearModel{FitIntercept: true}}
}

func (m *LinearRegression) Name() string { return linearRegressionName }

func (m *LinearRegression) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "fit_intercept":
			m.FitIntercept, err = toBool(k, v)
		case "n_jobs", "copy_X", "positive":
			// accepted for compatibility, no effect
		default:
			err = unknownParam(m.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Fit solves the normal equations. One-hot blocks are collinear with the
// intercept, so a tiny ridge term keeps the system positive definite.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	coef, intercept, err := solveRidge(X, y, 0, m.FitIntercept)
	if err != nil {
		return err
	}
	m.Coef, m.Intercept, m.Fitted = coef, intercept, true
	return nil
}

// Ridge is least squares with an L2 penalty
type Ridge struct {
	LinearModel
	Alpha float64 `json:"alpha"`
}

// NewRidge creates an unfitted model with alpha 1
func NewRidge() *Ridge {
	return &Ridge{LinearModel: LinearModel{FitIntercept: true}, Alpha: 1.0}
}

func (m *Ridge) Name() string { return ridgeName }

func (m *Ridge) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "alpha":
			m.Alpha, err = toFloat(k, v)
			if err == nil && m.Alpha < 0 {
				err = fmt.Errorf("parameter alpha must be >= 0")
			}
		case "fit_intercept":
			m.FitIntercept, err = toBool(k, v)
		case "solver", "random_state", "max_iter", "tol", "copy_X":
		default:
			err = unknownParam(m.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Ridge) Fit(X [][]float64, y []float64) error {
	coef, intercept, err := solveRidge(X, y, m.Alpha, m.FitIntercept)
	if err != nil {
		return err
	}
	m.Coef, m.Intercept, m.Fitted = coef, intercept, true
	return nil
}

// ElasticNet minimises 1/(2n)·||y - Xw||² + alpha·l1·||w||₁ + alpha·(1-l1)/2·||w||²
// by cyclic coordinate descent.
type ElasticNet struct {
	LinearModel
	Alpha   float64 `json:"alpha"`
	L1Ratio float64 `json:"l1_ratio"`
	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`

	name string
}

// NewElasticNet creates an unfitted model
func NewElasticNet() *ElasticNet {
	return &ElasticNet{
		LinearModel: LinearModel{FitIntercept: true},
		Alpha:       1.0,
		L1Ratio:     0.5,
		MaxIter:     1000,
		Tol:         1e-4,
		name:        elasticNetName,
	}
}

// NewLasso is ElasticNet with a pure L1 penalty
func NewLasso() *ElasticNet {
	m := NewElasticNet()
	m.L1Ratio = 1
	m.name = lassoName
	return m
}

func (m *ElasticNet) Name() string { return m.name }

func (m *ElasticNet) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "alpha":
			m.Alpha, err = toFloat(k, v)
		case "l1_ratio":
			if m.name == lassoName {
				err = unknownParam(m.Name(), k)
				break
			}
			m.L1Ratio, err = toFloat(k, v)
			if err == nil && (m.L1Ratio < 0 || m.L1Ratio > 1) {
				err = fmt.Errorf("parameter l1_ratio must be in [0, 1]")
			}
		case "max_iter":
			m.MaxIter, err = toInt(k, v)
		case "tol":
			m.Tol, err = toFloat(k, v)
		case "fit_intercept":
			m.FitIntercept, err = toBool(k, v)
		case "random_state", "selection", "warm_start", "precompute", "copy_X", "positive":
		default:
			err = unknownParam(m.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *ElasticNet) Fit(X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	xc, yc, xMean, yMean := center(X, y, m.FitIntercept)

	// column norms
	norms := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			norms[j] += xc[i][j] * xc[i][j]
		}
	}

	w := make([]float64, p)
	resid := append([]float64(nil), yc...)
	l1 := m.Alpha * m.L1Ratio * float64(n)
	l2 := m.Alpha * (1 - m.L1Ratio) * float64(n)

	for iter := 0; iter < m.MaxIter; iter++ {
		maxDelta, maxW := 0.0, 0.0
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += xc[i][j] * (resid[i] + xc[i][j]*old)
			}
			w[j] = softThreshold(rho, l1) / (norms[j] + l2)
			if d := w[j] - old; d != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= xc[i][j] * d
				}
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if maxW == 0 || maxDelta/maxW < m.Tol {
			break
		}
	}

	m.Coef = w
	m.Intercept = 0
	if m.FitIntercept {
		m.Intercept = yMean - floats.Dot(xMean, w)
	}
	m.Fitted = true
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	}
	return 0
}

// center subtracts column means (when fitIntercept) and returns copies
func center(X [][]float64, y []float64, fitIntercept bool) ([][]float64, []float64, []float64, float64) {
	n, p := len(X), len(X[0])
	xMean := make([]float64, p)
	yMean := 0.0
	if fitIntercept {
		for i := 0; i < n; i++ {
			floats.Add(xMean, X[i])
			yMean += y[i]
		}
		floats.Scale(1/float64(n), xMean)
		yMean /= float64(n)
	}
	xc := make([][]float64, n)
	yc := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		floats.SubTo(row, X[i], xMean)
		xc[i] = row
		yc[i] = y[i] - yMean
	}
	return xc, yc, xMean, yMean
}

// solveRidge solves (XᵀX + alpha·I)w = Xᵀy on centred data with Cholesky.
// When the system is not positive definite a growing jitter is added to
// the diagonal.
func solveRidge(X [][]float64, y []float64, alpha float64, fitIntercept bool) ([]float64, float64, error) {
	p, err := checkXY(X, y)
	if err != nil {
		return nil, 0, err
	}
	n := len(X)
	xc, yc, xMean, yMean := center(X, y, fitIntercept)
	if p == 0 {
		return []float64{}, yMean, nil
	}

	flat := make([]float64, 0, n*p)
	for _, row := range xc {
		flat = append(flat, row...)
	}
	A := mat.NewDense(n, p, flat)
	b := mat.NewVecDense(n, yc)

	var xtx mat.SymDense
	xtx.SymOuterK(1, A.T())
	var xty mat.VecDense
	xty.MulVec(A.T(), b)

	trace := 0.0
	for j := 0; j < p; j++ {
		trace += xtx.At(j, j)
	}
	jitter := 1e-10 * math.Max(1, trace/float64(p))

	for attempt := 0; attempt < 8; attempt++ {
		sys := mat.NewSymDense(p, nil)
		sys.CopySym(&xtx)
		for j := 0; j < p; j++ {
			sys.SetSym(j, j, sys.At(j, j)+alpha+jitter)
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(sys); !ok {
			jitter *= 100
			continue
		}
		var w mat.VecDense
		if err := chol.SolveVecTo(&w, &xty); err != nil {
			jitter *= 100
			continue
		}
		coef := make([]float64, p)
		for j := range coef {
			coef[j] = w.AtVec(j)
		}
		intercept := 0.0
		if fitIntercept {
			intercept = yMean - floats.Dot(xMean, coef)
		}
		return coef, intercept, nil
	}
	return nil, 0, fmt.Errorf("least squares system is singular")
}
