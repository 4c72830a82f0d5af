package model

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-regularized linear regression on standardized features, solved
// through the normal equations with a Cholesky factorization. Regularization
// stabilizes the heavily collinear lag/rolling columns.
type Ridge struct {
	Lambda    float64   `json:"lambda"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"` // on the standardized scale
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
}

// NewRidge creates an unfitted ridge regressor with the given penalty.
func NewRidge(lambda float64) *Ridge {
	return &Ridge{Lambda: lambda}
}

func init() {
	Register("ridge", func() Regressor { return NewRidge(1.0) })
}

// Name returns the algorithm name.
func (m *Ridge) Name() string {
	return "ridge"
}

// Fit solves (Zt Z + lambda I) b = Zt yc over standardized features Z and
// centered targets yc.
func (m *Ridge) Fit(x [][]float64, y []float64) error {
	if err := validateTrainingInput(x, y); err != nil {
		return fmt.Errorf("ridge fit: %w", err)
	}
	if m.Lambda < 0 {
		return fmt.Errorf("ridge fit: negative lambda %f", m.Lambda)
	}

	rows, cols := len(x), len(x[0])

	m.Means = make([]float64, cols)
	m.Scales = make([]float64, cols)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += x[i][j]
		}
		mean := sum / float64(rows)

		ss := 0.0
		for i := 0; i < rows; i++ {
			d := x[i][j] - mean
			ss += d * d
		}
		scale := math.Sqrt(ss / float64(rows))
		if scale == 0 {
			scale = 1 // constant column: centered to zero, coefficient stays zero
		}

		m.Means[j] = mean
		m.Scales[j] = scale
	}

	ySum := 0.0
	for _, v := range y {
		ySum += v
	}
	m.Intercept = ySum / float64(rows)

	z := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			z.Set(i, j, (x[i][j]-m.Means[j])/m.Scales[j])
		}
	}
	yc := mat.NewVecDense(rows, nil)
	for i, v := range y {
		yc.SetVec(i, v-m.Intercept)
	}

	var gram mat.Dense
	gram.Mul(z.T(), z)

	sym := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			v := gram.At(i, j)
			if i == j {
				v += m.Lambda
			}
			sym.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return fmt.Errorf("ridge fit: normal equations not positive definite")
	}

	rhs := mat.NewVecDense(cols, nil)
	rhs.MulVec(z.T(), yc)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, rhs); err != nil {
		return fmt.Errorf("ridge fit: %w", err)
	}

	m.Coef = make([]float64, cols)
	for j := 0; j < cols; j++ {
		m.Coef[j] = beta.AtVec(j)
	}
	return nil
}

// Predict standardizes x with the fitted moments and applies the coefficients.
func (m *Ridge) Predict(x []float64) (float64, error) {
	if err := validatePredictInput(x, m.NumFeatures()); err != nil {
		return 0, fmt.Errorf("ridge predict: %w", err)
	}

	yhat := m.Intercept
	for j, v := range x {
		yhat += m.Coef[j] * (v - m.Means[j]) / m.Scales[j]
	}
	return yhat, nil
}

// NumFeatures returns the fitted feature count.
func (m *Ridge) NumFeatures() int {
	return len(m.Coef)
}

// MarshalParams serializes the fitted state.
func (m *Ridge) MarshalParams() (json.RawMessage, error) {
	return json.Marshal(m)
}

// UnmarshalParams restores the fitted state.
func (m *Ridge) UnmarshalParams(params json.RawMessage) error {
	return json.Unmarshal(params, m)
}
