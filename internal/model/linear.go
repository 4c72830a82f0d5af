package model

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear is ordinary least squares with an intercept, solved as the
// minimum-norm least squares solution through SVD. The engineered matrix is
// rank-deficient by construction (rolling means are linear combinations of
// the lag columns), so a plain QR solve would not do.
type Linear struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// NewLinear creates an unfitted OLS regressor.
func NewLinear() *Linear {
	return &Linear{}
}

func init() {
	Register("linear", func() Regressor { return NewLinear() })
}

// Name returns the algorithm name.
func (m *Linear) Name() string {
	return "linear"
}

// Fit solves min ||Xb - y|| over the design matrix with a leading ones
// column for the intercept.
func (m *Linear) Fit(x [][]float64, y []float64) error {
	if err := validateTrainingInput(x, y); err != nil {
		return fmt.Errorf("linear fit: %w", err)
	}

	rows, cols := len(x), len(x[0])
	if rows < cols+1 {
		return fmt.Errorf("linear fit: %d rows cannot determine %d coefficients", rows, cols+1)
	}
	design := mat.NewDense(rows, cols+1, nil)
	for i, row := range x {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	target := mat.NewDense(rows, 1, y)

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return fmt.Errorf("linear fit: SVD factorization failed")
	}

	values := svd.Values(nil)
	rank := 0
	tol := 1e-12 * values[0] * float64(max(rows, cols+1))
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	if rank == 0 {
		return fmt.Errorf("linear fit: zero-rank design matrix")
	}

	var beta mat.Dense
	svd.SolveTo(&beta, target, rank)

	m.Intercept = beta.At(0, 0)
	m.Coef = make([]float64, cols)
	for j := 0; j < cols; j++ {
		m.Coef[j] = beta.At(j+1, 0)
	}
	return nil
}

// Predict returns intercept + x . coef.
func (m *Linear) Predict(x []float64) (float64, error) {
	if err := validatePredictInput(x, m.NumFeatures()); err != nil {
		return 0, fmt.Errorf("linear predict: %w", err)
	}

	yhat := m.Intercept
	for j, v := range x {
		yhat += m.Coef[j] * v
	}
	return yhat, nil
}

// NumFeatures returns the fitted feature count.
func (m *Linear) NumFeatures() int {
	return len(m.Coef)
}

// MarshalParams serializes the fitted coefficients.
func (m *Linear) MarshalParams() (json.RawMessage, error) {
	return json.Marshal(m)
}

// UnmarshalParams restores the fitted coefficients.
func (m *Linear) UnmarshalParams(params json.RawMessage) error {
	return json.Unmarshal(params, m)
}
