package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear_RecoversCoefficients(t *testing.T) {
	// y = 3 + 2*x1 - 0.5*x2, noise-free
	x := [][]float64{
		{1, 2}, {2, 1}, {3, 5}, {4, 2}, {5, 8}, {6, 3}, {7, 1},
	}
	y := make([]float64, len(x))
	for i, row := range x {
		y[i] = 3 + 2*row[0] - 0.5*row[1]
	}

	m := NewLinear()
	require.NoError(t, m.Fit(x, y))

	assert.InDelta(t, 3.0, m.Intercept, 1e-8)
	assert.InDelta(t, 2.0, m.Coef[0], 1e-8)
	assert.InDelta(t, -0.5, m.Coef[1], 1e-8)

	yhat, err := m.Predict([]float64{10, 4})
	require.NoError(t, err)
	assert.InDelta(t, 21.0, yhat, 1e-8)
}

func TestLinear_PredictValidation(t *testing.T) {
	m := NewLinear()

	_, err := m.Predict([]float64{1})
	assert.ErrorContains(t, err, "not fitted")

	require.NoError(t, m.Fit([][]float64{{1}, {2}, {3}}, []float64{1, 2, 3}))
	_, err = m.Predict([]float64{1, 2})
	assert.ErrorContains(t, err, "fitted on 1")
}

func TestLinear_FitValidation(t *testing.T) {
	m := NewLinear()

	assert.Error(t, m.Fit(nil, nil))
	assert.Error(t, m.Fit([][]float64{{1}}, []float64{1, 2}))
	assert.Error(t, m.Fit([][]float64{{1, 2}, {1}}, []float64{1, 2}))
}
