package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescast/salescast/internal/contracts"
)

func TestEvaluate(t *testing.T) {
	actual := []float64{10, 20, 0}
	predicted := []float64{12, 18, 1}

	m, err := Evaluate(actual, predicted)
	require.NoError(t, err)

	assert.InDelta(t, 5.0/3.0, m.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt(9.0/3.0), m.RMSE, 1e-9)
	// MAPE skips the zero actual: (2/10 + 2/20) / 2 * 100
	assert.InDelta(t, 15.0, m.MAPE, 1e-9)
}

func TestEvaluate_Perfect(t *testing.T) {
	m, err := Evaluate([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, m.MAE)
	assert.Zero(t, m.RMSE)
	assert.Zero(t, m.MAPE)
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate([]float64{1}, []float64{1, 2})
	assert.ErrorContains(t, err, "length mismatch")

	_, err = Evaluate(nil, nil)
	assert.ErrorContains(t, err, "no values")
}

func TestCompare(t *testing.T) {
	candidates := []contracts.CandidateReport{
		{Name: "linear", Metrics: contracts.MetricSet{MAE: 4.0}},
		{Name: "ridge", Metrics: contracts.MetricSet{MAE: 3.0}, Selected: true},
	}

	report := Compare(candidates, contracts.MetricSet{MAE: 3.5})
	assert.True(t, report.BeatsBaseline)

	report = Compare(candidates, contracts.MetricSet{MAE: 3.0})
	assert.False(t, report.BeatsBaseline, "equal MAE does not beat the baseline")

	report = Compare(nil, contracts.MetricSet{MAE: 1.0})
	assert.False(t, report.BeatsBaseline)
}
