package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"cart", "linear", "ridge"}, Names())

	_, err := New("gradient_boost")
	assert.ErrorContains(t, err, "unknown model")

	m, err := New("linear")
	require.NoError(t, err)
	assert.Equal(t, "linear", m.Name())
	assert.Equal(t, 0, m.NumFeatures())
}

func TestParamsRoundTrip(t *testing.T) {
	x := [][]float64{
		{1, 2}, {2, 3}, {3, 1}, {4, 5}, {5, 2}, {6, 7}, {7, 4}, {8, 6},
	}
	y := []float64{3, 5, 6, 10, 11, 16, 15, 20}
	probe := []float64{4.5, 3.5}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			fitted, err := New(name)
			require.NoError(t, err)
			require.NoError(t, fitted.Fit(x, y))

			want, err := fitted.Predict(probe)
			require.NoError(t, err)

			params, err := fitted.MarshalParams()
			require.NoError(t, err)

			restored, err := New(name)
			require.NoError(t, err)
			require.NoError(t, restored.UnmarshalParams(params))
			require.Equal(t, fitted.NumFeatures(), restored.NumFeatures())

			got, err := restored.Predict(probe)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
