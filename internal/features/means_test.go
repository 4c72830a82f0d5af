package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescast/salescast/internal/contracts"
)

func TestFitMeanTables(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	b := contracts.EntityKey{Location: "B", Product: "S1"}

	// entity A: Jan 2016=10, Jan 2017=20, Feb 2017=40
	// entity B: Jan 2017=100
	obs := append(seriesObs(a, 2016, 1, 10), seriesObs(b, 2017, 1, 100)...)
	obs = append(obs, seriesObs(a, 2017, 1, 20, 40)...)

	m := FitMeanTables(obs)

	entMonth, ent, prodMonth, ok := m.Features(a, 1)
	require.True(t, ok)
	assert.InDelta(t, 15.0, entMonth, 1e-9)           // (10+20)/2
	assert.InDelta(t, 70.0/3.0, ent, 1e-9)            // (10+20+40)/3
	assert.InDelta(t, 130.0/3.0, prodMonth, 1e-9)     // (10+20+100)/3 across locations
}

func TestMeanTables_FallbackLevels(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	m := FitMeanTables(seriesObs(a, 2017, 3, 30, 60)) // Mar=30, Apr=60

	// month never seen for the entity falls back to the entity mean,
	// and likewise for the product-month table
	entMonth, ent, prodMonth, ok := m.Features(a, 12)
	require.True(t, ok)
	assert.InDelta(t, 45.0, entMonth, 1e-9)
	assert.InDelta(t, 45.0, ent, 1e-9)
	assert.InDelta(t, 45.0, prodMonth, 1e-9)
}

func TestMeanTables_UnseenEntity(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	m := FitMeanTables(seriesObs(a, 2017, 1, 10))

	_, _, _, ok := m.Features(contracts.EntityKey{Location: "Z", Product: "S9"}, 1)
	assert.False(t, ok)
}

func TestBaselineFor(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	m := FitMeanTables(seriesObs(a, 2017, 1, 10, 20))

	v, ok := m.BaselineFor(a, 1)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-9)

	_, ok = m.BaselineFor(contracts.EntityKey{Location: "Z", Product: "S9"}, 1)
	assert.False(t, ok)
}
