package features

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescast/salescast/internal/contracts"
)

func testBuilder(t *testing.T, obs []contracts.Observation, exogCols, flagCols []string) *Builder {
	t.Helper()
	return NewBuilder(FitEncoder(obs), FitMeanTables(obs), exogCols, flagCols, zerolog.Nop())
}

func fullWindow(entity contracts.EntityKey, endBefore time.Time, volumes []float64) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(volumes))
	for i, v := range volumes {
		points = append(points, HistoryPoint{
			Date:   contracts.AddPeriods(endBefore, i-len(volumes)),
			Volume: v,
		})
	}
	return points
}

func TestBuildSchema_Order(t *testing.T) {
	schema := BuildSchema([]string{"avg_max_temp", "price_actual"}, []string{"fifa_world_cup"})

	want := []string{
		"location_code", "product_code", "year", "month", "quarter",
		"lag_1", "lag_2", "lag_3", "lag_6", "lag_12",
		"roll_3", "roll_6", "roll_12",
		"mean_volume_entity_month", "mean_volume_entity", "mean_volume_product_month",
		"avg_max_temp", "price_actual",
		"fifa_world_cup",
	}
	assert.Equal(t, want, schema.Columns)
}

func TestFeaturesAt_FullWindow(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	obs := seriesObs(entity, 2016, 1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	b := testBuilder(t, obs, nil, nil)

	d := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	window := fullWindow(entity, d, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	row, err := b.FeaturesAt(entity, d, window, nil, nil)
	require.NoError(t, err)
	require.Len(t, row.Values, b.Schema().Len())
	assert.False(t, row.Degraded())

	schema := b.Schema()
	get := func(name string) float64 { return row.Values[schema.Index(name)] }

	assert.Equal(t, 2017.0, get("year"))
	assert.Equal(t, 1.0, get("month"))
	assert.Equal(t, 1.0, get("quarter"))

	// lag_k is the volume exactly k periods earlier
	assert.Equal(t, 12.0, get("lag_1"))
	assert.Equal(t, 11.0, get("lag_2"))
	assert.Equal(t, 10.0, get("lag_3"))
	assert.Equal(t, 7.0, get("lag_6"))
	assert.Equal(t, 1.0, get("lag_12"))

	assert.InDelta(t, 11.0, get("roll_3"), 1e-9)  // (10+11+12)/3
	assert.InDelta(t, 9.5, get("roll_6"), 1e-9)   // (7+..+12)/6
	assert.InDelta(t, 6.5, get("roll_12"), 1e-9)  // (1+..+12)/12
}

func TestFeaturesAt_ShortWindowDegrades(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	obs := seriesObs(entity, 2017, 1, 10, 20)
	b := testBuilder(t, obs, nil, nil)

	d := time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
	window := fullWindow(entity, d, []float64{10, 20})

	row, err := b.FeaturesAt(entity, d, window, nil, nil)
	require.NoError(t, err)
	require.True(t, row.Degraded())

	schema := b.Schema()
	get := func(name string) float64 { return row.Values[schema.Index(name)] }

	// available lags are exact
	assert.Equal(t, 20.0, get("lag_1"))
	assert.Equal(t, 10.0, get("lag_2"))

	// unreachable lags fall back to the mean of the available window, flagged
	assert.InDelta(t, 15.0, get("lag_3"), 1e-9)
	assert.InDelta(t, 15.0, get("lag_12"), 1e-9)
	assert.Contains(t, row.InsufficientHistory, "lag_3")
	assert.Contains(t, row.InsufficientHistory, "lag_12")
	assert.NotContains(t, row.InsufficientHistory, "lag_1")

	// rolling means shrink to the available periods
	assert.InDelta(t, 15.0, get("roll_3"), 1e-9)
	assert.Contains(t, row.InsufficientHistory, "roll_3")
}

func TestFeaturesAt_ColdStart(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	b := testBuilder(t, seriesObs(entity, 2017, 1, 10), nil, nil)

	_, err := b.FeaturesAt(entity, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), nil, nil, nil)

	var missing *contracts.MissingExogenousError
	require.ErrorAs(t, err, &missing)
	assert.True(t, missing.IsColdStart())
}

func TestFeaturesAt_RejectsFutureWindow(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	b := testBuilder(t, seriesObs(entity, 2017, 1, 10), nil, nil)

	d := time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)
	window := []HistoryPoint{
		{Date: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), Volume: 10},
		{Date: d, Volume: 20}, // at d, not before it
	}

	_, err := b.FeaturesAt(entity, d, window, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not before")
}

func TestFeaturesAt_ExogenousFillForward(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	obs := seriesObs(entity, 2017, 1, 10, 20)
	b := testBuilder(t, obs, []string{"price_actual"}, nil)

	d := time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
	window := []HistoryPoint{
		{Date: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), Volume: 10, Exogenous: map[string]float64{"price_actual": 10.5}},
		{Date: time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC), Volume: 20},
	}

	// absent in the request: carried forward from the newest window value
	row, err := b.FeaturesAt(entity, d, window, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, row.Values[b.Schema().Index("price_actual")], 1e-9)
	assert.Contains(t, row.FilledExogenous, "price_actual")

	// present in the request: used as-is, not filled
	row, err = b.FeaturesAt(entity, d, window, map[string]float64{"price_actual": 11.0}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, row.Values[b.Schema().Index("price_actual")], 1e-9)
	assert.Empty(t, row.FilledExogenous)

	// never known anywhere: hard failure naming the column
	b2 := testBuilder(t, obs, []string{"discount"}, nil)
	_, err = b2.FeaturesAt(entity, d, window, nil, nil)
	var missing *contracts.MissingExogenousError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "discount", missing.Column)
	assert.False(t, missing.IsColdStart())
}

func TestFeaturesAt_EventFlagsDefaultZero(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	obs := seriesObs(entity, 2017, 1, 10)
	b := testBuilder(t, obs, nil, []string{"fifa_world_cup"})

	d := time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)
	window := fullWindow(entity, d, []float64{10})

	row, err := b.FeaturesAt(entity, d, window, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, row.Values[b.Schema().Index("fifa_world_cup")])

	row, err = b.FeaturesAt(entity, d, window, nil, map[string]int{"fifa_world_cup": 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, row.Values[b.Schema().Index("fifa_world_cup")])
}

func TestBuildSupervised_SkipsSeedRows(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	b := contracts.EntityKey{Location: "B", Product: "S1"}
	obs := append(seriesObs(a, 2017, 1, 10, 11, 12), seriesObs(b, 2017, 1, 20, 21)...)

	builder := testBuilder(t, obs, nil, nil)
	matrix, skipped, err := builder.BuildSupervised(obs)
	require.NoError(t, err)

	// one seed row per entity carries no derivable lags
	assert.Equal(t, 2, skipped)
	require.Equal(t, 3, matrix.Len())
	assert.Equal(t, []float64{11, 12, 21}, matrix.Y())

	// supervised rows line up with their targets
	schema := builder.Schema()
	assert.Equal(t, 10.0, matrix.Rows[0].Values[schema.Index("lag_1")])
	assert.Equal(t, 11.0, matrix.Rows[1].Values[schema.Index("lag_1")])
	assert.Equal(t, 20.0, matrix.Rows[2].Values[schema.Index("lag_1")])
}

func TestMatrix_SplitByCutoff(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	obs := seriesObs(a, 2017, 1, 10, 11, 12, 13)

	builder := testBuilder(t, obs, nil, nil)
	matrix, _, err := builder.BuildSupervised(obs)
	require.NoError(t, err)

	train, holdout := matrix.SplitByCutoff(time.Date(2017, 4, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, train.Len())
	require.Equal(t, 1, holdout.Len())
	assert.Equal(t, []float64{13}, holdout.Y())
}
