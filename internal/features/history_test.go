package features

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescast/salescast/internal/contracts"
)

func seriesObs(entity contracts.EntityKey, startYear int, startMonth time.Month, volumes ...float64) []contracts.Observation {
	obs := make([]contracts.Observation, 0, len(volumes))
	start := time.Date(startYear, startMonth, 1, 0, 0, 0, 0, time.UTC)
	for i := range volumes {
		v := volumes[i]
		obs = append(obs, contracts.Observation{
			Entity: entity,
			Date:   contracts.AddPeriods(start, i),
			Volume: &v,
		})
	}
	return obs
}

func TestSnapshot_RetainsLastWindow(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}

	// 15 months, window keeps the last 12
	volumes := make([]float64, 15)
	for i := range volumes {
		volumes[i] = float64(i + 1)
	}
	store := Snapshot(seriesObs(entity, 2016, 1, volumes...))

	points := store.Lookup(entity, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, points, contracts.HistoryWindow)
	assert.Equal(t, 4.0, points[0].Volume)  // months 1-3 dropped
	assert.Equal(t, 15.0, points[len(points)-1].Volume)
}

func TestLookup_StrictlyBefore(t *testing.T) {
	entity := contracts.EntityKey{Location: "A", Product: "S1"}
	store := Snapshot(seriesObs(entity, 2017, 1, 10, 11, 12))

	// asOf equal to a retained period excludes that period
	points := store.Lookup(entity, time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, points, 1)
	assert.Equal(t, 10.0, points[0].Volume)

	assert.Empty(t, store.Lookup(entity, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, store.Lookup(contracts.EntityKey{Location: "X", Product: "S1"}, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestHistoryStore_JSONRoundTrip(t *testing.T) {
	a := contracts.EntityKey{Location: "A", Product: "S1"}
	b := contracts.EntityKey{Location: "B", Product: "S2"}
	obs := append(seriesObs(a, 2017, 1, 10, 11), seriesObs(b, 2017, 6, 20)...)
	store := Snapshot(obs)

	data, err := json.Marshal(store)
	require.NoError(t, err)

	// deterministic bytes: the artifact checksum depends on it
	again, err := json.Marshal(store)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	var restored HistoryStore
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, store.Entities(), restored.Entities())
	assert.Equal(t,
		store.Lookup(a, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		restored.Lookup(a, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}
