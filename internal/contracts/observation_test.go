package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod(t *testing.T) {
	in := time.Date(2017, 3, 17, 15, 4, 5, 0, time.FixedZone("KST", 9*3600))
	got := Period(in)

	assert.Equal(t, time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestAddPeriods(t *testing.T) {
	base := time.Date(2017, 11, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), AddPeriods(base, 2))
	assert.Equal(t, time.Date(2016, 11, 1, 0, 0, 0, 0, time.UTC), AddPeriods(base, -12))
}

func TestPeriodsBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			name: "same month",
			a:    time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2017, 5, 28, 0, 0, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "one month forward",
			a:    time.Date(2017, 12, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
			want: 1,
		},
		{
			name: "year span",
			a:    time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC),
			want: 12,
		},
		{
			name: "backwards",
			a:    time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC),
			want: -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodsBetween(tt.a, tt.b))
		})
	}
}

func TestParsePeriod(t *testing.T) {
	want := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"2017-01-01", "2017-01", "2017/01/15"} {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	// ambiguous month/day orderings are rejected, never guessed
	for _, in := range []string{"January 2017", "01/31/2017", "31/01/2017"} {
		_, err := ParsePeriod(in)
		assert.Error(t, err, in)
	}
}

func TestSortObservations(t *testing.T) {
	v := func(x float64) *float64 { return &x }
	obs := []Observation{
		{Entity: EntityKey{"B", "S1"}, Date: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), Volume: v(3)},
		{Entity: EntityKey{"A", "S1"}, Date: time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC), Volume: v(2)},
		{Entity: EntityKey{"A", "S1"}, Date: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), Volume: v(1)},
	}

	SortObservations(obs)

	assert.Equal(t, EntityKey{"A", "S1"}, obs[0].Entity)
	assert.Equal(t, 1.0, *obs[0].Volume)
	assert.Equal(t, 2.0, *obs[1].Volume)
	assert.Equal(t, EntityKey{"B", "S1"}, obs[2].Entity)
}

func TestEntities(t *testing.T) {
	obs := []Observation{
		{Entity: EntityKey{"B", "S2"}},
		{Entity: EntityKey{"A", "S1"}},
		{Entity: EntityKey{"B", "S2"}},
		{Entity: EntityKey{"A", "S2"}},
	}

	keys := Entities(obs)

	require.Len(t, keys, 3)
	assert.Equal(t, EntityKey{"A", "S1"}, keys[0])
	assert.Equal(t, EntityKey{"A", "S2"}, keys[1])
	assert.Equal(t, EntityKey{"B", "S2"}, keys[2])
}

func TestEntityKeyString(t *testing.T) {
	assert.Equal(t, "Agency_01/SKU_02", EntityKey{"Agency_01", "SKU_02"}.String())
}
