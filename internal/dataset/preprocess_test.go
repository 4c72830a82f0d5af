package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescast/salescast/internal/contracts"
)

func obsAt(loc, prod string, year int, month time.Month, volume float64) contracts.Observation {
	return contracts.Observation{
		Entity: contracts.EntityKey{Location: loc, Product: prod},
		Date:   time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Volume: &volume,
	}
}

func TestValidateSeries(t *testing.T) {
	t.Run("valid contiguous series", func(t *testing.T) {
		obs := []contracts.Observation{
			obsAt("A", "S1", 2017, 1, 10),
			obsAt("A", "S1", 2017, 2, 11),
			obsAt("B", "S1", 2017, 5, 20), // new entity may start anywhere
		}
		assert.NoError(t, ValidateSeries(obs, true))
	})

	t.Run("duplicate period", func(t *testing.T) {
		obs := []contracts.Observation{
			obsAt("A", "S1", 2017, 1, 10),
			obsAt("A", "S1", 2017, 1, 11),
		}
		err := ValidateSeries(obs, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("gap names the missing period", func(t *testing.T) {
		obs := []contracts.Observation{
			obsAt("A", "S1", 2017, 1, 10),
			obsAt("A", "S1", 2017, 4, 11),
		}
		err := ValidateSeries(obs, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2017-02")
	})

	t.Run("missing target only fatal when required", func(t *testing.T) {
		obs := []contracts.Observation{
			{
				Entity: contracts.EntityKey{Location: "A", Product: "S1"},
				Date:   time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		}
		assert.Error(t, ValidateSeries(obs, true))
		assert.NoError(t, ValidateSeries(obs, false))
	})
}

func TestSplitByCutoff(t *testing.T) {
	obs := []contracts.Observation{
		obsAt("A", "S1", 2017, 1, 10),
		obsAt("A", "S1", 2017, 2, 11),
		obsAt("A", "S1", 2017, 3, 12),
	}

	train, holdout := SplitByCutoff(obs, time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC))

	require.Len(t, train, 1)
	require.Len(t, holdout, 2)
	assert.Equal(t, "2017-01", contracts.FormatPeriod(train[0].Date))
	// the cutoff period itself belongs to the holdout
	assert.Equal(t, "2017-02", contracts.FormatPeriod(holdout[0].Date))
}

func TestLatestPeriod(t *testing.T) {
	obs := []contracts.Observation{
		obsAt("A", "S1", 2017, 3, 10),
		obsAt("B", "S1", 2017, 7, 11),
		obsAt("A", "S1", 2017, 5, 12),
	}

	latest, ok := LatestPeriod(obs)
	require.True(t, ok)
	assert.Equal(t, "2017-07", contracts.FormatPeriod(latest))

	_, ok = LatestPeriod(nil)
	assert.False(t, ok)
}
