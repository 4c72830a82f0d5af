package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescast/salescast/internal/contracts"
)

func testSchema() TableSchema {
	return TableSchema{
		LocationColumn:    "agency",
		ProductColumn:     "sku",
		DateColumn:        "date",
		TargetColumn:      "volume",
		EventFlagPrefixes: []string{"fifa_", "easter_"},
	}
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	csv := `Unnamed: 0,agency,sku,date,volume,avg_max_temp,price_actual,fifa_world_cup
0,Agency_02,SKU_01,2017-02-01,20.5,25.1,1200,0
1,Agency_01,SKU_01,2017-01-01,10.0,24.0,1150,1
2,Agency_01,SKU_01,2017-02-01,12.5,,1160,0
`
	loader := NewLoader(testSchema(), zerolog.Nop())
	obs, exogCols, flagCols, err := loader.Load(writeTempCSV(t, csv))
	require.NoError(t, err)

	// sorted by (entity, date) regardless of file order
	require.Len(t, obs, 3)
	assert.Equal(t, contracts.EntityKey{Location: "Agency_01", Product: "SKU_01"}, obs[0].Entity)
	assert.Equal(t, "2017-01", contracts.FormatPeriod(obs[0].Date))
	assert.Equal(t, "2017-02", contracts.FormatPeriod(obs[1].Date))
	assert.Equal(t, contracts.EntityKey{Location: "Agency_02", Product: "SKU_01"}, obs[2].Entity)

	require.NotNil(t, obs[0].Volume)
	assert.Equal(t, 10.0, *obs[0].Volume)
	assert.Equal(t, 1, obs[0].EventFlags["fifa_world_cup"])

	// column classification: bookkeeping column dropped, flags split from exog
	assert.Equal(t, []string{"avg_max_temp", "price_actual"}, exogCols)
	assert.Equal(t, []string{"fifa_world_cup"}, flagCols)

	// empty exogenous cell stays absent instead of becoming zero
	_, ok := obs[1].Exogenous["avg_max_temp"]
	assert.False(t, ok)
	assert.Equal(t, 1160.0, obs[1].Exogenous["price_actual"])
}

func TestLoader_Load_MissingTargetColumn(t *testing.T) {
	csv := `agency,sku,date,avg_max_temp
Agency_01,SKU_01,2018-01-01,23.5
`
	loader := NewLoader(testSchema(), zerolog.Nop())
	obs, _, _, err := loader.Load(writeTempCSV(t, csv))
	require.NoError(t, err)

	// forecast request files carry no volume column
	require.Len(t, obs, 1)
	assert.False(t, obs[0].HasVolume())
}

func TestLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantMsg string
	}{
		{
			name:    "missing required column",
			csv:     "agency,date,volume\nAgency_01,2017-01-01,10\n",
			wantMsg: "required columns missing",
		},
		{
			name:    "empty entity key",
			csv:     "agency,sku,date,volume\n,SKU_01,2017-01-01,10\n",
			wantMsg: "empty entity key",
		},
		{
			name:    "bad date",
			csv:     "agency,sku,date,volume\nAgency_01,SKU_01,not-a-date,10\n",
			wantMsg: "not-a-date",
		},
		{
			name:    "bad volume",
			csv:     "agency,sku,date,volume\nAgency_01,SKU_01,2017-01-01,ten\n",
			wantMsg: "cannot parse",
		},
		{
			name:    "event flag not binary",
			csv:     "agency,sku,date,volume,fifa_world_cup\nAgency_01,SKU_01,2017-01-01,10,2\n",
			wantMsg: "event flag must be 0 or 1",
		},
	}

	loader := NewLoader(testSchema(), zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := loader.Load(writeTempCSV(t, tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
