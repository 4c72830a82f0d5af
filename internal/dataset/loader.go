package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/salescast/salescast/internal/contracts"
)

// Loader parses raw tabular files into typed, sorted Observations.
// Pure transform: no side effects beyond reading the file.
type Loader struct {
	schema TableSchema
	log    zerolog.Logger
}

// NewLoader creates a loader for the given table schema.
func NewLoader(schema TableSchema, log zerolog.Logger) *Loader {
	return &Loader{
		schema: schema,
		log:    log.With().Str("component", "dataset.loader").Logger(),
	}
}

// Load reads a CSV or XLSX file and returns observations sorted by
// (entity, date), plus the exogenous and event-flag column names found.
func (l *Loader) Load(path string) ([]contracts.Observation, []string, []string, error) {
	rows, err := l.readRows(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil, contracts.NewSchemaError("file has no header row")
	}

	layout, err := l.schema.classifyColumns(rows[0])
	if err != nil {
		return nil, nil, nil, err
	}

	obs := make([]contracts.Observation, 0, len(rows)-1)
	for n, row := range rows[1:] {
		o, err := l.parseRow(layout, row)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		obs = append(obs, o)
	}

	contracts.SortObservations(obs)

	exogCols := sortedKeys(layout.exog)
	flagCols := sortedKeys(layout.flags)

	l.log.Info().
		Str("path", path).
		Int("rows", len(obs)).
		Int("exogenous_columns", len(exogCols)).
		Int("event_flag_columns", len(flagCols)).
		Msg("dataset loaded")

	return obs, exogCols, flagCols, nil
}

// readRows reads the raw cell grid from a CSV or XLSX file.
func (l *Loader) readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return l.readXLSX(path)
	default:
		return l.readCSV(path)
	}
}

func (l *Loader) readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // length validated per row against the header
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return rows, nil
}

func (l *Loader) readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, contracts.NewSchemaError("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// parseRow converts one raw row into an Observation. Typed failures surface
// as SchemaErrors naming the offending column.
func (l *Loader) parseRow(layout *columnLayout, row []string) (contracts.Observation, error) {
	var o contracts.Observation

	o.Entity = contracts.EntityKey{
		Location: cell(row, layout.location),
		Product:  cell(row, layout.product),
	}
	if o.Entity.Location == "" || o.Entity.Product == "" {
		return o, contracts.NewSchemaError("empty entity key value",
			l.schema.LocationColumn, l.schema.ProductColumn)
	}

	date, err := contracts.ParsePeriod(cell(row, layout.date))
	if err != nil {
		return o, contracts.NewSchemaError(err.Error(), l.schema.DateColumn)
	}
	o.Date = date

	if layout.target >= 0 {
		if raw := cell(row, layout.target); raw != "" {
			v, err := parseNumber(raw)
			if err != nil {
				return o, contracts.NewSchemaError(err.Error(), l.schema.TargetColumn)
			}
			o.Volume = &v
		}
	}

	for name, idx := range layout.exog {
		raw := cell(row, idx)
		if raw == "" {
			continue // absent exogenous values are filled forward at inference
		}
		v, err := parseNumber(raw)
		if err != nil {
			return o, contracts.NewSchemaError(err.Error(), name)
		}
		if o.Exogenous == nil {
			o.Exogenous = make(map[string]float64, len(layout.exog))
		}
		o.Exogenous[name] = v
	}

	for name, idx := range layout.flags {
		raw := cell(row, idx)
		if raw == "" {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil || (v != 0 && v != 1) {
			return o, contracts.NewSchemaError("event flag must be 0 or 1", name)
		}
		if o.EventFlags == nil {
			o.EventFlags = make(map[string]int, len(layout.flags))
		}
		o.EventFlags[name] = int(v)
	}

	return o, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as number", raw)
	}
	return v, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// deterministic column order regardless of header order
	sort.Strings(keys)
	return keys
}
