package features

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/salescast/salescast/internal/contracts"
)

// Builder derives the engineered feature vector for one (entity, date) from
// an ordered window of strictly earlier periods. The same code path runs at
// training and at inference; the only difference is where the window comes
// from (own series vs history snapshot plus chained predictions).
//
// Leakage invariant: FeaturesAt never reads anything at date >= d. The window
// is the caller's assertion of what was knowable before d.
type Builder struct {
	encoder  *Encoder
	means    *MeanTables
	exogCols []string
	flagCols []string
	schema   contracts.FeatureSchema
	log      zerolog.Logger
}

// NewBuilder creates a feature builder over frozen encoder and mean tables.
func NewBuilder(encoder *Encoder, means *MeanTables, exogCols, flagCols []string, log zerolog.Logger) *Builder {
	return &Builder{
		encoder:  encoder,
		means:    means,
		exogCols: exogCols,
		flagCols: flagCols,
		schema:   BuildSchema(exogCols, flagCols),
		log:      log.With().Str("component", "features.builder").Logger(),
	}
}

// BuildSchema returns the feature column order for the given exogenous and
// event-flag columns. This ordering is part of the artifact contract.
func BuildSchema(exogCols, flagCols []string) contracts.FeatureSchema {
	columns := []string{
		"location_code",
		"product_code",
		"year",
		"month",
		"quarter",
	}
	for _, k := range contracts.LagOffsets {
		columns = append(columns, fmt.Sprintf("lag_%d", k))
	}
	for _, w := range contracts.RollingWindows {
		columns = append(columns, fmt.Sprintf("roll_%d", w))
	}
	columns = append(columns,
		"mean_volume_entity_month",
		"mean_volume_entity",
		"mean_volume_product_month",
	)
	columns = append(columns, exogCols...)
	columns = append(columns, flagCols...)
	return contracts.FeatureSchema{Columns: columns}
}

// Schema returns the builder's feature schema.
func (b *Builder) Schema() contracts.FeatureSchema {
	return b.schema
}

// FeaturesAt computes the feature row for entity at period d.
//
// window holds every period knowable before d, oldest first, all dates
// strictly before d. exog and flags carry the request row's own values, if
// any; missing exogenous columns are filled forward from the window.
//
// An empty window is a cold start and fails. Lags and rolling means whose
// ideal span reaches before the window degrade to the mean of the available
// history and are flagged, never silently zeroed.
func (b *Builder) FeaturesAt(
	entity contracts.EntityKey,
	d time.Time,
	window []HistoryPoint,
	exog map[string]float64,
	flags map[string]int,
) (contracts.FeatureRow, error) {
	d = contracts.Period(d)
	row := contracts.FeatureRow{
		Entity: entity,
		Date:   d,
		Values: make([]float64, 0, b.schema.Len()),
	}

	if len(window) == 0 {
		return row, &contracts.MissingExogenousError{Entity: entity}
	}

	locCode, prodCode, err := b.encoder.Encode(entity)
	if err != nil {
		return row, err
	}

	// volumes keyed by how many periods before d they sit
	byOffset := make(map[int]float64, len(window))
	availSum := 0.0
	for _, p := range window {
		offset := contracts.PeriodsBetween(p.Date, d)
		if offset <= 0 {
			return row, fmt.Errorf("window for %s contains %s, not before %s",
				entity, contracts.FormatPeriod(p.Date), contracts.FormatPeriod(d))
		}
		byOffset[offset] = p.Volume
		availSum += p.Volume
	}
	availMean := availSum / float64(len(window))

	month := int(d.Month())
	row.Values = append(row.Values,
		float64(locCode),
		float64(prodCode),
		float64(d.Year()),
		float64(month),
		float64((month-1)/3+1),
	)

	for _, k := range contracts.LagOffsets {
		if v, ok := byOffset[k]; ok {
			row.Values = append(row.Values, v)
			continue
		}
		row.Values = append(row.Values, availMean)
		row.InsufficientHistory = append(row.InsufficientHistory, fmt.Sprintf("lag_%d", k))
	}

	for _, w := range contracts.RollingWindows {
		sum, count := 0.0, 0
		for offset := 1; offset <= w; offset++ {
			if v, ok := byOffset[offset]; ok {
				sum += v
				count++
			}
		}
		switch {
		case count == w:
			row.Values = append(row.Values, sum/float64(w))
		case count > 0:
			row.Values = append(row.Values, sum/float64(count))
			row.InsufficientHistory = append(row.InsufficientHistory, fmt.Sprintf("roll_%d", w))
		default:
			row.Values = append(row.Values, availMean)
			row.InsufficientHistory = append(row.InsufficientHistory, fmt.Sprintf("roll_%d", w))
		}
	}

	entMonth, ent, prodMonth, ok := b.means.Features(entity, month)
	if !ok {
		// entity entered the data after the mean tables were fit
		entMonth, ent, prodMonth = availMean, availMean, availMean
		row.InsufficientHistory = append(row.InsufficientHistory, "historical_means")
	}
	row.Values = append(row.Values, entMonth, ent, prodMonth)

	for _, col := range b.exogCols {
		value, filled, err := resolveExogenous(entity, col, exog, window)
		if err != nil {
			return row, err
		}
		if filled {
			row.FilledExogenous = append(row.FilledExogenous, col)
		}
		row.Values = append(row.Values, value)
	}

	for _, col := range b.flagCols {
		row.Values = append(row.Values, float64(flags[col]))
	}

	return row, nil
}

// BuildSupervised derives feature rows and targets for a full training set.
// For each entity the first period only seeds later windows: with zero prior
// history it has no derivable lag features and is skipped, not zero-filled.
// Returns the matrix and the number of seed rows skipped.
func (b *Builder) BuildSupervised(obs []contracts.Observation) (*Matrix, int, error) {
	matrix := &Matrix{Schema: b.schema}
	skipped := 0
	degraded := 0

	groups := contracts.GroupByEntity(obs)
	for _, entity := range contracts.Entities(obs) {
		series := groups[entity]
		window := make([]HistoryPoint, 0, len(series))

		for i, o := range series {
			if !o.HasVolume() {
				return nil, 0, contracts.NewSchemaError(fmt.Sprintf(
					"missing target for entity %s at %s", entity, contracts.FormatPeriod(o.Date)))
			}

			if i > 0 {
				row, err := b.FeaturesAt(entity, o.Date, window, o.Exogenous, o.EventFlags)
				if err != nil {
					return nil, 0, fmt.Errorf("features for %s at %s: %w",
						entity, contracts.FormatPeriod(o.Date), err)
				}
				if row.Degraded() {
					degraded++
				}
				matrix.Rows = append(matrix.Rows, row)
				matrix.Targets = append(matrix.Targets, *o.Volume)
			} else {
				skipped++
			}

			window = append(window, HistoryPoint{
				Date:      o.Date,
				Volume:    *o.Volume,
				Exogenous: o.Exogenous,
			})
		}
	}

	b.log.Info().
		Int("rows", len(matrix.Rows)).
		Int("seed_rows_skipped", skipped).
		Int("degraded_rows", degraded).
		Int("features", b.schema.Len()).
		Msg("supervised matrix built")

	return matrix, skipped, nil
}

// Matrix is an engineered feature matrix with aligned targets.
type Matrix struct {
	Schema  contracts.FeatureSchema
	Rows    []contracts.FeatureRow
	Targets []float64
}

// X returns the raw feature values.
func (m *Matrix) X() [][]float64 {
	x := make([][]float64, len(m.Rows))
	for i, r := range m.Rows {
		x[i] = r.Values
	}
	return x
}

// Y returns the targets.
func (m *Matrix) Y() []float64 {
	return m.Targets
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// SplitByCutoff partitions rows by period: before cutoff, and cutoff or later.
func (m *Matrix) SplitByCutoff(cutoff time.Time) (train, holdout *Matrix) {
	cutoff = contracts.Period(cutoff)
	train = &Matrix{Schema: m.Schema}
	holdout = &Matrix{Schema: m.Schema}
	for i, r := range m.Rows {
		if r.Date.Before(cutoff) {
			train.Rows = append(train.Rows, r)
			train.Targets = append(train.Targets, m.Targets[i])
		} else {
			holdout.Rows = append(holdout.Rows, r)
			holdout.Targets = append(holdout.Targets, m.Targets[i])
		}
	}
	return train, holdout
}
