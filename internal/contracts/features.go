package contracts

import "time"

// Lag offsets and rolling window lengths, in months. Order matters: it is
// baked into the feature schema and must never change between fit and serve.
var (
	LagOffsets     = []int{1, 2, 3, 6, 12}
	RollingWindows = []int{3, 6, 12}
)

// HistoryWindow is the number of trailing periods retained per entity to seed
// lag and rolling computations at inference time.
const HistoryWindow = 12

// FeatureSchema is the exact ordered list of feature column names consumed by
// a regressor. Training and inference must agree on it byte for byte.
type FeatureSchema struct {
	Columns []string `json:"columns"`
}

// Len returns the number of feature columns.
func (s FeatureSchema) Len() int {
	return len(s.Columns)
}

// Index returns the position of name, or -1.
func (s FeatureSchema) Index(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas have identical columns in identical order.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// FeatureRow is one engineered row aligned to a FeatureSchema, plus flags
// describing degraded derivations (never silently defaulted).
type FeatureRow struct {
	Entity EntityKey
	Date   time.Time // normalized period
	Values []float64

	// InsufficientHistory lists features that fell back to the entity mean
	// because the full window was not available.
	InsufficientHistory []string

	// FilledExogenous lists exogenous columns whose values were carried
	// forward from the last known observation.
	FilledExogenous []string
}

// Degraded reports whether any feature in the row was derived from less than
// the ideal window.
func (r FeatureRow) Degraded() bool {
	return len(r.InsufficientHistory) > 0
}
