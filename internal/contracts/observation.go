package contracts

import (
	"fmt"
	"sort"
	"time"
)

// EntityKey identifies one (location, product) time series.
// Two entities never share history.
type EntityKey struct {
	Location string `json:"location"`
	Product  string `json:"product"`
}

// String returns a stable "location/product" form for logging and map keys.
func (k EntityKey) String() string {
	return k.Location + "/" + k.Product
}

// Less orders keys by location, then product.
func (k EntityKey) Less(other EntityKey) bool {
	if k.Location != other.Location {
		return k.Location < other.Location
	}
	return k.Product < other.Product
}

// Observation is one row of input data at monthly granularity.
// Volume is nil for forecast requests where the target is unknown.
type Observation struct {
	Entity     EntityKey          `json:"entity"`
	Date       time.Time          `json:"date"` // normalized to first of month, UTC
	Volume     *float64           `json:"volume,omitempty"`
	Exogenous  map[string]float64 `json:"exogenous,omitempty"`
	EventFlags map[string]int     `json:"event_flags,omitempty"`
}

// HasVolume reports whether the target value is present.
func (o Observation) HasVolume() bool {
	return o.Volume != nil
}

// Period normalizes t to the first day of its month in UTC.
// All date arithmetic in the pipeline happens on normalized periods.
func Period(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddPeriods returns the period n months after t.
func AddPeriods(t time.Time, n int) time.Time {
	return Period(t).AddDate(0, n, 0)
}

// PeriodsBetween returns the whole number of months from a to b.
// Both arguments are normalized first; b before a yields a negative count.
func PeriodsBetween(a, b time.Time) int {
	a, b = Period(a), Period(b)
	return (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
}

// SortObservations orders rows by (entity, date) in place.
// This is the precondition for every temporal derivation downstream.
func SortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].Entity != obs[j].Entity {
			return obs[i].Entity.Less(obs[j].Entity)
		}
		return obs[i].Date.Before(obs[j].Date)
	})
}

// GroupByEntity partitions sorted observations into per-entity series.
// Within each group the input order (ascending date) is preserved.
func GroupByEntity(obs []Observation) map[EntityKey][]Observation {
	groups := make(map[EntityKey][]Observation)
	for _, o := range obs {
		groups[o.Entity] = append(groups[o.Entity], o)
	}
	return groups
}

// Entities returns the distinct entity keys of obs in sorted order.
func Entities(obs []Observation) []EntityKey {
	seen := make(map[EntityKey]struct{})
	var keys []EntityKey
	for _, o := range obs {
		if _, ok := seen[o.Entity]; !ok {
			seen[o.Entity] = struct{}{}
			keys = append(keys, o.Entity)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// FormatPeriod renders a period as YYYY-MM for reports and logs.
func FormatPeriod(t time.Time) string {
	return t.Format("2006-01")
}

// ParsePeriod parses year-first date layouts into a normalized period.
// The day of month is ignored. Day-first and month-first layouts are
// rejected rather than guessed: "03/04/2018" has no unambiguous month.
func ParsePeriod(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
