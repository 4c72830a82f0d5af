package features

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/salescast/salescast/internal/contracts"
)

// HistoryPoint is one retained period of an entity's history: the observed
// (or, during chained inference, predicted) volume plus the exogenous values
// known at that period.
type HistoryPoint struct {
	Date      time.Time          `json:"date"`
	Volume    float64            `json:"volume"`
	Exogenous map[string]float64 `json:"exogenous,omitempty"`
}

// HistoryStore holds the chronologically last HistoryWindow periods per
// entity, snapshotted at the end of training. Immutable after Snapshot:
// inference only reads it, which rules out training/serving skew by
// construction. Any update means producing a new snapshot.
type HistoryStore struct {
	records map[contracts.EntityKey][]HistoryPoint
}

// Snapshot retains the last HistoryWindow observations per entity from the
// training set. Entities with shorter history keep what they have.
func Snapshot(obs []contracts.Observation) *HistoryStore {
	store := &HistoryStore{records: make(map[contracts.EntityKey][]HistoryPoint)}

	for entity, series := range contracts.GroupByEntity(obs) {
		start := 0
		if len(series) > contracts.HistoryWindow {
			start = len(series) - contracts.HistoryWindow
		}
		points := make([]HistoryPoint, 0, len(series)-start)
		for _, o := range series[start:] {
			if !o.HasVolume() {
				continue
			}
			points = append(points, HistoryPoint{
				Date:      o.Date,
				Volume:    *o.Volume,
				Exogenous: o.Exogenous,
			})
		}
		if len(points) > 0 {
			store.records[entity] = points
		}
	}

	return store
}

// Lookup returns the retained records of entity strictly before asOf, oldest
// first. An absent entity yields an empty result; the caller decides whether
// that is a cold start. The returned slice is shared and must not be mutated.
func (s *HistoryStore) Lookup(entity contracts.EntityKey, asOf time.Time) []HistoryPoint {
	points := s.records[entity]
	asOf = contracts.Period(asOf)

	// points are sorted ascending; find the first index at or after asOf
	cut := sort.Search(len(points), func(i int) bool {
		return !points[i].Date.Before(asOf)
	})
	return points[:cut]
}

// Has reports whether any history is retained for entity.
func (s *HistoryStore) Has(entity contracts.EntityKey) bool {
	return len(s.records[entity]) > 0
}

// Entities returns the entity keys with retained history, sorted.
func (s *HistoryStore) Entities() []contracts.EntityKey {
	keys := make([]contracts.EntityKey, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// historyRecord is the serialized form: JSON objects keyed by struct keys
// rather than a map, so the artifact is deterministic.
type historyRecord struct {
	Entity contracts.EntityKey `json:"entity"`
	Points []HistoryPoint      `json:"points"`
}

// MarshalJSON serializes records sorted by entity for reproducible artifacts.
func (s *HistoryStore) MarshalJSON() ([]byte, error) {
	records := make([]historyRecord, 0, len(s.records))
	for _, entity := range s.Entities() {
		records = append(records, historyRecord{Entity: entity, Points: s.records[entity]})
	}
	return json.Marshal(records)
}

// UnmarshalJSON restores a snapshot from its serialized form.
func (s *HistoryStore) UnmarshalJSON(data []byte) error {
	var records []historyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	s.records = make(map[contracts.EntityKey][]HistoryPoint, len(records))
	for _, r := range records {
		s.records[r.Entity] = r.Points
	}
	return nil
}
