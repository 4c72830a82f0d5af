package features

import (
	"fmt"

	"github.com/salescast/salescast/internal/contracts"
)

// MeanTables holds the historical mean-volume features computed once on the
// training partition and frozen into the artifact: by (entity, month), by
// entity, and by (product, month) for cross-location seasonality. Lookups
// for combinations unseen at fit time fall back one level (entity-month to
// entity, product-month to product).
type MeanTables struct {
	EntityMonth  map[string]float64 `json:"entity_month"`
	Entity       map[string]float64 `json:"entity"`
	ProductMonth map[string]float64 `json:"product_month"`
	Product      map[string]float64 `json:"product"`
}

// FitMeanTables computes the mean tables from training observations.
func FitMeanTables(obs []contracts.Observation) *MeanTables {
	type acc struct {
		sum float64
		n   int
	}
	entityMonth := make(map[string]*acc)
	entity := make(map[string]*acc)
	productMonth := make(map[string]*acc)
	product := make(map[string]*acc)

	add := func(m map[string]*acc, key string, v float64) {
		a := m[key]
		if a == nil {
			a = &acc{}
			m[key] = a
		}
		a.sum += v
		a.n++
	}

	for _, o := range obs {
		if !o.HasVolume() {
			continue
		}
		v := *o.Volume
		month := int(o.Date.Month())
		add(entityMonth, entityMonthKey(o.Entity, month), v)
		add(entity, o.Entity.String(), v)
		add(productMonth, productMonthKey(o.Entity.Product, month), v)
		add(product, o.Entity.Product, v)
	}

	finalize := func(m map[string]*acc) map[string]float64 {
		out := make(map[string]float64, len(m))
		for k, a := range m {
			out[k] = a.sum / float64(a.n)
		}
		return out
	}

	return &MeanTables{
		EntityMonth:  finalize(entityMonth),
		Entity:       finalize(entity),
		ProductMonth: finalize(productMonth),
		Product:      finalize(product),
	}
}

// Features returns the three mean features for an entity at a calendar month.
// ok is false when the entity itself was never seen at fit time.
func (m *MeanTables) Features(entity contracts.EntityKey, month int) (entMonth, ent, prodMonth float64, ok bool) {
	ent, ok = m.Entity[entity.String()]
	if !ok {
		return 0, 0, 0, false
	}

	entMonth, found := m.EntityMonth[entityMonthKey(entity, month)]
	if !found {
		entMonth = ent
	}

	prodMonth, found = m.ProductMonth[productMonthKey(entity.Product, month)]
	if !found {
		prodMonth = m.Product[entity.Product]
	}

	return entMonth, ent, prodMonth, true
}

// BaselineFor returns the naive baseline prediction for an entity-month:
// the per-entity-per-month historical mean, entity mean as fallback.
func (m *MeanTables) BaselineFor(entity contracts.EntityKey, month int) (float64, bool) {
	entMonth, _, _, ok := m.Features(entity, month)
	return entMonth, ok
}

func entityMonthKey(entity contracts.EntityKey, month int) string {
	return fmt.Sprintf("%s|%02d", entity, month)
}

func productMonthKey(product string, month int) string {
	return fmt.Sprintf("%s|%02d", product, month)
}
