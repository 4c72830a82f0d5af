package features

import (
	"sort"

	"github.com/salescast/salescast/internal/contracts"
)

// Encoder maps raw categorical identifiers to dense integer codes.
// Codes are assigned in lexicographic order of the raw values, so the mapping
// is reproducible regardless of input row order. Frozen after fit: unseen
// values at inference are a hard error, never a fallback code.
type Encoder struct {
	Locations map[string]int `json:"locations"`
	Products  map[string]int `json:"products"`
}

// FitEncoder builds the encoder from the categories observed in training data.
func FitEncoder(obs []contracts.Observation) *Encoder {
	locSet := make(map[string]struct{})
	prodSet := make(map[string]struct{})
	for _, o := range obs {
		locSet[o.Entity.Location] = struct{}{}
		prodSet[o.Entity.Product] = struct{}{}
	}

	return &Encoder{
		Locations: assignCodes(locSet),
		Products:  assignCodes(prodSet),
	}
}

func assignCodes(set map[string]struct{}) map[string]int {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)

	codes := make(map[string]int, len(values))
	for i, v := range values {
		codes[v] = i
	}
	return codes
}

// Encode returns the codes for an entity's location and product.
func (e *Encoder) Encode(entity contracts.EntityKey) (locCode, prodCode int, err error) {
	locCode, ok := e.Locations[entity.Location]
	if !ok {
		return 0, 0, &contracts.UnknownCategoryError{Column: "location", Value: entity.Location}
	}
	prodCode, ok = e.Products[entity.Product]
	if !ok {
		return 0, 0, &contracts.UnknownCategoryError{Column: "product", Value: entity.Product}
	}
	return locCode, prodCode, nil
}

// DecodeLocation returns the raw location for a code.
func (e *Encoder) DecodeLocation(code int) (string, bool) {
	return decode(e.Locations, code)
}

// DecodeProduct returns the raw product for a code.
func (e *Encoder) DecodeProduct(code int) (string, bool) {
	return decode(e.Products, code)
}

func decode(codes map[string]int, code int) (string, bool) {
	for raw, c := range codes {
		if c == code {
			return raw, true
		}
	}
	return "", false
}

// Empty reports whether the encoder has no categories at all.
func (e *Encoder) Empty() bool {
	return len(e.Locations) == 0 || len(e.Products) == 0
}
