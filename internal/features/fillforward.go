package features

import (
	"github.com/salescast/salescast/internal/contracts"
)

// resolveExogenous returns the value for one exogenous column of a row.
//
// Precedence: the row's own value; otherwise the most recent known value for
// (entity, column) in the window, which already merges training history with
// anything observed earlier in the same inference batch. Exogenous values are
// assumed locally stable, so carrying the last known value forward is the
// declared fill policy. No value ever known for the entity is a hard failure:
// a global default would silently mask cold-start entities.
func resolveExogenous(
	entity contracts.EntityKey,
	column string,
	rowExog map[string]float64,
	window []HistoryPoint,
) (value float64, filled bool, err error) {
	if v, ok := rowExog[column]; ok {
		return v, false, nil
	}

	// newest first: the window is sorted ascending
	for i := len(window) - 1; i >= 0; i-- {
		if v, ok := window[i].Exogenous[column]; ok {
			return v, true, nil
		}
	}

	return 0, false, &contracts.MissingExogenousError{Entity: entity, Column: column}
}
