package dataset

import (
	"strings"

	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/pkg/config"
)

// TableSchema declares how raw tabular columns map onto the data model.
// Validated once at load; everything downstream works on typed Observations.
type TableSchema struct {
	LocationColumn string
	ProductColumn  string
	DateColumn     string
	TargetColumn   string

	// EventFlagPrefixes marks 0/1 indicator columns as event flags.
	EventFlagPrefixes []string
}

// SchemaFromConfig builds the table schema from configuration.
func SchemaFromConfig(cfg config.DatasetConfig) TableSchema {
	return TableSchema{
		LocationColumn:    cfg.LocationColumn,
		ProductColumn:     cfg.ProductColumn,
		DateColumn:        cfg.DateColumn,
		TargetColumn:      cfg.TargetColumn,
		EventFlagPrefixes: cfg.EventFlagPrefixes,
	}
}

// Required returns the required column names in report order.
func (s TableSchema) Required() []string {
	return []string{s.LocationColumn, s.ProductColumn, s.DateColumn}
}

// IsEventFlag reports whether a column name is an event-flag column.
func (s TableSchema) IsEventFlag(name string) bool {
	for _, prefix := range s.EventFlagPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// droppedColumns are bookkeeping columns some exports carry; they are
// ignored rather than treated as exogenous values.
var droppedColumns = map[string]struct{}{
	"":           {},
	"Unnamed: 0": {},
	"timeseries": {},
}

// classifyColumns splits a header into the role of every column.
// Missing required columns produce a SchemaError naming each one.
func (s TableSchema) classifyColumns(header []string) (*columnLayout, error) {
	layout := &columnLayout{
		location: -1,
		product:  -1,
		date:     -1,
		target:   -1,
		exog:     make(map[string]int),
		flags:    make(map[string]int),
	}

	for i, name := range header {
		name = strings.TrimSpace(name)
		switch name {
		case s.LocationColumn:
			layout.location = i
		case s.ProductColumn:
			layout.product = i
		case s.DateColumn:
			layout.date = i
		case s.TargetColumn:
			layout.target = i
		default:
			if _, drop := droppedColumns[name]; drop {
				continue
			}
			if s.IsEventFlag(name) {
				layout.flags[name] = i
			} else {
				layout.exog[name] = i
			}
		}
	}

	var missing []string
	if layout.location < 0 {
		missing = append(missing, s.LocationColumn)
	}
	if layout.product < 0 {
		missing = append(missing, s.ProductColumn)
	}
	if layout.date < 0 {
		missing = append(missing, s.DateColumn)
	}
	if len(missing) > 0 {
		return nil, contracts.NewSchemaError("required columns missing", missing...)
	}

	return layout, nil
}

// columnLayout maps column roles to header positions. target is -1 when the
// file carries no volume column (forecast requests).
type columnLayout struct {
	location int
	product  int
	date     int
	target   int
	exog     map[string]int
	flags    map[string]int
}
