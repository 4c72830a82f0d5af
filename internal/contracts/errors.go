package contracts

import (
	"fmt"
	"strings"
	"time"
)

// SchemaError reports structurally invalid input: missing or mistyped
// columns, duplicate rows, series gaps. Always fatal for the run.
type SchemaError struct {
	Columns []string // offending column names, if column-related
	Detail  string
}

func (e *SchemaError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("schema error: %s (columns: %s)", e.Detail, strings.Join(e.Columns, ", "))
	}
	return "schema error: " + e.Detail
}

// NewSchemaError builds a SchemaError for the given columns.
func NewSchemaError(detail string, columns ...string) *SchemaError {
	return &SchemaError{Columns: columns, Detail: detail}
}

// UnknownCategoryError reports a categorical value at inference time that was
// not present when the encoder was fit. Never coerced to a fallback code.
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q in column %s", e.Value, e.Column)
}

// MissingExogenousError reports an entity with no known value to fill an
// exogenous column from, including the cold-start case of an entity with no
// history at all (Column is empty then).
type MissingExogenousError struct {
	Entity EntityKey
	Column string
}

func (e *MissingExogenousError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("entity %s has no usable history (cold start)", e.Entity)
	}
	return fmt.Sprintf("no known value for exogenous column %s of entity %s", e.Column, e.Entity)
}

// IsColdStart reports whether the error is the no-history-at-all case.
func (e *MissingExogenousError) IsColdStart() bool {
	return e.Column == ""
}

// ArtifactConsistencyError reports a loaded artifact whose parts disagree,
// e.g. model coefficient count vs feature schema length. Fatal before any
// prediction is attempted.
type ArtifactConsistencyError struct {
	Detail string
}

func (e *ArtifactConsistencyError) Error() string {
	return "artifact consistency: " + e.Detail
}

// RowError is a per-row failure collected during batch prediction.
// Independent entities keep completing; the run exits non-zero when any exist.
type RowError struct {
	Entity EntityKey `json:"entity"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
	Err    error     `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s @ %s: %s", e.Entity, FormatPeriod(e.Date), e.Reason)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e RowError) Unwrap() error {
	return e.Err
}

// Row error reasons, used in structured failure reports.
const (
	ReasonUnknownCategory  = "unknown_category"
	ReasonColdStart        = "cold_start"
	ReasonMissingExogenous = "missing_exogenous"
	ReasonPredictionFailed = "prediction_failed"
)
