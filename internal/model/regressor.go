package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Regressor is the interchangeable black-box capability the trainer and
// predictor work against. Selection logic is data-driven: candidates are
// scored on held-out data and the best MAE wins.
type Regressor interface {
	// Name identifies the algorithm in registries, artifacts and reports.
	Name() string

	// Fit trains on a feature matrix and aligned targets.
	Fit(x [][]float64, y []float64) error

	// Predict scores one feature vector. Fails if the model is unfitted or
	// the vector length disagrees with the fitted feature count.
	Predict(x []float64) (float64, error)

	// NumFeatures returns the fitted feature count, 0 before Fit.
	NumFeatures() int

	// MarshalParams and UnmarshalParams round-trip the fitted state for the
	// model artifact.
	MarshalParams() (json.RawMessage, error)
	UnmarshalParams(params json.RawMessage) error
}

// registry maps algorithm names to default constructors, used to re-resolve
// a model by name when loading an artifact.
var registry = map[string]func() Regressor{}

// Register adds a named constructor. Called from init in each algorithm file.
func Register(name string, constructor func() Regressor) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("model: duplicate registration of %q", name))
	}
	registry[name] = constructor
}

// New constructs an unfitted regressor by name.
func New(name string) (Regressor, error) {
	constructor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (registered: %v)", name, Names())
	}
	return constructor(), nil
}

// Names returns the registered algorithm names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateTrainingInput is the shared Fit precondition check.
func validateTrainingInput(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("empty training matrix")
	}
	if len(x) != len(y) {
		return fmt.Errorf("matrix has %d rows but %d targets", len(x), len(y))
	}
	cols := len(x[0])
	if cols == 0 {
		return fmt.Errorf("training matrix has no feature columns")
	}
	for i, row := range x {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return nil
}

// validatePredictInput is the shared Predict precondition check.
func validatePredictInput(x []float64, fitted int) error {
	if fitted == 0 {
		return fmt.Errorf("model is not fitted")
	}
	if len(x) != fitted {
		return fmt.Errorf("feature vector has %d values, model fitted on %d", len(x), fitted)
	}
	return nil
}
