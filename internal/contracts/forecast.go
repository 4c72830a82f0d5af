package contracts

import "time"

// PredictionResult is one forecast row.
type PredictionResult struct {
	Entity          EntityKey `json:"entity"`
	Date            time.Time `json:"date"`
	PredictedVolume float64   `json:"predicted_volume"`

	// Degraded mirrors FeatureRow flags so consumers can see which
	// predictions were built on a short history.
	Degraded bool `json:"degraded,omitempty"`
}

// MetricSet holds the absolute-error metrics used across the pipeline.
type MetricSet struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"` // percent; computed over non-zero actuals
}

// CandidateReport is one row of the model comparison report.
type CandidateReport struct {
	Name     string    `json:"name"`
	Metrics  MetricSet `json:"metrics"`
	Selected bool      `json:"selected"`
}

// ComparisonReport compares every candidate against the naive baseline.
type ComparisonReport struct {
	Candidates []CandidateReport `json:"candidates"`
	Baseline   MetricSet         `json:"baseline"`

	// BeatsBaseline is false when the selected model's MAE is not strictly
	// better than the naive historical-mean baseline.
	BeatsBaseline bool `json:"beats_baseline"`
}

// SelectedCandidate returns the report row of the selected model.
func (r ComparisonReport) SelectedCandidate() (CandidateReport, bool) {
	for _, c := range r.Candidates {
		if c.Selected {
			return c, true
		}
	}
	return CandidateReport{}, false
}
