package evaluation

import (
	"fmt"
	"math"

	"github.com/salescast/salescast/internal/contracts"
)

// Evaluate computes MAE, RMSE and MAPE over aligned actuals and predictions.
// MAPE is a percentage computed over non-zero actuals only.
func Evaluate(actual, predicted []float64) (contracts.MetricSet, error) {
	if len(actual) != len(predicted) {
		return contracts.MetricSet{}, fmt.Errorf("length mismatch: %d actuals, %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return contracts.MetricSet{}, fmt.Errorf("no values to evaluate")
	}

	var absSum, sqSum, pctSum float64
	pctCount := 0
	for i := range actual {
		diff := actual[i] - predicted[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if actual[i] != 0 {
			pctSum += math.Abs(diff / actual[i])
			pctCount++
		}
	}

	n := float64(len(actual))
	metrics := contracts.MetricSet{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
	}
	if pctCount > 0 {
		metrics.MAPE = pctSum / float64(pctCount) * 100
	}
	return metrics, nil
}

// Compare assembles the comparison report. The selected candidate is the one
// flagged by the trainer; BeatsBaseline requires strictly lower MAE than the
// naive historical-mean baseline.
func Compare(candidates []contracts.CandidateReport, baseline contracts.MetricSet) contracts.ComparisonReport {
	report := contracts.ComparisonReport{
		Candidates: candidates,
		Baseline:   baseline,
	}
	if selected, ok := report.SelectedCandidate(); ok {
		report.BeatsBaseline = selected.Metrics.MAE < baseline.MAE
	}
	return report
}
