package trainer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/salescast/salescast/internal/contracts"
)

// WriteReportCSV writes the comparison report as tabular output: one row per
// candidate plus the naive baseline row.
func WriteReportCSV(path string, report contracts.ComparisonReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"model", "mae", "rmse", "mape", "selected"}); err != nil {
		return err
	}

	for _, c := range report.Candidates {
		if err := w.Write(metricsRow(c.Name, c.Metrics, c.Selected)); err != nil {
			return err
		}
	}
	if err := w.Write(metricsRow("baseline_historical_mean", report.Baseline, false)); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func metricsRow(name string, m contracts.MetricSet, selected bool) []string {
	return []string{
		name,
		strconv.FormatFloat(m.MAE, 'f', 4, 64),
		strconv.FormatFloat(m.RMSE, 'f', 4, 64),
		strconv.FormatFloat(m.MAPE, 'f', 4, 64),
		strconv.FormatBool(selected),
	}
}
