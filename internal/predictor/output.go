package predictor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/salescast/salescast/internal/contracts"
)

// WritePredictionsCSV writes forecast rows as tabular output, one row per
// (entity, period), in the predictor's stable order.
func WritePredictionsCSV(path string, predictions []contracts.PredictionResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"location", "product", "period", "predicted_volume", "degraded"}); err != nil {
		return err
	}
	for _, p := range predictions {
		record := []string{
			p.Entity.Location,
			p.Entity.Product,
			contracts.FormatPeriod(p.Date),
			strconv.FormatFloat(p.PredictedVolume, 'f', 4, 64),
			strconv.FormatBool(p.Degraded),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteRowErrorsCSV writes the structured failure report next to the forecast
// output so failed rows are machine-readable, not just logged.
func WriteRowErrorsCSV(path string, rowErrs []contracts.RowError) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create error report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"location", "product", "period", "reason", "detail"}); err != nil {
		return err
	}
	for _, e := range rowErrs {
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		}
		record := []string{
			e.Entity.Location,
			e.Entity.Product,
			contracts.FormatPeriod(e.Date),
			e.Reason,
			detail,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// RowErrorsPath derives the failure report path from the forecast output path:
// forecast.csv -> forecast.errors.csv.
func RowErrorsPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return outputPath[:len(outputPath)-len(ext)] + ".errors" + ext
}
