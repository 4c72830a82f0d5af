package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salescast/salescast/internal/contracts"
)

// RunRecord is one training or prediction run as persisted.
type RunRecord struct {
	ID           int64
	Kind         string // "train" or "predict"
	StartedAt    time.Time
	FinishedAt   time.Time
	Cutoff       time.Time
	ArtifactPath string
	RowsIn       int
	RowsOut      int
	RowsFailed   int
}

// RunRepository persists pipeline runs, candidate metrics and forecast rows.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun inserts the run row and returns its assigned id.
func (r *RunRepository) SaveRun(ctx context.Context, run *RunRecord) (int64, error) {
	query := `
		INSERT INTO forecast.runs (kind, started_at, finished_at, cutoff, artifact_path, rows_in, rows_out, rows_failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		run.Kind, run.StartedAt, run.FinishedAt, run.Cutoff,
		run.ArtifactPath, run.RowsIn, run.RowsOut, run.RowsFailed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	run.ID = id
	return id, nil
}

// SaveCandidateMetrics stores the per-candidate holdout metrics for a run,
// including the baseline row.
func (r *RunRepository) SaveCandidateMetrics(ctx context.Context, runID int64, report contracts.ComparisonReport) error {
	query := `
		INSERT INTO forecast.candidate_metrics (run_id, model, mae, rmse, mape, selected)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, model) DO UPDATE SET
			mae = EXCLUDED.mae,
			rmse = EXCLUDED.rmse,
			mape = EXCLUDED.mape,
			selected = EXCLUDED.selected
	`

	batch := &pgx.Batch{}
	for _, c := range report.Candidates {
		batch.Queue(query, runID, c.Name, c.Metrics.MAE, c.Metrics.RMSE, c.Metrics.MAPE, c.Selected)
	}
	batch.Queue(query, runID, "baseline_historical_mean",
		report.Baseline.MAE, report.Baseline.RMSE, report.Baseline.MAPE, false)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save candidate metrics: %w", err)
		}
	}
	return nil
}

// SavePredictions upserts forecast rows for a run, keyed by entity and period.
func (r *RunRepository) SavePredictions(ctx context.Context, runID int64, predictions []contracts.PredictionResult) error {
	if len(predictions) == 0 {
		return nil
	}

	query := `
		INSERT INTO forecast.predictions (run_id, location, product, period, predicted_volume, degraded)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, location, product, period) DO UPDATE SET
			predicted_volume = EXCLUDED.predicted_volume,
			degraded = EXCLUDED.degraded
	`

	batch := &pgx.Batch{}
	for _, p := range predictions {
		batch.Queue(query, runID, p.Entity.Location, p.Entity.Product, p.Date, p.PredictedVolume, p.Degraded)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save predictions: %w", err)
		}
	}
	return nil
}

// SaveRowErrors stores row-level failures so degraded batches can be audited.
func (r *RunRepository) SaveRowErrors(ctx context.Context, runID int64, rowErrs []contracts.RowError) error {
	if len(rowErrs) == 0 {
		return nil
	}

	query := `
		INSERT INTO forecast.row_errors (run_id, location, product, period, reason, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, e := range rowErrs {
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		}
		batch.Queue(query, runID, e.Entity.Location, e.Entity.Product, e.Date, e.Reason, detail)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save row errors: %w", err)
		}
	}
	return nil
}

// LatestRun returns the most recent run of the given kind, or nil if none.
func (r *RunRepository) LatestRun(ctx context.Context, kind string) (*RunRecord, error) {
	query := `
		SELECT id, kind, started_at, finished_at, cutoff, artifact_path, rows_in, rows_out, rows_failed
		FROM forecast.runs
		WHERE kind = $1
		ORDER BY finished_at DESC
		LIMIT 1
	`

	var run RunRecord
	err := r.pool.QueryRow(ctx, query, kind).Scan(
		&run.ID, &run.Kind, &run.StartedAt, &run.FinishedAt, &run.Cutoff,
		&run.ArtifactPath, &run.RowsIn, &run.RowsOut, &run.RowsFailed,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// PredictionsForRun reads back the forecast rows of one run in stable order.
func (r *RunRepository) PredictionsForRun(ctx context.Context, runID int64) ([]contracts.PredictionResult, error) {
	query := `
		SELECT location, product, period, predicted_volume, degraded
		FROM forecast.predictions
		WHERE run_id = $1
		ORDER BY location, product, period ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("predictions for run: %w", err)
	}
	defer rows.Close()

	var predictions []contracts.PredictionResult
	for rows.Next() {
		var p contracts.PredictionResult
		if err := rows.Scan(&p.Entity.Location, &p.Entity.Product, &p.Date, &p.PredictedVolume, &p.Degraded); err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
