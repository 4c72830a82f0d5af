package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS forecast`,
	`CREATE TABLE IF NOT EXISTS forecast.runs (
		id            BIGSERIAL PRIMARY KEY,
		kind          TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL,
		cutoff        TIMESTAMPTZ,
		artifact_path TEXT NOT NULL DEFAULT '',
		rows_in       INTEGER NOT NULL DEFAULT 0,
		rows_out      INTEGER NOT NULL DEFAULT 0,
		rows_failed   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS forecast.candidate_metrics (
		run_id   BIGINT NOT NULL REFERENCES forecast.runs(id) ON DELETE CASCADE,
		model    TEXT NOT NULL,
		mae      DOUBLE PRECISION NOT NULL,
		rmse     DOUBLE PRECISION NOT NULL,
		mape     DOUBLE PRECISION NOT NULL,
		selected BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, model)
	)`,
	`CREATE TABLE IF NOT EXISTS forecast.predictions (
		run_id           BIGINT NOT NULL REFERENCES forecast.runs(id) ON DELETE CASCADE,
		location         TEXT NOT NULL,
		product          TEXT NOT NULL,
		period           TIMESTAMPTZ NOT NULL,
		predicted_volume DOUBLE PRECISION NOT NULL,
		degraded         BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, location, product, period)
	)`,
	`CREATE TABLE IF NOT EXISTS forecast.row_errors (
		id       BIGSERIAL PRIMARY KEY,
		run_id   BIGINT NOT NULL REFERENCES forecast.runs(id) ON DELETE CASCADE,
		location TEXT NOT NULL,
		product  TEXT NOT NULL,
		period   TIMESTAMPTZ NOT NULL,
		reason   TEXT NOT NULL,
		detail   TEXT NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema creates the forecast schema and tables if they do not exist.
// Statements are idempotent so startup can always run this.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
