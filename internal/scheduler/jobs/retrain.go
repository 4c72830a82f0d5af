package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/dataset"
	"github.com/salescast/salescast/internal/storage"
	"github.com/salescast/salescast/internal/trainer"
	"github.com/salescast/salescast/pkg/config"
)

// RetrainJob retrains the model from the configured data file and atomically
// replaces the deployed artifact. The API keeps serving the previous artifact
// until the rename lands.
type RetrainJob struct {
	cfg     *config.Config
	trainer *trainer.Trainer
	loader  *dataset.Loader
	repo    *storage.RunRepository // nil when the database is disabled
	log     zerolog.Logger
}

// NewRetrainJob creates the periodic retrain job.
func NewRetrainJob(cfg *config.Config, t *trainer.Trainer, loader *dataset.Loader, repo *storage.RunRepository, log zerolog.Logger) *RetrainJob {
	return &RetrainJob{
		cfg:     cfg,
		trainer: t,
		loader:  loader,
		repo:    repo,
		log:     log.With().Str("component", "retrain_job").Logger(),
	}
}

// Name returns the job name.
func (j *RetrainJob) Name() string { return "retrain" }

// Schedule returns the cron expression.
func (j *RetrainJob) Schedule() string { return j.cfg.Scheduler.RetrainSchedule }

// Run executes one retrain cycle.
func (j *RetrainJob) Run(ctx context.Context) error {
	started := time.Now().UTC()

	obs, exogCols, flagCols, err := j.loader.Load(j.cfg.Scheduler.DataPath)
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}
	if err := dataset.ValidateSeries(obs, true); err != nil {
		return fmt.Errorf("validate training data: %w", err)
	}

	// The holdout spans the last CutoffMonths periods of the input.
	latest, ok := dataset.LatestPeriod(obs)
	if !ok {
		return fmt.Errorf("no observations in %s", j.cfg.Scheduler.DataPath)
	}
	cutoff := contracts.AddPeriods(latest, -(j.cfg.Scheduler.CutoffMonths - 1))

	result, err := j.trainer.Train(ctx, obs, exogCols, flagCols, cutoff)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := result.Bundle.Save(j.cfg.Scheduler.ArtifactPath); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}

	j.log.Info().
		Str("cutoff", contracts.FormatPeriod(cutoff)).
		Int("train_rows", result.TrainRows).
		Int("holdout_rows", result.HoldoutRows).
		Str("artifact", j.cfg.Scheduler.ArtifactPath).
		Msg("retrain completed")

	if j.repo != nil {
		run := &storage.RunRecord{
			Kind:         "train",
			StartedAt:    started,
			FinishedAt:   time.Now().UTC(),
			Cutoff:       cutoff,
			ArtifactPath: j.cfg.Scheduler.ArtifactPath,
			RowsIn:       len(obs),
			RowsOut:      result.TrainRows + result.HoldoutRows,
			RowsFailed:   0,
		}
		runID, err := j.repo.SaveRun(ctx, run)
		if err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
		if err := j.repo.SaveCandidateMetrics(ctx, runID, result.Report); err != nil {
			return fmt.Errorf("persist candidate metrics: %w", err)
		}
	}

	return nil
}
