package trainer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/salescast/salescast/internal/artifact"
	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/dataset"
	"github.com/salescast/salescast/internal/evaluation"
	"github.com/salescast/salescast/internal/features"
	"github.com/salescast/salescast/internal/model"
	"github.com/salescast/salescast/pkg/config"
)

// Trainer fits the candidate regressors on the engineered feature matrix,
// scores them on the held-out calendar partition, and assembles the model
// artifact around the winner.
type Trainer struct {
	cfg config.TrainingConfig
	log zerolog.Logger
}

// New creates a trainer.
func New(cfg config.TrainingConfig, log zerolog.Logger) *Trainer {
	return &Trainer{
		cfg: cfg,
		log: log.With().Str("component", "trainer").Logger(),
	}
}

// Result is the outcome of one training run.
type Result struct {
	Bundle *artifact.Bundle
	Report contracts.ComparisonReport

	TrainRows   int
	HoldoutRows int
	SkippedRows int
}

// Candidates returns the candidate regressors in declaration order.
// Declaration order is the tie-breaker during selection, so it is part of
// the determinism contract.
func (t *Trainer) Candidates() []model.Regressor {
	return []model.Regressor{
		model.NewLinear(),
		model.NewRidge(t.cfg.RidgeLambda),
		model.NewTree(t.cfg.TreeMaxDepth, t.cfg.TreeMinSamples),
	}
}

// Train runs the full training pipeline on validated, sorted observations.
// The split is by calendar cutoff, never random.
func (t *Trainer) Train(
	ctx context.Context,
	obs []contracts.Observation,
	exogCols, flagCols []string,
	cutoff time.Time,
) (*Result, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("no training observations")
	}
	cutoff = contracts.Period(cutoff)

	trainObs, holdObs := dataset.SplitByCutoff(obs, cutoff)
	if len(trainObs) == 0 {
		return nil, fmt.Errorf("no observations before cutoff %s", contracts.FormatPeriod(cutoff))
	}
	if len(holdObs) == 0 {
		return nil, fmt.Errorf("no observations at or after cutoff %s for model selection", contracts.FormatPeriod(cutoff))
	}

	// Encoder covers every category in the input; mean tables are fit on the
	// pre-cutoff partition only, because they embed target values.
	encoder := features.FitEncoder(obs)
	means := features.FitMeanTables(trainObs)
	builder := features.NewBuilder(encoder, means, exogCols, flagCols, t.log)

	matrix, skipped, err := builder.BuildSupervised(obs)
	if err != nil {
		return nil, fmt.Errorf("build feature matrix: %w", err)
	}

	trainM, holdM := matrix.SplitByCutoff(cutoff)
	if trainM.Len() == 0 || holdM.Len() == 0 {
		return nil, fmt.Errorf("cutoff %s leaves %d train and %d holdout rows",
			contracts.FormatPeriod(cutoff), trainM.Len(), holdM.Len())
	}

	t.log.Info().
		Str("cutoff", contracts.FormatPeriod(cutoff)).
		Int("train_rows", trainM.Len()).
		Int("holdout_rows", holdM.Len()).
		Msg("training candidates")

	selected, reports, err := t.selectCandidate(ctx, trainM, holdM)
	if err != nil {
		return nil, err
	}

	baseline := t.baselineMetrics(means, trainM, holdM)
	report := evaluation.Compare(reports, baseline)
	if !report.BeatsBaseline {
		t.log.Warn().
			Float64("baseline_mae", baseline.MAE).
			Msg("selected model does not beat the naive baseline")
	}

	bundle := &artifact.Bundle{
		TrainedAt:   time.Now().UTC(),
		Cutoff:      cutoff,
		Schema:      builder.Schema(),
		Encoder:     encoder,
		Means:       means,
		History:     features.Snapshot(obs),
		ExogColumns: exogCols,
		FlagColumns: flagCols,
		Model:       selected,
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	return &Result{
		Bundle:      bundle,
		Report:      report,
		TrainRows:   trainM.Len(),
		HoldoutRows: holdM.Len(),
		SkippedRows: skipped,
	}, nil
}

// selectCandidate fits every candidate and picks the holdout-MAE argmin.
// Ties keep the earlier candidate.
func (t *Trainer) selectCandidate(
	ctx context.Context,
	trainM, holdM *features.Matrix,
) (model.Regressor, []contracts.CandidateReport, error) {
	candidates := t.Candidates()
	reports := make([]contracts.CandidateReport, 0, len(candidates))

	var selected model.Regressor
	selectedIdx := -1
	bestMAE := 0.0

	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		// a candidate that cannot fit this data loses the comparison
		// instead of aborting the run
		if err := candidate.Fit(trainM.X(), trainM.Y()); err != nil {
			t.log.Warn().Str("model", candidate.Name()).Err(err).Msg("candidate failed to fit")
			continue
		}

		predictions := make([]float64, holdM.Len())
		for j, row := range holdM.Rows {
			yhat, err := candidate.Predict(row.Values)
			if err != nil {
				return nil, nil, fmt.Errorf("%s holdout prediction: %w", candidate.Name(), err)
			}
			predictions[j] = yhat
		}

		metrics, err := evaluation.Evaluate(holdM.Y(), predictions)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate %s: %w", candidate.Name(), err)
		}
		if math.IsNaN(metrics.MAE) || math.IsInf(metrics.MAE, 0) {
			t.log.Warn().Str("model", candidate.Name()).Msg("candidate produced non-finite holdout error")
			continue
		}
		reports = append(reports, contracts.CandidateReport{Name: candidate.Name(), Metrics: metrics})

		t.log.Info().
			Str("model", candidate.Name()).
			Float64("mae", metrics.MAE).
			Float64("rmse", metrics.RMSE).
			Float64("mape", metrics.MAPE).
			Msg("candidate evaluated")

		if selectedIdx < 0 || metrics.MAE < bestMAE {
			selected = candidate
			selectedIdx = len(reports) - 1
			bestMAE = metrics.MAE
		}
	}

	if selectedIdx < 0 {
		return nil, nil, fmt.Errorf("no candidate could be fitted")
	}
	reports[selectedIdx].Selected = true
	t.log.Info().Str("model", selected.Name()).Float64("mae", bestMAE).Msg("model selected")
	return selected, reports, nil
}

// baselineMetrics scores the naive baseline (per-entity-per-month historical
// mean) on the holdout rows. Entities absent from the mean tables fall back
// to the overall training mean.
func (t *Trainer) baselineMetrics(means *features.MeanTables, trainM, holdM *features.Matrix) contracts.MetricSet {
	overall := 0.0
	for _, y := range trainM.Targets {
		overall += y
	}
	overall /= float64(trainM.Len())

	predictions := make([]float64, holdM.Len())
	for i, row := range holdM.Rows {
		if v, ok := means.BaselineFor(row.Entity, int(row.Date.Month())); ok {
			predictions[i] = v
		} else {
			predictions[i] = overall
		}
	}

	metrics, err := evaluation.Evaluate(holdM.Y(), predictions)
	if err != nil {
		// holdout verified non-empty by the caller
		t.log.Error().Err(err).Msg("baseline evaluation failed")
	}
	return metrics
}
