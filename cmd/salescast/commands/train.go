package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/dataset"
	"github.com/salescast/salescast/internal/storage"
	"github.com/salescast/salescast/internal/trainer"
	"github.com/salescast/salescast/pkg/config"
	"github.com/salescast/salescast/pkg/database"
	"github.com/salescast/salescast/pkg/logger"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train candidate models and write the selected artifact",
	Long: `Trains all candidate models on the historical sales file, selects the
one with the lowest holdout MAE, and writes the model artifact atomically.

The holdout is a calendar split: every period at or after the cutoff is
held out for model selection, everything before it is used for fitting.

Example:
  go run ./cmd/salescast train --data data/sales.csv --cutoff 2017-07
  go run ./cmd/salescast train --data data/sales.xlsx --holdout-months 6`,
	RunE: runTrain,
}

var (
	trainData          string
	trainCutoff        string
	trainArtifact      string
	trainReport        string
	trainHoldoutMonths int
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainData, "data", "", "historical sales file (CSV or XLSX)")
	trainCmd.Flags().StringVar(&trainCutoff, "cutoff", "", "holdout cutoff period (YYYY-MM); periods at or after it are held out")
	trainCmd.Flags().StringVar(&trainArtifact, "artifact", "artifacts/model.json", "output path for the model artifact")
	trainCmd.Flags().StringVar(&trainReport, "report", "", "optional output path for the candidate comparison CSV")
	trainCmd.Flags().IntVar(&trainHoldoutMonths, "holdout-months", 6, "holdout length when --cutoff is not given")
	trainCmd.MarkFlagRequired("data")
}

func runTrain(cmd *cobra.Command, args []string) error {
	started := time.Now().UTC()
	ctx := cmd.Context()

	// 1. Load config and logger
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyVerbosity(cfg)
	log := logger.New(cfg)

	// 2. Load and validate the historical data
	loader := dataset.NewLoader(dataset.SchemaFromConfig(cfg.Dataset), log)
	obs, exogCols, flagCols, err := loader.Load(trainData)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	if err := dataset.ValidateSeries(obs, true); err != nil {
		return fmt.Errorf("validate data: %w", err)
	}

	// 3. Resolve the cutoff
	var cutoff time.Time
	if trainCutoff != "" {
		cutoff, err = contracts.ParsePeriod(trainCutoff)
		if err != nil {
			return fmt.Errorf("parse cutoff: %w", err)
		}
	} else {
		latest, ok := dataset.LatestPeriod(obs)
		if !ok {
			return fmt.Errorf("no observations in %s", trainData)
		}
		cutoff = contracts.AddPeriods(latest, -(trainHoldoutMonths - 1))
	}

	// 4. Train and select
	t := trainer.New(cfg.Training, log)
	result, err := t.Train(ctx, obs, exogCols, flagCols, cutoff)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	// 5. Write the artifact atomically
	if err := result.Bundle.Save(trainArtifact); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}

	// 6. Write the comparison report
	if trainReport != "" {
		if err := trainer.WriteReportCSV(trainReport, result.Report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	// 7. Persist the run when the database is enabled
	if cfg.Database.Enabled {
		if err := persistTrainRun(ctx, cfg, started, cutoff, len(obs), result); err != nil {
			log.Error().Err(err).Msg("persisting training run failed")
		}
	}

	selected, _ := result.Report.SelectedCandidate()
	fmt.Printf("trained %d rows, held out %d, skipped %d seed rows\n",
		result.TrainRows, result.HoldoutRows, result.SkippedRows)
	fmt.Printf("selected %s (MAE %.4f, baseline %.4f)\n",
		selected.Name, selected.Metrics.MAE, result.Report.Baseline.MAE)
	fmt.Printf("artifact written to %s\n", trainArtifact)

	return nil
}

func persistTrainRun(ctx context.Context, cfg *config.Config, started time.Time, cutoff time.Time, rowsIn int, result *trainer.Result) error {
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := storage.EnsureSchema(ctx, db.Pool); err != nil {
		return err
	}

	repo := storage.NewRunRepository(db.Pool)
	run := &storage.RunRecord{
		Kind:         "train",
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		Cutoff:       cutoff,
		ArtifactPath: trainArtifact,
		RowsIn:       rowsIn,
		RowsOut:      result.TrainRows + result.HoldoutRows,
	}
	runID, err := repo.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	return repo.SaveCandidateMetrics(ctx, runID, result.Report)
}
