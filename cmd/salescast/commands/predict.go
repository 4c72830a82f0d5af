package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/salescast/salescast/internal/artifact"
	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/dataset"
	"github.com/salescast/salescast/internal/predictor"
	"github.com/salescast/salescast/internal/storage"
	"github.com/salescast/salescast/pkg/config"
	"github.com/salescast/salescast/pkg/database"
	"github.com/salescast/salescast/pkg/logger"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Produce forecasts from a trained artifact",
	Long: `Loads a trained artifact and forecasts the requested periods.

Requests come either from a file (--data, same column layout as training
but the target column may be absent) or from an entity grid
(--entities with --from/--to). Periods beyond known history are chained:
each month's forecast feeds the next month's lag features.

Example:
  go run ./cmd/salescast predict --data data/requests.csv --output out/forecast.csv
  go run ./cmd/salescast predict --entities "Agency_01/SKU_01" --from 2018-01 --to 2018-04`,
	RunE: runPredict,
}

var (
	predictData     string
	predictArtifact string
	predictOutput   string
	predictEntities string
	predictFrom     string
	predictTo       string
	predictStrict   bool
)

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictData, "data", "", "request file (CSV or XLSX); target column optional")
	predictCmd.Flags().StringVar(&predictArtifact, "artifact", "artifacts/model.json", "trained model artifact")
	predictCmd.Flags().StringVar(&predictOutput, "output", "", "optional output CSV path (default prints to stdout)")
	predictCmd.Flags().StringVar(&predictEntities, "entities", "", "comma-separated location/product pairs for grid mode")
	predictCmd.Flags().StringVar(&predictFrom, "from", "", "first period (YYYY-MM) in grid mode")
	predictCmd.Flags().StringVar(&predictTo, "to", "", "last period (YYYY-MM) in grid mode")
	predictCmd.Flags().BoolVar(&predictStrict, "strict", false, "abort the whole batch on the first row failure")
}

func runPredict(cmd *cobra.Command, args []string) error {
	started := time.Now().UTC()
	ctx := cmd.Context()

	// 1. Load config and logger
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyVerbosity(cfg)
	log := logger.New(cfg)

	// 2. Load and verify the artifact
	bundle, err := artifact.Load(predictArtifact)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}

	// 3. Build the request batch
	var requests []predictor.Request
	switch {
	case predictData != "":
		requests, err = requestsFromFile(cfg, log)
	case predictEntities != "":
		requests, err = requestsFromGrid()
	default:
		return fmt.Errorf("either --data or --entities is required")
	}
	if err != nil {
		return err
	}

	// 4. Predict
	p, err := predictor.New(bundle, cfg.Training.Workers, predictStrict, log)
	if err != nil {
		return err
	}
	results, rowErrs, err := p.Predict(ctx, requests)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	// 5. Write output
	if predictOutput != "" {
		if err := predictor.WritePredictionsCSV(predictOutput, results); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("wrote %d forecasts to %s\n", len(results), predictOutput)
	} else {
		for _, r := range results {
			fmt.Printf("%s %s %.4f\n", r.Entity, contracts.FormatPeriod(r.Date), r.PredictedVolume)
		}
	}

	for _, e := range rowErrs {
		fmt.Printf("FAILED %s %s: %s\n", e.Entity, contracts.FormatPeriod(e.Date), e.Reason)
	}
	if len(rowErrs) > 0 && predictOutput != "" {
		errPath := predictor.RowErrorsPath(predictOutput)
		if err := predictor.WriteRowErrorsCSV(errPath, rowErrs); err != nil {
			return fmt.Errorf("write error report: %w", err)
		}
		fmt.Printf("wrote %d failed rows to %s\n", len(rowErrs), errPath)
	}

	// 6. Persist the run when the database is enabled
	if cfg.Database.Enabled {
		if err := persistPredictRun(ctx, cfg, started, bundle.Cutoff, len(requests), results, rowErrs); err != nil {
			log.Error().Err(err).Msg("persisting prediction run failed")
		}
	}

	if len(rowErrs) > 0 {
		return fmt.Errorf("%d of %d rows: %w", len(rowErrs), len(requests), ErrRowFailures)
	}
	return nil
}

// requestsFromFile reads request rows from a tabular file. The target column
// may be absent or empty; only entity, date and any exogenous values are used.
func requestsFromFile(cfg *config.Config, log zerolog.Logger) ([]predictor.Request, error) {
	loader := dataset.NewLoader(dataset.SchemaFromConfig(cfg.Dataset), log)
	obs, _, _, err := loader.Load(predictData)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	if err := dataset.ValidateSeries(obs, false); err != nil {
		return nil, fmt.Errorf("validate requests: %w", err)
	}

	requests := make([]predictor.Request, 0, len(obs))
	for _, o := range obs {
		requests = append(requests, predictor.Request{
			Entity:     o.Entity,
			Date:       o.Date,
			Exogenous:  o.Exogenous,
			EventFlags: o.EventFlags,
		})
	}
	return requests, nil
}

// requestsFromGrid expands --entities x [--from, --to] into one request per
// entity per period, with no exogenous data (fill-forward covers it).
func requestsFromGrid() ([]predictor.Request, error) {
	if predictFrom == "" || predictTo == "" {
		return nil, fmt.Errorf("grid mode requires --from and --to")
	}
	from, err := contracts.ParsePeriod(predictFrom)
	if err != nil {
		return nil, fmt.Errorf("parse --from: %w", err)
	}
	to, err := contracts.ParsePeriod(predictTo)
	if err != nil {
		return nil, fmt.Errorf("parse --to: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("--to %s is before --from %s", predictTo, predictFrom)
	}

	var requests []predictor.Request
	for _, pair := range strings.Split(predictEntities, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid entity %q, want location/product", pair)
		}
		entity := contracts.EntityKey{Location: parts[0], Product: parts[1]}
		for d := from; !d.After(to); d = contracts.AddPeriods(d, 1) {
			requests = append(requests, predictor.Request{Entity: entity, Date: d})
		}
	}
	return requests, nil
}

func persistPredictRun(
	ctx context.Context,
	cfg *config.Config,
	started time.Time,
	cutoff time.Time,
	rowsIn int,
	results []contracts.PredictionResult,
	rowErrs []contracts.RowError,
) error {
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
		Kind:         "predict",
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		Cutoff:       cutoff,
		ArtifactPath: predictArtifact,
		RowsIn:       rowsIn,
		RowsOut:      len(results),
		RowsFailed:   len(rowErrs),
	}
	runID, err := repo.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	if err := repo.SavePredictions(ctx, runID, results); err != nil {
		return err
	}
	return repo.SaveRowErrors(ctx, runID, rowErrs)
}
