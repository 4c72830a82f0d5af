package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/salescast/salescast/internal/dataset"
	"github.com/salescast/salescast/internal/scheduler"
	"github.com/salescast/salescast/internal/scheduler/jobs"
	"github.com/salescast/salescast/internal/storage"
	"github.com/salescast/salescast/internal/trainer"
	"github.com/salescast/salescast/pkg/config"
	"github.com/salescast/salescast/pkg/database"
	"github.com/salescast/salescast/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the periodic retrain scheduler",
	Long: `Runs the retrain job on its cron schedule until interrupted.

Each cycle reloads the configured data file, retrains all candidates and
atomically replaces the deployed artifact.

Example:
  go run ./cmd/salescast scheduler
  go run ./cmd/salescast scheduler --now`,
	RunE: runScheduler,
}

var schedulerRunNow bool

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().BoolVar(&schedulerRunNow, "now", false, "run the retrain job immediately on startup")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	// 1. Load config and logger
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyVerbosity(cfg)
	log := logger.New(cfg)

	if cfg.Scheduler.DataPath == "" {
		return fmt.Errorf("SCHEDULER_DATA_PATH is required for the retrain scheduler")
	}

	// 2. Optional run repository
	var repo *storage.RunRepository
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if err := storage.EnsureSchema(context.Background(), db.Pool); err != nil {
			return err
		}
		repo = storage.NewRunRepository(db.Pool)
	}

	// 3. Assemble the retrain job
	loader := dataset.NewLoader(dataset.SchemaFromConfig(cfg.Dataset), log)
	t := trainer.New(cfg.Training, log)
	retrain := jobs.NewRetrainJob(cfg, t, loader, repo, log)

	// 4. Start the scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(retrain); err != nil {
		return err
	}
	sched.Start()

	if schedulerRunNow {
		if err := sched.RunJob(retrain.Name()); err != nil {
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
