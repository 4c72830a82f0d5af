package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/salescast/salescast/internal/api"
	"github.com/salescast/salescast/internal/api/handlers"
	"github.com/salescast/salescast/internal/artifact"
	"github.com/salescast/salescast/internal/predictor"
	"github.com/salescast/salescast/pkg/config"
	"github.com/salescast/salescast/pkg/logger"
	"github.com/salescast/salescast/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve forecasts over HTTP",
	Long: `Starts the forecast API server against a trained artifact.

Endpoints:
  GET  /health        - Health check
  GET  /api/model     - Loaded artifact metadata
  POST /api/forecast  - Batch forecast

Example:
  go run ./cmd/salescast api
  go run ./cmd/salescast api --port 8074 --artifact artifacts/model.json`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiArtifact string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides config)")
	apiCmd.Flags().StringVar(&apiArtifact, "artifact", "", "model artifact path (overrides config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config and logger
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.API.Port = apiPort
	}
	if apiArtifact != "" {
		cfg.Scheduler.ArtifactPath = apiArtifact
	}
	applyVerbosity(cfg)
	log := logger.New(cfg)

	// 2. Load and verify the artifact
	bundle, err := artifact.Load(cfg.Scheduler.ArtifactPath)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	log.Info().
		Str("artifact", cfg.Scheduler.ArtifactPath).
		Str("model", bundle.Model.Name()).
		Msg("artifact loaded")

	// 3. Build the predictor (strict mode never aborts API batches)
	p, err := predictor.New(bundle, cfg.Training.Workers, false, log)
	if err != nil {
		return err
	}

	// 4. Connect the response cache (no-op when Redis is disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "salescast")

	// 5. Create handlers and router
	forecastHandler := handlers.NewForecastHandler(p, cache, cfg.Redis.CacheTTL, log)
	modelHandler := handlers.NewModelHandler(bundle)
	limiter := rate.NewLimiter(rate.Limit(cfg.API.RatePerSecond), cfg.API.RateBurst)
	router := api.NewRouter(forecastHandler, modelHandler, limiter, log)

	// 6. Start the server with graceful shutdown
	server := api.New(cfg, log, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
