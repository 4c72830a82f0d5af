package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the pipeline.
// Every environment variable is read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Dataset column mapping
	Dataset DatasetConfig

	// Training
	Training TrainingConfig

	// Database (optional run repository)
	Database DatabaseConfig

	// Redis (optional API response cache)
	Redis RedisConfig

	// API server
	API APIConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatasetConfig maps raw tabular columns to the pipeline's data model.
type DatasetConfig struct {
	LocationColumn string
	ProductColumn  string
	DateColumn     string
	TargetColumn   string

	// EventFlagPrefixes marks 0/1 columns as event flags rather than
	// continuous exogenous values.
	EventFlagPrefixes []string
}

// TrainingConfig holds trainer knobs.
type TrainingConfig struct {
	RidgeLambda    float64
	TreeMaxDepth   int
	TreeMinSamples int
	Workers        int // parallel entity partitions during prediction
}

// DatabaseConfig holds PostgreSQL configuration for the run repository.
type DatabaseConfig struct {
	URL     string
	Enabled bool

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the API response cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// APIConfig holds the forecast API server configuration.
type APIConfig struct {
	Port            string
	RatePerSecond   float64
	RateBurst       int
	ShutdownTimeout time.Duration
}

// SchedulerConfig holds the periodic retrain configuration.
type SchedulerConfig struct {
	RetrainSchedule string // cron expression with seconds field
	DataPath        string
	ArtifactPath    string
	CutoffMonths    int // holdout length counted back from the latest period
}

// Load reads configuration from environment variables, trying .env first.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Dataset: DatasetConfig{
			LocationColumn:    getEnv("DATA_LOCATION_COLUMN", "agency"),
			ProductColumn:     getEnv("DATA_PRODUCT_COLUMN", "sku"),
			DateColumn:        getEnv("DATA_DATE_COLUMN", "date"),
			TargetColumn:      getEnv("DATA_TARGET_COLUMN", "volume"),
			EventFlagPrefixes: getEnvAsSlice("DATA_EVENT_FLAG_PREFIXES", []string{"fifa_", "football_", "beer_capital", "music_fest", "easter_", "good_friday", "new_year", "christmas", "labor_day", "independence_day", "revolution_day"}),
		},

		Training: TrainingConfig{
			RidgeLambda:    getEnvAsFloat("TRAIN_RIDGE_LAMBDA", 1.0),
			TreeMaxDepth:   getEnvAsInt("TRAIN_TREE_MAX_DEPTH", 6),
			TreeMinSamples: getEnvAsInt("TRAIN_TREE_MIN_SAMPLES", 20),
			Workers:        getEnvAsInt("PREDICT_WORKERS", 8),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "10m"),
		},

		API: APIConfig{
			Port:            getEnv("API_PORT", "8074"),
			RatePerSecond:   getEnvAsFloat("API_RATE_PER_SECOND", 20),
			RateBurst:       getEnvAsInt("API_RATE_BURST", 40),
			ShutdownTimeout: getEnvAsDuration("API_SHUTDOWN_TIMEOUT", "10s"),
		},

		Scheduler: SchedulerConfig{
			RetrainSchedule: getEnv("SCHEDULER_RETRAIN_CRON", "0 0 3 1 * *"), // 03:00 on the 1st
			DataPath:        getEnv("SCHEDULER_DATA_PATH", ""),
			ArtifactPath:    getEnv("SCHEDULER_ARTIFACT_PATH", "models/artifact.json"),
			CutoffMonths:    getEnvAsInt("SCHEDULER_CUTOFF_MONTHS", 12),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks cross-field requirements that getEnv defaults cannot.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	if c.Training.Workers < 1 {
		return fmt.Errorf("PREDICT_WORKERS must be >= 1")
	}

	cols := map[string]string{
		"DATA_LOCATION_COLUMN": c.Dataset.LocationColumn,
		"DATA_PRODUCT_COLUMN":  c.Dataset.ProductColumn,
		"DATA_DATE_COLUMN":     c.Dataset.DateColumn,
		"DATA_TARGET_COLUMN":   c.Dataset.TargetColumn,
	}
	for key, val := range cols {
		if val == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}

	return nil
}

// loadEnvFile tries to load .env from a few likely locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
