package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/salescast/salescast/pkg/config"
)

// ErrRowFailures signals that the pipeline finished but some rows failed.
// main translates it into exit code 2 so batch callers can tell a degraded
// run from a fatal one.
var ErrRowFailures = errors.New("some rows failed")

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "salescast",
	Short: "Monthly sales volume forecasting pipeline",
	Long: `Salescast CLI

Trains and serves monthly sales volume forecasts per (location, product)
pair, with identical feature construction at train and serve time.

Usage:
  go run ./cmd/salescast [command]

Examples:
  go run ./cmd/salescast train --data data/sales.csv --cutoff 2017-07
  go run ./cmd/salescast predict --data data/requests.csv --artifact artifacts/model.json
  go run ./cmd/salescast api
  go run ./cmd/salescast scheduler`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// applyVerbosity bumps the configured log level when --verbose is set.
func applyVerbosity(cfg *config.Config) {
	if verbose {
		cfg.LogLevel = "debug"
	}
}
