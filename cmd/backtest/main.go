// Package main provides the entry point for the fund backtesting CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/fund-backtester/internal/config"
	"github.com/yourusername/fund-backtester/internal/logger"
	"github.com/yourusername/fund-backtester/internal/metrics"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type flags struct {
	configFile string
	startDate  string
	endDate    string
	output     string
	formats    []string
	noProgress bool
}

var (
	opts flags
	cfg  *config.Config
	log  *logrus.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "backtest",
		Short:         "Backtest fund-of-funds portfolios",
		Long:          `Simulates a portfolio of mutual funds day by day from an order ledger or a target-weight schedule and reports its performance.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
			metrics.InitRegistry()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "config/config.yaml", "Path to configuration file")
	pf.StringVar(&opts.startDate, "start", "", "Override backtest start date (YYYY-MM-DD)")
	pf.StringVar(&opts.endDate, "end", "", "Override backtest end date (YYYY-MM-DD)")
	pf.StringVarP(&opts.output, "output", "o", "", "Override report output directory")
	pf.StringSliceVar(&opts.formats, "format", nil, "Report formats to write (csv, json)")
	pf.BoolVar(&opts.noProgress, "no-progress", false, "Hide the progress bar")

	root.AddCommand(newLedgerCmd(), newWeightsCmd(), newServeCmd())
	return root
}

// loadConfig reads .env, the config file, flag overrides and AWS secrets, then validates
func loadConfig(ctx context.Context) error {
	// .env is optional
	_ = godotenv.Load()

	loaded, err := config.LoadWithDefaults(opts.configFile)
	if err != nil {
		return err
	}
	if opts.startDate != "" {
		loaded.Backtest.StartDate = opts.startDate
	}
	if opts.endDate != "" {
		loaded.Backtest.EndDate = opts.endDate
	}
	if opts.output != "" {
		loaded.Report.OutputPath = opts.output
	}
	if len(opts.formats) > 0 {
		loaded.Report.Formats = opts.formats
	}

	if ctx == nil {
		ctx = context.Background()
	}
	secretsCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := config.LoadSecretsFromAWS(secretsCtx, loaded); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := config.Validate(loaded); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
