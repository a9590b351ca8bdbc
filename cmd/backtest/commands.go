package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/fund-backtester/internal/datasource"
	"github.com/yourusername/fund-backtester/internal/report"
)

func newLedgerCmd() *cobra.Command {
	var ordersFile string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Replay an order ledger",
		Long:  `Replays subscriptions and redemptions from a CSV ledger (code, trade_date, confirm_date, type, amount, units).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstNonEmpty(ordersFile, cfg.Backtest.OrdersFile)
			if path == "" {
				return fmt.Errorf("an orders file is required (--orders or backtest.orders_file)")
			}
			orders, err := datasource.LoadOrders(path, cfg.Backtest.FlatFee, cfg.Backtest.PercentageFee)
			if err != nil {
				return err
			}
			log.WithField("orders", len(orders)).Info("Loaded order ledger")
			return runOnce(cmd, request{orders: orders})
		},
	}
	cmd.Flags().StringVar(&ordersFile, "orders", "", "Order ledger CSV")
	return cmd
}

func newWeightsCmd() *cobra.Command {
	var weightsFile string
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Rebalance to a target-weight schedule",
		Long:  `Generates orders from target weights read from CSV (long or wide) or YAML and rebalances on every schedule date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstNonEmpty(weightsFile, cfg.Backtest.WeightsFile)
			if path == "" {
				return fmt.Errorf("a weights file is required (--weights or backtest.weights_file)")
			}
			schedule, err := datasource.LoadWeights(path)
			if err != nil {
				return err
			}
			log.WithField("rebalances", len(schedule.Dates())).Info("Loaded weight schedule")
			return runOnce(cmd, request{schedule: schedule})
		},
	}
	cmd.Flags().StringVar(&weightsFile, "weights", "", "Target weight file (.csv, .yaml)")
	return cmd
}

// runOnce executes a single backtest and prints its report
func runOnce(cmd *cobra.Command, req request) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	r, err := newRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	req.progress = !opts.noProgress
	out, err := r.run(ctx, req)
	if out != nil {
		if printErr := report.Console(cmd.OutOrStdout(), out.result, out.report); printErr != nil {
			log.WithError(printErr).Warn("Failed to print report")
		}
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
