package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/datasource"
	"github.com/yourusername/fund-backtester/internal/health"
	"github.com/yourusername/fund-backtester/internal/metrics"
	"github.com/yourusername/fund-backtester/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled backtests and serve metrics",
		Long:  `Runs the configured backtest on the schedule.cron expression over the trailing schedule.lookback window and serves /health, /ready, /runs and Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	r, err := newRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	sched := scheduler.NewScheduler(ctx, log)
	if cfg.Schedule.Enabled {
		lookback := cfg.Schedule.Lookback
		if lookback == "" {
			lookback = "1Y"
		}
		if err := sched.ScheduleBacktest(cfg.Schedule.Cron, lookback, r.scheduledJob); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.WithError(err).Warn("Scheduler did not stop cleanly")
			}
		}()
	} else {
		log.Warn("Schedule disabled; serving metrics only")
	}

	srvCfg := health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		MetricsPath: cfg.Metrics.Path,
		Logger:      log,
	}
	if cfg.Metrics.Enabled {
		srvCfg.Metrics = metrics.Handler()
	}
	if r.repos != nil {
		srvCfg.Runs = r.repos.BacktestRun
	}
	if cfg.Metrics.Port != 0 {
		srvCfg.Addr = fmt.Sprintf(":%d", cfg.Metrics.Port)
	}

	srv := health.NewServer(srvCfg)
	if r.db != nil {
		srv.AddCheck("database", r.db.Ping)
	}
	if cfg.Schedule.Enabled {
		srv.AddCheck("scheduler", func(context.Context) error {
			if !sched.IsRunning() {
				return fmt.Errorf("scheduler stopped")
			}
			return nil
		})
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	srv.SetReady(true)

	if next := sched.NextRun(); !next.IsZero() {
		log.WithField("next_run", next.Format(time.RFC3339)).Info("Waiting for next scheduled backtest")
	}
	<-ctx.Done()
	srv.SetReady(false)
	log.Info("Shutting down")
	return nil
}

// scheduledJob rereads the configured ledger or weight file so that each run
// sees the latest inputs
func (r *runner) scheduledJob(ctx context.Context, start, end time.Time) error {
	req := request{start: start, end: end}
	switch backtest.Mode(r.cfg.Backtest.Mode) {
	case backtest.ModeWeights:
		schedule, err := datasource.LoadWeights(r.cfg.Backtest.WeightsFile)
		if err != nil {
			return err
		}
		req.schedule = schedule
	default:
		orders, err := datasource.LoadOrders(r.cfg.Backtest.OrdersFile, r.cfg.Backtest.FlatFee, r.cfg.Backtest.PercentageFee)
		if err != nil {
			return err
		}
		req.orders = orders
	}

	out, err := r.run(ctx, req)
	if err != nil {
		return err
	}
	r.logger.WithField("final_unit_nav", out.result.FinalUnitNAV()).Info("Scheduled run finished")
	return nil
}
