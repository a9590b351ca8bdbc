package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/config"
	"github.com/yourusername/fund-backtester/internal/database"
	"github.com/yourusername/fund-backtester/internal/datasource"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
	"github.com/yourusername/fund-backtester/internal/performance"
	"github.com/yourusername/fund-backtester/internal/rebalance"
	"github.com/yourusername/fund-backtester/internal/report"
	"github.com/yourusername/fund-backtester/internal/repository"
)

// runner owns the connections shared by every backtest of one process
type runner struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *database.DB
	repos  *repository.Repositories
	loader *datasource.Loader
}

func newRunner(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*runner, error) {
	r := &runner{cfg: cfg, logger: logger}

	if cfg.Database.Enabled {
		db, err := database.Initialize(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		repos, err := repository.NewRepositories(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		r.db, r.repos = db, repos
	}

	source, err := datasource.NewFactory(r.db, logger).NewSource(cfg.DataSource)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.loader = datasource.NewLoader(source, logger)
	return r, nil
}

// Close releases the database pool
func (r *runner) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// request describes one run: exactly one of orders and schedule is set
type request struct {
	start, end time.Time
	orders     []models.Order
	schedule   *rebalance.Schedule
	progress   bool
}

type outcome struct {
	result *backtest.Result
	report *performance.Report
	files  []string
}

// run loads market data, simulates, evaluates, exports and optionally
// persists one backtest
func (r *runner) run(ctx context.Context, req request) (*outcome, error) {
	btCfg, err := backtest.FromConfig(&r.cfg.Backtest)
	if err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if !req.start.IsZero() {
		btCfg.StartDate = req.start
	}
	if !req.end.IsZero() {
		btCfg.EndDate = req.end
	}
	if req.schedule != nil {
		btCfg.Mode = backtest.ModeWeights
	} else {
		btCfg.Mode = backtest.ModeLedger
	}
	if err := btCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}

	navType, err := datasource.ParseNAVType(r.cfg.Backtest.NAVType)
	if err != nil {
		return nil, err
	}
	benchmark := r.cfg.Backtest.Benchmark
	if benchmark == "" {
		benchmark = datasource.DefaultBenchmark
	}

	market, err := r.loader.Load(ctx, datasource.LoadRequest{
		Codes:     fundCodes(r.cfg.Backtest.Funds, req),
		Benchmark: benchmark,
		Begin:     btCfg.StartDate,
		End:       btCfg.EndDate,
		NAVType:   navType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load market data: %w", err)
	}

	res, err := r.simulate(ctx, btCfg, market, req)
	if err != nil {
		return nil, err
	}

	frequency, err := performance.ParseFrequency(r.cfg.Report.Frequency)
	if err != nil {
		return nil, err
	}
	evaluator, err := performance.NewEvaluator(res, r.cfg.Backtest.RiskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate run: %w", err)
	}
	rep, err := evaluator.Evaluate(ctx, performance.Options{Frequency: frequency})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate run: %w", err)
	}

	out := &outcome{result: res, report: rep}
	if r.cfg.Report.OutputPath != "" && len(r.cfg.Report.Formats) > 0 {
		dir := r.cfg.Report.OutputPath
		out.files, err = report.Export(dir, res, rep, r.cfg.Report.Formats)
		if err != nil {
			return out, fmt.Errorf("failed to export report: %w", err)
		}
		r.logger.WithFields(logrus.Fields{"dir": dir, "files": len(out.files)}).Info("Report exported")
	}

	if r.cfg.Report.PersistRun {
		if err := r.persist(ctx, res, rep, benchmark); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (r *runner) simulate(ctx context.Context, btCfg backtest.BacktestConfig, market *nav.Market, req request) (*backtest.Result, error) {
	engine, err := backtest.NewEngine(btCfg, market, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if req.progress {
		bar := newProgressBar(engine.Days())
		engine.OnDay(func(backtest.DayProgress) { _ = bar.Add(1) })
		defer func() { _ = bar.Finish() }()
	}

	if req.schedule != nil {
		return engine.RunWeights(ctx, req.schedule)
	}
	return engine.RunLedger(ctx, req.orders)
}

func (r *runner) persist(ctx context.Context, res *backtest.Result, rep *performance.Report, benchmark string) error {
	if r.repos == nil {
		return fmt.Errorf("report.persist_run requires the database to be enabled")
	}
	run, err := report.NewRun(res, rep, benchmark)
	if err != nil {
		return fmt.Errorf("failed to build run summary: %w", err)
	}
	if err := r.repos.BacktestRun.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}
	r.logger.WithField("run_id", run.ID).Info("Backtest run persisted")
	return nil
}

// fundCodes merges the configured universe with the funds the inputs trade
func fundCodes(configured []string, req request) []string {
	seen := make(map[string]struct{})
	var codes []string
	add := func(code string) {
		if _, ok := seen[code]; ok || code == "" {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	for _, code := range configured {
		add(code)
	}
	for _, o := range req.orders {
		add(o.Code)
	}
	if req.schedule != nil {
		for _, code := range req.schedule.Codes() {
			add(code)
		}
	}
	sort.Strings(codes)
	return codes
}

func newProgressBar(days int) *progressbar.ProgressBar {
	return progressbar.NewOptions(days,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Simulating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
