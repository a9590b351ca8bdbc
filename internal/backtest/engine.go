package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/logger"
	"github.com/yourusername/fund-backtester/internal/metrics"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
	"github.com/yourusername/fund-backtester/internal/rebalance"
)

// DayProgress is reported after each simulated day
type DayProgress struct {
	Date    time.Time
	Day     int
	Days    int
	UnitNAV float64
	Value   float64
}

// ingestFunc returns the orders placed on date
type ingestFunc func(date time.Time, st *portfolioState) []models.Order

// prepareFunc runs once before the first simulated day
type prepareFunc func(st *portfolioState, trades *logger.TradeLogger) error

// Engine orchestrates backtesting runs over pre-fetched market data.
// An Engine may run several backtests, but each run owns its own state.
type Engine struct {
	config BacktestConfig
	market *nav.Market
	logger *logrus.Logger
	onDay  func(DayProgress)
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg BacktestConfig, market *nav.Market, logger *logrus.Logger) (*Engine, error) {
	if market == nil {
		return nil, fmt.Errorf("market data is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Engine{
		config: cfg,
		market: market,
		logger: logger,
	}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// Logger returns the engine logger
func (e *Engine) Logger() *logrus.Logger {
	return e.logger
}

// OnDay registers a callback invoked after every simulated day
func (e *Engine) OnDay(fn func(DayProgress)) {
	e.onDay = fn
}

// Days returns the number of trading days the engine will simulate
func (e *Engine) Days() int {
	cal, err := e.window()
	if err != nil {
		return 0
	}
	return cal.Len()
}

// RunLedger replays an explicit order ledger. Orders are placed on their
// trade date; those outside the run window are never placed.
func (e *Engine) RunLedger(ctx context.Context, orders []models.Order) (*Result, error) {
	byDate := make(map[time.Time][]models.Order)
	for _, order := range orders {
		if !order.Type.Valid() {
			return nil, &models.InvalidOrderTypeError{Value: order.Type.String()}
		}
		if _, ok := e.market.Instrument(order.Code); !ok {
			return nil, fmt.Errorf("order for %s on %s references a fund outside the universe",
				order.Code, order.TradeDate.Format(dateLayout))
		}
		d := models.TruncateDate(order.TradeDate)
		byDate[d] = append(byDate[d], order)
	}

	prepare := func(st *portfolioState, trades *logger.TradeLogger) error {
		skipped := 0
		for d, placed := range byDate {
			if !st.calendar.Contains(d) {
				skipped += len(placed)
			}
		}
		if skipped > 0 {
			e.logger.WithField("orders", skipped).Warn("Orders with a trade date outside the trading calendar will not be placed")
		}
		if e.config.AdjustMoneyMarket {
			st.moneyMarketAdjusted = AdjustMoneyMarketRedemptions(orders, e.market, st.prices, trades)
		}
		return nil
	}
	ingest := func(date time.Time, _ *portfolioState) []models.Order {
		return byDate[date]
	}
	return e.run(ctx, ModeLedger, prepare, ingest)
}

// RunWeights converts a target-weight schedule into orders as the calendar
// advances. The first schedule date is an initial subscription sized by the
// configured notional; later dates follow the redemption timing policy.
func (e *Engine) RunWeights(ctx context.Context, schedule *rebalance.Schedule) (*Result, error) {
	if schedule == nil {
		return nil, fmt.Errorf("weight schedule is required")
	}
	for _, code := range schedule.Codes() {
		if _, ok := e.market.Instrument(code); !ok {
			return nil, fmt.Errorf("weight schedule references fund %s outside the universe", code)
		}
	}

	first := schedule.First()
	var gen *rebalance.Generator
	// generated orders wait here until their trade date
	placed := make(map[time.Time][]models.Order)

	prepare := func(st *portfolioState, trades *logger.TradeLogger) error {
		if !st.calendar.Contains(first) {
			return &models.DataUnavailableError{
				Source: "calendar",
				What:   fmt.Sprintf("first rebalance date %s is not a trading date in the run window", first.Format(dateLayout)),
			}
		}
		g, err := rebalance.NewGenerator(st.calendar, e.market.Funds, st.ledger.Codes(), e.config.Timing, e.config.Fees, trades)
		if err != nil {
			return err
		}
		gen = g
		return nil
	}

	ingest := func(date time.Time, st *portfolioState) []models.Order {
		var generated []models.Order
		if date.Equal(first) {
			generated = gen.Initial(date, schedule.Weights(date), st.ledger, e.config.InitialNotional)
		} else {
			generated = gen.Rebalance(date, schedule, st.ledger, st.currentNAV)
		}
		if len(generated) > 0 {
			metrics.RecordRebalance()
		}
		for _, order := range generated {
			d := models.TruncateDate(order.TradeDate)
			placed[d] = append(placed[d], order)
		}
		today := placed[date]
		delete(placed, date)
		return today
	}

	return e.run(ctx, ModeWeights, prepare, ingest)
}

func (e *Engine) run(ctx context.Context, mode Mode, prepare prepareFunc, ingest ingestFunc) (*Result, error) {
	started := time.Now()
	runID := uuid.New()
	runLog := logger.NewRunLogger(e.logger, runID)
	trades := logger.NewTradeLogger(e.logger)

	fail := func(date time.Time, err error) (*Result, error) {
		status := "failure"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "canceled"
		}
		metrics.RecordBacktestRun(string(mode), status)
		runLog.LogRunFailed(string(mode), date, err)
		return nil, err
	}

	cal, err := e.window()
	if err != nil {
		return fail(e.config.StartDate, err)
	}
	st := newPortfolioState(cal, e.market, e.config, trades)
	if err := prepare(st, trades); err != nil {
		return fail(cal.Start(), err)
	}

	runLog.LogRunStarted(string(mode), cal.Start(), cal.End(), len(st.ledger.Codes()))

	for i, date := range cal.Dates() {
		if err := ctx.Err(); err != nil {
			return fail(date, fmt.Errorf("backtest interrupted on %s: %w", date.Format(dateLayout), err))
		}
		if err := e.step(date, st, ingest); err != nil {
			return fail(date, err)
		}

		metrics.UpdatePortfolio(st.unitNAV, st.currentNAV, st.book.Queued())
		if e.onDay != nil {
			e.onDay(DayProgress{
				Date:    date,
				Day:     i + 1,
				Days:    cal.Len(),
				UnitNAV: st.unitNAV,
				Value:   st.currentNAV,
			})
		}
	}

	res := st.result(runID, mode, e.market.Instruments)
	res.Duration = time.Since(started)

	metrics.RecordBacktestRun(string(mode), "success")
	metrics.RecordBacktestDuration(string(mode), res.Duration.Seconds())
	metrics.UpdateFinalUnitNAV(string(mode), res.FinalUnitNAV())
	runLog.LogRunCompleted(string(mode), cal.Len(), len(res.Executions), len(res.Rejections), res.FinalUnitNAV(), res.Duration)

	return res, nil
}

// step simulates one trading day. Settlement runs before and after order
// processing so orders confirming on their trade date apply the same day.
func (e *Engine) step(date time.Time, st *portfolioState, ingest ingestFunc) error {
	if err := st.settle(date); err != nil {
		return err
	}
	st.ledger.ClampDust(e.config.DustThreshold)
	st.revalue(date, e.config.DustThreshold)

	orders := ingest(date, st)
	st.orders = append(st.orders, orders...)
	st.book.Add(orders...)

	if st.book.Pending() > 0 {
		res, err := st.book.Process(date, st.prices, st.ledger, st.unitNAV)
		st.absorb(res)
		if err != nil {
			return err
		}
		if len(res.Breaches) > 0 && !e.config.ContinueOnRedemptionError {
			return res.Breaches[0]
		}
	}

	if err := st.settle(date); err != nil {
		return err
	}
	return st.record(date, e.market.Benchmark)
}

// window restricts the market calendar to the configured date range
func (e *Engine) window() (*nav.Calendar, error) {
	cal := e.market.Calendar
	start, end := e.config.StartDate, e.config.EndDate
	if start.IsZero() {
		start = cal.Start()
	}
	if end.IsZero() {
		end = cal.End()
	}

	dates := cal.Between(start, end)
	if len(dates) == 0 {
		return nil, &models.DataUnavailableError{
			Source: "calendar",
			What:   fmt.Sprintf("no trading dates between %s and %s", start.Format(dateLayout), end.Format(dateLayout)),
		}
	}
	return nav.NewCalendar(dates)
}
