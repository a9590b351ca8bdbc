package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/yourusername/fund-backtester/internal/ledger"
	"github.com/yourusername/fund-backtester/internal/logger"
	"github.com/yourusername/fund-backtester/internal/metrics"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
	"github.com/yourusername/fund-backtester/internal/orderbook"
)

// portfolioState is the working state of one run. It is owned by a single
// engine goroutine.
type portfolioState struct {
	calendar *nav.Calendar
	ledger   *ledger.Ledger
	book     *orderbook.Book
	// prices is the trade-price book: a private copy of the market NAVs that
	// as-of fills and money-market back-dating may write to.
	prices *nav.Book
	value  ledger.PriceFunc

	portfolioUnits float64
	unitNAV        float64
	currentNAV     float64

	curve       EquityCurve
	orders      []models.Order
	executions  []models.Execution
	rejections  []models.Rejection
	breaches    []*models.RedemptionExceedsHoldingsError
	adjustments map[orderbook.Adjustment]int

	moneyMarketAdjusted int
}

func newPortfolioState(cal *nav.Calendar, market *nav.Market, cfg BacktestConfig, trades *logger.TradeLogger) *portfolioState {
	valuation := market.Funds
	return &portfolioState{
		calendar:    cal,
		ledger:      ledger.New(cal.Dates(), market.Codes(), cfg.DustThreshold),
		book:        orderbook.NewBook(cfg.Tolerance, trades),
		prices:      market.Funds.Clone(),
		value:       valuation.AsOf,
		unitNAV:     1.0,
		curve:       make(EquityCurve, 0, cal.Len()),
		adjustments: make(map[orderbook.Adjustment]int),
	}
}

// settle applies every execution confirming on date
func (s *portfolioState) settle(date time.Time) error {
	for _, exec := range s.book.Due(date) {
		units, cost, delta := exec.Units, exec.Amount, exec.PortfolioUnits
		if exec.Type == models.TradeTypeRedeem {
			units, cost, delta = -units, -cost, -delta
		}
		if err := s.ledger.ApplyDelta(exec.Code, units, cost); err != nil {
			return fmt.Errorf("failed to settle %s %s confirmed %s: %w",
				exec.Type, exec.Code, date.Format(dateLayout), err)
		}
		s.portfolioUnits += delta
		s.executions = append(s.executions, exec)
		metrics.RecordOrderSettled(exec.Type.String())
	}
	return nil
}

// revalue recomputes the portfolio market value and, when enough portfolio
// units are outstanding, the unit NAV.
func (s *portfolioState) revalue(date time.Time, dust float64) {
	s.currentNAV = s.ledger.MarketValue(date, s.value)
	if s.portfolioUnits > dust {
		s.unitNAV = s.currentNAV / s.portfolioUnits
	}
}

func (s *portfolioState) absorb(res orderbook.Result) {
	s.rejections = append(s.rejections, res.Rejected...)
	s.breaches = append(s.breaches, res.Breaches...)
	for adj, n := range res.Adjusted {
		s.adjustments[adj] += n
		metrics.RecordRedemptionAdjustment(adj.String(), n)
	}
	for _, exec := range res.Accepted {
		metrics.RecordOrderProcessed(exec.Type.String(), "accepted")
	}
	for _, rej := range res.Rejected {
		metrics.RecordOrderProcessed(rej.Order.Type.String(), "rejected")
	}
	for range res.Breaches {
		metrics.RecordOrderProcessed(models.TradeTypeRedeem.String(), "breach")
	}
}

// record writes the day's final state into the history
func (s *portfolioState) record(date time.Time, benchmark *nav.Series) error {
	if err := s.ledger.Snapshot(date, s.value); err != nil {
		return err
	}
	s.currentNAV = s.ledger.Values.RowSum(date)

	bench, _, ok := benchmark.AsOf(date)
	if !ok {
		bench = math.NaN()
	}
	s.curve = append(s.curve, EquityPoint{
		Date:      date,
		UnitNAV:   s.unitNAV,
		Value:     s.currentNAV,
		Cost:      s.ledger.Costs.RowSum(date),
		Benchmark: bench,
	})
	return nil
}
