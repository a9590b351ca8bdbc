package orderbook

import (
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/fund-backtester/internal/logger"
	"github.com/yourusername/fund-backtester/internal/models"
)

// Prices is the trade-price view the book reads from.
type Prices interface {
	At(code string, date time.Time) (float64, bool)
	Ensure(code string, date time.Time) (float64, bool)
}

// Holdings is the working position state reconciliation may overwrite.
type Holdings interface {
	CurrentUnits(code string) float64
	SetUnits(code string, units float64) error
}

// Result summarises one Process call.
type Result struct {
	Accepted []models.Execution
	Rejected []models.Rejection
	Adjusted map[Adjustment]int
	// Breaches are redemptions beyond the hard tolerance. The orders are dropped;
	// the caller decides whether the run continues.
	Breaches []*models.RedemptionExceedsHoldingsError
}

// Book holds pending orders and the confirm-date keyed settlement queue.
// It is owned by a single engine and is not safe for concurrent use.
type Book struct {
	tolerance Tolerance
	pending   []models.Order
	queue     map[time.Time][]models.Execution
	log       *logger.TradeLogger
}

// NewBook creates an empty book
func NewBook(tolerance Tolerance, log *logger.TradeLogger) *Book {
	if log == nil {
		log = logger.NewTradeLogger(nil)
	}
	return &Book{
		tolerance: tolerance,
		queue:     make(map[time.Time][]models.Execution),
		log:       log,
	}
}

// Add appends orders to the pending book
func (b *Book) Add(orders ...models.Order) {
	b.pending = append(b.pending, orders...)
}

// Pending returns the number of orders awaiting validation
func (b *Book) Pending() int {
	return len(b.pending)
}

// Queued returns the number of confirmed orders awaiting settlement
func (b *Book) Queued() int {
	n := 0
	for _, execs := range b.queue {
		n += len(execs)
	}
	return n
}

// ConfirmDates returns the dates that still have queued orders
func (b *Book) ConfirmDates() []time.Time {
	dates := make([]time.Time, 0, len(b.queue))
	for d := range b.queue {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Remaining returns the queued orders in confirm-date order without removing them
func (b *Book) Remaining() []models.Execution {
	var out []models.Execution
	for _, d := range b.ConfirmDates() {
		out = append(out, b.queue[d]...)
	}
	return out
}

// Due removes and returns the orders confirming on date
func (b *Book) Due(date time.Time) []models.Execution {
	key := models.TruncateDate(date)
	execs := b.queue[key]
	delete(b.queue, key)
	for i := range execs {
		execs[i].Status = models.OrderStatusApplied
	}
	return execs
}

// Process validates every pending order on date now. unitNAV is the
// portfolio's current per-share value used to size portfolio-unit deltas.
// Every pending order leaves the book: accepted ones join the settlement
// queue, the rest are rejected or recorded as breaches. An unknown trade
// type aborts processing.
func (b *Book) Process(now time.Time, prices Prices, holdings Holdings, unitNAV float64) (Result, error) {
	now = models.TruncateDate(now)
	res := Result{Adjusted: make(map[Adjustment]int)}

	orders := b.pending
	b.pending = nil

	for idx, order := range orders {
		if !order.Type.Valid() {
			b.pending = append(b.pending, orders[idx+1:]...)
			return res, &models.InvalidOrderTypeError{Value: order.Type.String()}
		}

		exec, reason, breach, err := b.price(now, order, prices, holdings, unitNAV, &res)
		if err != nil {
			return res, err
		}
		if breach != nil {
			b.log.LogRedemptionExceeded(breach)
			res.Breaches = append(res.Breaches, breach)
			continue
		}
		if reason != "" {
			b.log.LogOrderRejected(order, now, reason)
			res.Rejected = append(res.Rejected, models.Rejection{Order: order, Date: now, Reason: reason})
			continue
		}

		b.queue[exec.ConfirmDate] = append(b.queue[exec.ConfirmDate], exec)
		res.Accepted = append(res.Accepted, exec)
		b.log.LogOrderAccepted(exec, holdings.CurrentUnits(order.Code))
	}
	return res, nil
}

func (b *Book) price(now time.Time, order models.Order, prices Prices, holdings Holdings, unitNAV float64, res *Result) (models.Execution, string, *models.RedemptionExceedsHoldingsError, error) {
	if order.Type == models.TradeTypeRedeem {
		// Fill the as-of value first so redemptions on non-publishing days still price.
		prices.Ensure(order.Code, now)
	}
	nav, ok := prices.At(order.Code, now)
	if !ok || nav <= 0 {
		return models.Execution{}, "no NAV on trade date", nil, nil
	}

	exec := models.Execution{
		OrderID:     order.ID,
		Code:        order.Code,
		Type:        order.Type,
		NAV:         nav,
		TradeDate:   now,
		ConfirmDate: models.TruncateDate(order.ConfirmDate),
		Status:      models.OrderStatusConfirmed,
	}
	if exec.ConfirmDate.Before(now) {
		exec.ConfirmDate = now
	}

	pct := order.PercentageFee / 100
	switch order.Type {
	case models.TradeTypeSubscribe:
		if !order.HasAmount() {
			return models.Execution{}, "subscription without amount", nil, nil
		}
		exec.Amount = order.Amount
		exec.Units = (order.Amount - order.FlatFee) / nav / (1 + pct)
		exec.PortfolioUnits = order.Amount / unitNAV

	case models.TradeTypeRedeem:
		units := order.Units
		if !order.HasUnits() {
			if !order.HasAmount() {
				return models.Execution{}, "redemption without units or amount", nil, nil
			}
			units = (order.Amount + order.FlatFee) / nav / (1 - pct)
		}
		exec.Units = units
		exec.PortfolioUnits = units * nav / unitNAV
		if order.HasAmount() {
			exec.Amount = order.Amount
		} else {
			exec.Amount = units*nav*(1-pct) - order.FlatFee
		}

		held := holdings.CurrentUnits(order.Code)
		adj, exceeded := b.tolerance.Reconcile(units, held)
		if exceeded {
			return models.Execution{}, "", &models.RedemptionExceedsHoldingsError{
				Code:      order.Code,
				Date:      now,
				Requested: units,
				Held:      held,
				Tolerance: b.tolerance.Warn,
			}, nil
		}
		if adj != AdjustmentNone {
			if err := holdings.SetUnits(order.Code, units); err != nil {
				return models.Execution{}, "", nil, fmt.Errorf("failed to reconcile holdings: %w", err)
			}
			res.Adjusted[adj]++
			tol := b.tolerance.Noise
			if adj == AdjustmentWarn {
				tol = b.tolerance.Warn
			}
			b.log.LogRedemptionAdjusted(order.Code, now, units, held, tol, adj == AdjustmentWarn)
		}
	}
	return exec, "", nil, nil
}
