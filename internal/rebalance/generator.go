package rebalance

import (
	"fmt"
	"math"
	"time"

	"github.com/yourusername/fund-backtester/internal/logger"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
)

// Prices exposes forward-filled fund NAVs.
type Prices interface {
	AsOf(code string, date time.Time) (float64, bool)
}

// Holdings exposes the current unit count per fund.
type Holdings interface {
	CurrentUnits(code string) float64
}

// Fees is the fee schedule stamped on generated orders.
type Fees struct {
	Flat       float64
	Percentage float64
}

// Generator turns target weights into redemption and subscription orders.
type Generator struct {
	calendar *nav.Calendar
	prices   Prices
	codes    []string
	timing   Timing
	fees     Fees
	log      *logger.TradeLogger
}

// NewGenerator creates a generator over the full fund universe codes.
func NewGenerator(calendar *nav.Calendar, prices Prices, codes []string, timing Timing, fees Fees, log *logger.TradeLogger) (*Generator, error) {
	if calendar == nil {
		return nil, fmt.Errorf("calendar is required")
	}
	if prices == nil {
		return nil, fmt.Errorf("prices are required")
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("fund universe is empty")
	}
	if log == nil {
		log = logger.NewTradeLogger(nil)
	}
	return &Generator{
		calendar: calendar,
		prices:   prices,
		codes:    codes,
		timing:   timing,
		fees:     fees,
		log:      log,
	}, nil
}

// Timing returns the generator's redemption timing policy
func (g *Generator) Timing() Timing {
	return g.timing
}

// Initial builds the opening subscriptions for the first rebalance date,
// sized against notional rather than the empty portfolio. They confirm on
// the next trading day regardless of timing policy.
func (g *Generator) Initial(date time.Time, weights map[string]float64, holdings Holdings, notional float64) []models.Order {
	if len(weights) == 0 {
		return nil
	}
	confirm, ok := g.calendar.Next(date, 1)
	if !ok {
		g.log.LogRebalanceSkipped(date, "initial confirm date beyond calendar")
		return nil
	}
	return g.subscriptions(date, confirm, weights, holdings, notional)
}

// Rebalance builds the orders generated on date for schedule. currentNAV is
// the portfolio market value used to size targets. Redemptions come first.
func (g *Generator) Rebalance(date time.Time, schedule *Schedule, holdings Holdings, currentNAV float64) []models.Order {
	date = models.TruncateDate(date)

	switch g.timing {
	case SameDay:
		if date.After(schedule.Last()) || !schedule.Has(date) {
			return nil
		}
		confirm, ok := g.calendar.Next(date, 1)
		if !ok {
			g.log.LogRebalanceSkipped(date, "confirm date beyond calendar")
			return nil
		}
		weights := schedule.Weights(date)
		orders := g.redemptions(date, date, weights, holdings, currentNAV)
		return append(orders, g.subscriptions(date, confirm, weights, holdings, currentNAV)...)

	default:
		if !date.Before(schedule.Last()) {
			return nil
		}
		switchDate, ok := g.calendar.Next(date, 1)
		if !ok || !schedule.Has(switchDate) {
			return nil
		}
		confirm, ok := g.calendar.Next(date, 2)
		if !ok {
			g.log.LogRebalanceSkipped(date, "confirm date beyond calendar")
			return nil
		}
		weights := schedule.Weights(switchDate)
		orders := g.redemptions(date, switchDate, weights, holdings, currentNAV)
		return append(orders, g.subscriptions(switchDate, confirm, weights, holdings, currentNAV)...)
	}
}

// redemptions sells the excess over target units priced at date. Funds
// with no NAV history yet are left alone.
func (g *Generator) redemptions(date, confirm time.Time, weights map[string]float64, holdings Holdings, currentNAV float64) []models.Order {
	var orders []models.Order
	for _, code := range g.codes {
		price, ok := g.prices.AsOf(code, date)
		if !ok || price <= 0 {
			continue
		}
		units := holdings.CurrentUnits(code) - currentNAV*weights[code]/price
		if units > 0 && !math.IsInf(units, 0) {
			orders = append(orders, models.NewRedemption(code, units, date, confirm).WithFees(g.fees.Flat, g.fees.Percentage))
		}
	}
	return orders
}

// subscriptions buys the shortfall against target value. Holdings of a
// fund with no NAV history yet are valued at 1.0.
func (g *Generator) subscriptions(date, confirm time.Time, weights map[string]float64, holdings Holdings, currentNAV float64) []models.Order {
	var orders []models.Order
	for _, code := range g.codes {
		price, ok := g.prices.AsOf(code, date)
		if !ok {
			price = 1.0
		}
		amount := currentNAV*weights[code] - holdings.CurrentUnits(code)*price
		if amount > 0 {
			orders = append(orders, models.NewSubscription(code, amount, date, confirm).WithFees(g.fees.Flat, g.fees.Percentage))
		}
	}
	return orders
}
