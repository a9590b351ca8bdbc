package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/fund-backtester/internal/ledger"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/orderbook"
)

// Result is the completed history of one run
type Result struct {
	RunID       uuid.UUID
	Mode        Mode
	Codes       []string
	Instruments []models.Instrument
	Curve       EquityCurve

	// Units, Values and Costs are date x fund matrices over the run window
	Units  *ledger.Matrix
	Values *ledger.Matrix
	Costs  *ledger.Matrix

	// Orders is every order ingested, including generated rebalance trades
	Orders []models.Order
	// Executions is the confirmed trade ledger in settlement order
	Executions []models.Execution
	// Unsettled holds accepted orders confirming after the window
	Unsettled   []models.Execution
	Rejections  []models.Rejection
	Breaches    []*models.RedemptionExceedsHoldingsError
	Adjustments map[orderbook.Adjustment]int

	MoneyMarketAdjusted int
	Duration            time.Duration
}

// Dates returns the simulated trading dates
func (r *Result) Dates() []time.Time {
	return r.Curve.Dates()
}

// Start returns the first simulated date
func (r *Result) Start() time.Time {
	if len(r.Curve) == 0 {
		return time.Time{}
	}
	return r.Curve[0].Date
}

// End returns the last simulated date
func (r *Result) End() time.Time {
	if len(r.Curve) == 0 {
		return time.Time{}
	}
	return r.Curve[len(r.Curve)-1].Date
}

// FinalUnitNAV returns the closing unit NAV
func (r *Result) FinalUnitNAV() float64 {
	if len(r.Curve) == 0 {
		return 1.0
	}
	return r.Curve[len(r.Curve)-1].UnitNAV
}

// FinalValue returns the closing market value
func (r *Result) FinalValue() float64 {
	if len(r.Curve) == 0 {
		return 0
	}
	return r.Curve[len(r.Curve)-1].Value
}

// Instrument looks up a fund by code
func (r *Result) Instrument(code string) (models.Instrument, bool) {
	for _, inst := range r.Instruments {
		if inst.Code == code {
			return inst, true
		}
	}
	return models.Instrument{}, false
}

func (s *portfolioState) result(runID uuid.UUID, mode Mode, instruments []models.Instrument) *Result {
	return &Result{
		RunID:               runID,
		Mode:                mode,
		Codes:               s.ledger.Codes(),
		Instruments:         instruments,
		Curve:               s.curve,
		Units:               s.ledger.Units,
		Values:              s.ledger.Values,
		Costs:               s.ledger.Costs,
		Orders:              s.orders,
		Executions:          s.executions,
		Unsettled:           s.book.Remaining(),
		Rejections:          s.rejections,
		Breaches:            s.breaches,
		Adjustments:         s.adjustments,
		MoneyMarketAdjusted: s.moneyMarketAdjusted,
	}
}
