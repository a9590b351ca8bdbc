// Package performance evaluates a completed backtest history. Every
// calculation is a pure function of the immutable result.
package performance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/metrics"
)

const dateLayout = "2006-01-02"

// Evaluator computes performance statistics over one backtest result
type Evaluator struct {
	result       *backtest.Result
	dates        []time.Time
	unitNAV      []float64
	benchmark    []float64
	value        []float64
	cost         []float64
	riskFreeRate float64
}

// NewEvaluator prepares the portfolio series of res. riskFreeRate is an
// annual rate expressed as a fraction, 0.02 meaning 2%.
func NewEvaluator(res *backtest.Result, riskFreeRate float64) (*Evaluator, error) {
	if res == nil {
		return nil, fmt.Errorf("backtest result is required")
	}
	if len(res.Curve) == 0 {
		return nil, fmt.Errorf("backtest result has no history")
	}

	n := len(res.Curve)
	e := &Evaluator{
		result:       res,
		dates:        make([]time.Time, n),
		unitNAV:      make([]float64, n),
		benchmark:    make([]float64, n),
		value:        make([]float64, n),
		cost:         make([]float64, n),
		riskFreeRate: riskFreeRate,
	}
	for i, p := range res.Curve {
		e.dates[i] = p.Date
		e.unitNAV[i] = p.UnitNAV
		e.benchmark[i] = p.Benchmark
		e.value[i] = p.Value
		e.cost[i] = p.Cost
	}
	return e, nil
}

// Options selects what Evaluate computes
type Options struct {
	// AsOf is the reference date for rolling windows, resampled returns and
	// contributions. Zero means the last simulated date.
	AsOf      time.Time
	Windows   []Window
	StartYear int
	Frequency Frequency
}

// Report is the full evaluation of one run
type Report struct {
	AsOf          time.Time       `json:"as_of"`
	Rolling       []WindowMetrics `json:"rolling"`
	Yearly        []YearlyMetrics `json:"yearly"`
	Frequency     Frequency       `json:"frequency"`
	Returns       []PeriodReturn  `json:"returns"`
	Contributions []Contribution  `json:"contributions"`
	Risk          RiskMetrics     `json:"risk"`
}

// Evaluate runs every calculation for opts
func (e *Evaluator) Evaluate(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()
	defer func() {
		metrics.RecordEvaluationDuration(time.Since(started).Seconds())
	}()

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = e.dates[len(e.dates)-1]
	}
	if opts.Frequency == "" {
		opts.Frequency = Monthly
	}

	rolling, err := e.Rolling(ctx, asOf, opts.Windows)
	if err != nil {
		return nil, err
	}
	yearly, err := e.Yearly(ctx, opts.StartYear)
	if err != nil {
		return nil, err
	}
	returns, err := e.Returns(opts.Frequency, asOf)
	if err != nil {
		return nil, err
	}
	contributions, err := e.Contributions(e.lastOnOrBefore(asOf))
	if err != nil {
		return nil, err
	}

	return &Report{
		AsOf:          asOf,
		Rolling:       rolling,
		Yearly:        yearly,
		Frequency:     opts.Frequency,
		Returns:       returns,
		Contributions: contributions,
		Risk:          e.Risk(),
	}, nil
}

// lastOnOrBefore returns the last simulated date not after date
func (e *Evaluator) lastOnOrBefore(date time.Time) time.Time {
	hi := e.upTo(date)
	if hi < 0 {
		return date
	}
	return e.dates[hi]
}

// upTo returns the index of the last date not after date, or -1
func (e *Evaluator) upTo(date time.Time) int {
	hi := -1
	for i, d := range e.dates {
		if d.After(date) {
			break
		}
		hi = i
	}
	return hi
}

// round2 rounds half to even at two decimals. NaN and infinities pass through.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return r
}
