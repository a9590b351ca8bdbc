package performance

import (
	"math"
	"time"
)

// PeriodMetrics summarises a contiguous date range. Returns and moves are
// percentages rounded to two decimals.
type PeriodMetrics struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Return float64   `json:"return"`
	// BenchmarkReturn is NaN when the benchmark has fewer than two observations
	BenchmarkReturn float64 `json:"benchmark_return"`

	MaxRunUp      float64   `json:"max_run_up"`
	MaxRunUpDays  int       `json:"max_run_up_days"`
	MaxRunUpStart time.Time `json:"max_run_up_start"`
	MaxRunUpEnd   time.Time `json:"max_run_up_end"`

	MaxDrawdown      float64   `json:"max_drawdown"`
	MaxDrawdownDays  int       `json:"max_drawdown_days"`
	MaxDrawdownStart time.Time `json:"max_drawdown_start"`
	MaxDrawdownEnd   time.Time `json:"max_drawdown_end"`

	// ProfitLoss is the change in market value net of the change in cost
	ProfitLoss float64 `json:"profit_loss"`
}

// Period computes metrics over every simulated date in [from, to]. It
// returns nil when fewer than two dates fall inside the range.
func (e *Evaluator) Period(from, to time.Time) *PeriodMetrics {
	lo, hi := -1, -1
	for i, d := range e.dates {
		if d.Before(from) || d.After(to) {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return nil
	}
	return e.period(lo, hi)
}

// period computes metrics over the index range [lo, hi]. Drawdown is
// measured against the running maximum inside the range only.
func (e *Evaluator) period(lo, hi int) *PeriodMetrics {
	if hi-lo+1 <= 1 {
		return nil
	}
	nav := e.unitNAV[lo : hi+1]

	m := &PeriodMetrics{
		Start:           e.dates[lo],
		End:             e.dates[hi],
		Return:          round2((nav[len(nav)-1]/nav[0] - 1) * 100),
		BenchmarkReturn: round2(e.benchmarkReturn(lo, hi)),
	}

	// drawdown: deepest fall below the running peak
	peak := nav[0]
	ddEnd, dd := 0, 0.0
	for i, v := range nav {
		peak = math.Max(peak, v)
		if x := (v - peak) / peak * 100; x < dd {
			dd, ddEnd = x, i
		}
	}
	ddStart := argMax(nav[:ddEnd+1])
	m.MaxDrawdown = round2(dd)
	m.MaxDrawdownStart = e.dates[lo+ddStart]
	m.MaxDrawdownEnd = e.dates[lo+ddEnd]
	m.MaxDrawdownDays = ddEnd - ddStart

	// run-up: highest rise above the period start
	upEnd, up := 0, math.Inf(-1)
	for i, v := range nav {
		if x := v/nav[0] - 1; x > up {
			up, upEnd = x, i
		}
	}
	upStart := argMin(nav[:upEnd+1])
	m.MaxRunUp = round2(up * 100)
	m.MaxRunUpStart = e.dates[lo+upStart]
	m.MaxRunUpEnd = e.dates[lo+upEnd]
	m.MaxRunUpDays = upEnd - upStart

	pl := e.value[hi] - e.value[lo]
	pl -= e.cost[hi] - e.cost[lo]
	m.ProfitLoss = round2(pl)

	return m
}

// benchmarkReturn uses the first and last observed benchmark values in range
func (e *Evaluator) benchmarkReturn(lo, hi int) float64 {
	first, last := math.NaN(), math.NaN()
	count := 0
	for _, v := range e.benchmark[lo : hi+1] {
		if math.IsNaN(v) {
			continue
		}
		if count == 0 {
			first = v
		}
		last = v
		count++
	}
	if count < 2 || first == 0 {
		return math.NaN()
	}
	return (last/first - 1) * 100
}

// argMax returns the first index holding the maximum
func argMax(values []float64) int {
	idx := 0
	for i, v := range values {
		if v > values[idx] {
			idx = i
		}
	}
	return idx
}

// argMin returns the first index holding the minimum
func argMin(values []float64) int {
	idx := 0
	for i, v := range values {
		if v < values[idx] {
			idx = i
		}
	}
	return idx
}
