package report

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/performance"
)

// NewRun builds the persisted summary of a run. Undefined statistics are
// stored as zero; the full report keeps them as null.
func NewRun(res *backtest.Result, rep *performance.Report, benchmark string) (*models.BacktestRun, error) {
	run := &models.BacktestRun{
		ID:           res.RunID,
		Mode:         string(res.Mode),
		Benchmark:    benchmark,
		StartDate:    res.Start(),
		EndDate:      res.End(),
		Funds:        res.Codes,
		FinalUnitNAV: dec(res.FinalUnitNAV(), 8),
		FinalValue:   dec(res.FinalValue(), 4),
		Trades:       len(res.Executions),
		Rejected:     len(res.Rejections),
		CreatedAt:    time.Now().UTC(),
	}
	if rep == nil {
		return run, nil
	}

	if inception := sinceInception(rep); inception != nil {
		run.TotalReturn = dec(inception.Return, 4)
		run.BenchmarkReturn = dec(inception.BenchmarkReturn, 4)
		run.MaxDrawdown = dec(inception.MaxDrawdown, 4)
	}
	run.AnnualizedReturn = dec(rep.Risk.AnnualizedReturn, 6)
	run.SharpeRatio = dec(rep.Risk.SharpeRatio, 6)

	data, err := MarshalJSON(rep)
	if err != nil {
		return nil, err
	}
	run.Report = data
	return run, nil
}

func sinceInception(rep *performance.Report) *performance.PeriodMetrics {
	for _, wm := range rep.Rolling {
		if wm.Window.SinceInception() {
			return wm.Metrics
		}
	}
	return nil
}

func dec(v float64, places int32) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).RoundBank(places)
}
