package performance

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// RiskMetrics are whole-history annualised statistics of the unit NAV.
// Values are fractions, not percentages. Undefined values are NaN.
type RiskMetrics struct {
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	RiskFreeRate         float64 `json:"risk_free_rate"`
}

// Risk computes the annualised return, volatility and Sharpe ratio
func (e *Evaluator) Risk() RiskMetrics {
	return RiskMetrics{
		AnnualizedReturn:     AnnualizedReturn(e.dates[0], e.dates[len(e.dates)-1], e.unitNAV[0], e.unitNAV[len(e.unitNAV)-1]),
		AnnualizedVolatility: AnnualizedVolatility(e.unitNAV),
		SharpeRatio:          SharpeRatio(e.unitNAV, e.riskFreeRate),
		RiskFreeRate:         e.riskFreeRate,
	}
}

// AnnualizedReturn compounds the total return over actual calendar days
func AnnualizedReturn(start, end time.Time, first, last float64) float64 {
	days := end.Sub(start).Hours() / 24
	if days <= 0 || first == 0 {
		return 0
	}
	return math.Pow(last/first, 365/days) - 1
}

// AnnualizedVolatility is the sample standard deviation of daily returns
// scaled to a 252-day year
func AnnualizedVolatility(nav []float64) float64 {
	returns := dailyReturns(nav)
	if len(returns) < 2 {
		return math.NaN()
	}
	return sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear)
}

// SharpeRatio annualises the mean daily return by compounding and divides
// its excess over riskFreeRate by the annualised volatility
func SharpeRatio(nav []float64, riskFreeRate float64) float64 {
	returns := dailyReturns(nav)
	if len(returns) < 2 {
		return math.NaN()
	}
	mean, std := stat.MeanStdDev(returns, nil)
	vol := std * math.Sqrt(tradingDaysPerYear)
	if vol == 0 {
		return math.NaN()
	}
	annual := math.Pow(1+mean, tradingDaysPerYear) - 1
	return (annual - riskFreeRate) / vol
}

func dailyReturns(nav []float64) []float64 {
	if len(nav) < 2 {
		return nil
	}
	out := make([]float64, 0, len(nav)-1)
	for i := 1; i < len(nav); i++ {
		if nav[i-1] == 0 {
			continue
		}
		out = append(out, nav[i]/nav[i-1]-1)
	}
	return out
}

func sampleStdDev(values []float64) float64 {
	return stat.StdDev(values, nil)
}
