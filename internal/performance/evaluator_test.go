package performance

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/ledger"
	"github.com/yourusername/fund-backtester/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func consecutive(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// testResult builds a single-fund history where the fund value tracks the
// unit NAV on a constant cost of 1000.
func testResult(t *testing.T, dates []time.Time, navs, bench []float64) *backtest.Result {
	t.Helper()
	require.Len(t, navs, len(dates))

	book := ledger.New(dates, []string{"A"}, 1e-4)
	require.NoError(t, book.ApplyDelta("A", 1000, 1000))

	curve := make(backtest.EquityCurve, len(dates))
	for i, d := range dates {
		nav := navs[i]
		require.NoError(t, book.Snapshot(d, func(string, time.Time) (float64, bool) { return nav, true }))
		b := math.NaN()
		if bench != nil {
			b = bench[i]
		}
		curve[i] = backtest.EquityPoint{Date: d, UnitNAV: nav, Value: 1000 * nav, Cost: 1000, Benchmark: b}
	}

	return &backtest.Result{
		Mode:        backtest.ModeLedger,
		Codes:       []string{"A"},
		Instruments: []models.Instrument{{Code: "A", Name: "Alpha"}},
		Curve:       curve,
		Units:       book.Units,
		Values:      book.Values,
		Costs:       book.Costs,
	}
}

func testEvaluator(t *testing.T, dates []time.Time, navs, bench []float64) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(testResult(t, dates, navs, bench), 0.02)
	require.NoError(t, err)
	return e
}

func TestNewEvaluatorRequiresHistory(t *testing.T) {
	_, err := NewEvaluator(nil, 0)
	assert.Error(t, err)
	_, err = NewEvaluator(&backtest.Result{}, 0)
	assert.Error(t, err)
}

func TestPeriodDrawdownAndRunUp(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 4)
	e := testEvaluator(t, dates, []float64{1.0, 1.2, 0.9, 1.1}, []float64{1.0, 1.01, 1.02, 1.03})

	m := e.Period(dates[0], dates[3])
	require.NotNil(t, m)

	assert.Equal(t, 10.0, m.Return)
	assert.Equal(t, 3.0, m.BenchmarkReturn)

	assert.Equal(t, -25.0, m.MaxDrawdown)
	assert.Equal(t, dates[1], m.MaxDrawdownStart)
	assert.Equal(t, dates[2], m.MaxDrawdownEnd)
	assert.Equal(t, 1, m.MaxDrawdownDays)

	assert.Equal(t, 20.0, m.MaxRunUp)
	assert.Equal(t, dates[0], m.MaxRunUpStart)
	assert.Equal(t, dates[1], m.MaxRunUpEnd)
	assert.Equal(t, 1, m.MaxRunUpDays)

	assert.Equal(t, 100.0, m.ProfitLoss)
}

func TestPeriodDrawdownUsesPeriodPeak(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 5)
	e := testEvaluator(t, dates, []float64{2.0, 1.0, 1.1, 0.99, 1.2}, nil)

	// starting the period after the 2.0 peak measures from 1.1
	m := e.Period(dates[1], dates[4])
	require.NotNil(t, m)
	assert.Equal(t, -10.0, m.MaxDrawdown)
	assert.Equal(t, dates[2], m.MaxDrawdownStart)
	assert.True(t, math.IsNaN(m.BenchmarkReturn))
}

func TestPeriodNeedsTwoDates(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 3)
	e := testEvaluator(t, dates, []float64{1, 1.1, 1.2}, nil)
	assert.Nil(t, e.Period(dates[1], dates[1]))
	assert.Nil(t, e.Period(date(2025, 1, 1), date(2025, 2, 1)))
}

func TestMonotoneSeriesHasNoDrawdown(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 3)
	e := testEvaluator(t, dates, []float64{1, 1.1, 1.2}, nil)
	m := e.Period(dates[0], dates[2])
	require.NotNil(t, m)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.MaxDrawdownDays)
	assert.Equal(t, dates[0], m.MaxDrawdownEnd)
}

func TestMonthlyReturnsMeasureFirstPeriodFromSeriesStart(t *testing.T) {
	dates := []time.Time{date(2024, 1, 15), date(2024, 1, 31), date(2024, 2, 15), date(2024, 2, 29)}
	navs := []float64{1.0, 1.05, 1.08, 1.1025}
	bench := []float64{1.0, 1.02, math.NaN(), 1.02}
	e := testEvaluator(t, dates, navs, bench)

	returns, err := e.Returns(Monthly, dates[3])
	require.NoError(t, err)
	require.Len(t, returns, 2)

	assert.Equal(t, "2024-01", returns[0].Label)
	assert.Equal(t, date(2024, 1, 31), returns[0].PeriodEnd)
	assert.Equal(t, 5.0, returns[0].Portfolio)
	assert.Equal(t, 2.0, returns[0].Benchmark)
	assert.Equal(t, 3.0, returns[0].Excess)

	assert.Equal(t, "2024-02", returns[1].Label)
	assert.Equal(t, 5.0, returns[1].Portfolio)
	assert.Equal(t, 0.0, returns[1].Benchmark)
	assert.Equal(t, 5.0, returns[1].Excess)
}

func TestReturnsStopAtAsOf(t *testing.T) {
	dates := []time.Time{date(2024, 1, 15), date(2024, 1, 31), date(2024, 2, 15), date(2024, 2, 29)}
	e := testEvaluator(t, dates, []float64{1, 1.1, 1.2, 1.3}, nil)

	returns, err := e.Returns(Monthly, date(2024, 2, 20))
	require.NoError(t, err)
	require.Len(t, returns, 2)
	assert.InDelta(t, (1.2/1.1-1)*100, returns[1].Portfolio, 0.005)
	assert.True(t, math.IsNaN(returns[1].Benchmark))

	_, err = e.Returns(Frequency("D"), dates[3])
	assert.Error(t, err)
}

func TestFrequencyPeriodEnds(t *testing.T) {
	// 2024-01-03 is a Wednesday
	assert.Equal(t, date(2024, 1, 7), Weekly.PeriodEnd(date(2024, 1, 3)))
	assert.Equal(t, date(2024, 1, 7), Weekly.PeriodEnd(date(2024, 1, 7)))
	assert.Equal(t, date(2024, 2, 29), Monthly.PeriodEnd(date(2024, 2, 3)))
	assert.Equal(t, date(2024, 3, 31), Quarterly.PeriodEnd(date(2024, 2, 3)))
	assert.Equal(t, date(2024, 12, 31), Quarterly.PeriodEnd(date(2024, 11, 30)))
	assert.Equal(t, "2024-Q4", Quarterly.Label(date(2024, 12, 31)))

	f, err := ParseFrequency("quarterly")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, f)
	_, err = ParseFrequency("yearly")
	assert.Error(t, err)
}

func TestRollingWindows(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 100)
	navs := make([]float64, len(dates))
	for i := range navs {
		navs[i] = 1 + 0.01*float64(i)
	}
	e := testEvaluator(t, dates, navs, nil)
	asOf := dates[len(dates)-1] // 2024-04-09

	rolling, err := e.Rolling(context.Background(), asOf, nil)
	require.NoError(t, err)
	require.Len(t, rolling, 5)

	assert.Equal(t, "1M", rolling[0].Window.Name)
	require.NotNil(t, rolling[0].Metrics)
	assert.Equal(t, date(2024, 3, 9), rolling[0].Metrics.Start)
	assert.Equal(t, asOf, rolling[0].Metrics.End)

	// the 6M and 1Y windows are clipped to the first simulated date
	assert.Equal(t, dates[0], rolling[2].Metrics.Start)
	assert.Equal(t, dates[0], rolling[3].Metrics.Start)
	assert.Equal(t, "inception", rolling[4].Window.Name)
	assert.Equal(t, 99.0, rolling[4].Metrics.Return)
}

func TestWindowFromClampsMonthEnd(t *testing.T) {
	w, err := ParseWindow("1M")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 2, 29), w.From(date(2024, 3, 31)))

	w, err = ParseWindow("1Y")
	require.NoError(t, err)
	assert.Equal(t, date(2023, 2, 28), w.From(date(2024, 2, 29)))

	w, err = ParseWindow("inception")
	require.NoError(t, err)
	assert.True(t, w.SinceInception())
}

func TestYearlyMetrics(t *testing.T) {
	dates := []time.Time{
		date(2023, 12, 28), date(2023, 12, 29),
		date(2024, 1, 2), date(2024, 6, 3), date(2024, 12, 31),
		date(2025, 1, 2),
	}
	navs := []float64{1.0, 1.1, 1.1, 1.21, 1.21, 1.3}
	bench := []float64{1, 1, 1, 1.05, 1.1, 1.1}
	e := testEvaluator(t, dates, navs, bench)

	years, err := e.Yearly(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, years, 2, "2025 has a single date")

	assert.Equal(t, 2023, years[0].Year)
	assert.Equal(t, 10.0, years[0].Return)

	assert.Equal(t, 2024, years[1].Year)
	assert.Equal(t, 10.0, years[1].Return)
	assert.Equal(t, 10.0, years[1].BenchmarkReturn)
	assert.Equal(t, 0.0, years[1].ExcessReturn)
	assert.False(t, math.IsNaN(years[1].Volatility))

	later, err := e.Yearly(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, 2024, later[0].Year)
}

func TestYearlyHonoursCancellation(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 3)
	e := testEvaluator(t, dates, []float64{1, 1, 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Yearly(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContributions(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 1)
	book := ledger.New(dates, []string{"A", "B", "C"}, 1e-4)
	require.NoError(t, book.ApplyDelta("A", 100, 100))
	require.NoError(t, book.ApplyDelta("B", 50, 100))
	prices := map[string]float64{"A": 1.5, "B": 1.2, "C": 1.0}
	require.NoError(t, book.Snapshot(dates[0], func(code string, _ time.Time) (float64, bool) {
		return prices[code], true
	}))

	res := &backtest.Result{
		Codes:  []string{"A", "B", "C"},
		Curve:  backtest.EquityCurve{{Date: dates[0], UnitNAV: 1, Value: 210, Cost: 200}},
		Values: book.Values,
		Costs:  book.Costs,
	}
	e, err := NewEvaluator(res, 0)
	require.NoError(t, err)

	out, err := e.Contributions(dates[0])
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "A", out[0].Code)
	assert.InDelta(t, 50, out[0].ProfitLoss, 1e-9)
	assert.InDelta(t, 150.0/210, out[0].Weight, 1e-9)
	assert.InDelta(t, 5.0, out[0].Share, 1e-9)

	assert.Equal(t, "C", out[1].Code)
	assert.Zero(t, out[1].Share)

	assert.Equal(t, "B", out[2].Code)
	assert.InDelta(t, -4.0, out[2].Share, 1e-9)

	_, err = e.Contributions(date(2030, 1, 1))
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestRiskMetrics(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 366)
	navs := make([]float64, len(dates))
	for i := range navs {
		navs[i] = 1 + 0.1*float64(i)/365
		if i%2 == 1 {
			navs[i] += 0.001
		}
	}
	e := testEvaluator(t, dates, navs, nil)

	risk := e.Risk()
	assert.InDelta(t, navs[365]/navs[0]-1, risk.AnnualizedReturn, 1e-9)
	assert.Greater(t, risk.AnnualizedVolatility, 0.0)
	assert.False(t, math.IsNaN(risk.SharpeRatio))
	assert.Equal(t, 0.02, risk.RiskFreeRate)

	flat := testEvaluator(t, consecutive(date(2024, 1, 1), 3), []float64{1, 1, 1}, nil)
	assert.True(t, math.IsNaN(flat.Risk().SharpeRatio))
	assert.Zero(t, flat.Risk().AnnualizedVolatility)
}

func TestEvaluateBuildsFullReport(t *testing.T) {
	dates := consecutive(date(2024, 1, 1), 60)
	navs := make([]float64, len(dates))
	bench := make([]float64, len(dates))
	for i := range navs {
		navs[i] = 1 + 0.001*float64(i)
		bench[i] = 1 + 0.0005*float64(i)
	}
	e := testEvaluator(t, dates, navs, bench)

	report, err := e.Evaluate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, dates[59], report.AsOf)
	assert.Equal(t, Monthly, report.Frequency)
	assert.Len(t, report.Rolling, 5)
	assert.Len(t, report.Yearly, 1)
	assert.Len(t, report.Returns, 2)
	require.Len(t, report.Contributions, 1)
	assert.Equal(t, "Alpha", report.Contributions[0].Name)
}
