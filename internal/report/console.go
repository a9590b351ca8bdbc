// Package report renders and exports completed backtests.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/performance"
)

const dateLayout = "2006-01-02"

// Console writes a human-readable summary of a run to w
func Console(w io.Writer, res *backtest.Result, rep *performance.Report) error {
	fmt.Fprintf(w, "Backtest %s (%s)\n", res.RunID, res.Mode)
	fmt.Fprintf(w, "Period: %s to %s, %d trading days, %d funds\n",
		res.Start().Format(dateLayout), res.End().Format(dateLayout), len(res.Curve), len(res.Codes))
	fmt.Fprintf(w, "Final unit NAV: %s  Final value: %s\n",
		fixed(res.FinalUnitNAV(), 4), money(res.FinalValue()))
	fmt.Fprintf(w, "Trades: %d confirmed, %d unsettled, %d rejected, %d redemption breaches\n\n",
		len(res.Executions), len(res.Unsettled), len(res.Rejections), len(res.Breaches))

	if rep == nil {
		return nil
	}

	fmt.Fprintf(w, "Risk: annualized return %s  volatility %s  Sharpe %s\n\n",
		percent(rep.Risk.AnnualizedReturn*100), percent(rep.Risk.AnnualizedVolatility*100), fixed(rep.Risk.SharpeRatio, 2))

	rolling := tablewriter.NewWriter(w)
	rolling.Header("Window", "Start", "End", "Return", "Benchmark", "Max DD", "DD Days", "Max Run-up", "P&L")
	for _, wm := range rep.Rolling {
		if wm.Metrics == nil {
			rolling.Append(wm.Window.Name, "-", "-", "-", "-", "-", "-", "-", "-")
			continue
		}
		m := wm.Metrics
		rolling.Append(
			wm.Window.Name,
			m.Start.Format(dateLayout),
			m.End.Format(dateLayout),
			percent(m.Return),
			percent(m.BenchmarkReturn),
			percent(m.MaxDrawdown),
			strconv.Itoa(m.MaxDrawdownDays),
			percent(m.MaxRunUp),
			money(m.ProfitLoss),
		)
	}
	if err := rolling.Render(); err != nil {
		return err
	}

	if len(rep.Yearly) > 0 {
		fmt.Fprintln(w)
		yearly := tablewriter.NewWriter(w)
		yearly.Header("Year", "Return", "Benchmark", "Excess", "Volatility", "Max DD", "P&L")
		for _, y := range rep.Yearly {
			yearly.Append(
				strconv.Itoa(y.Year),
				percent(y.Return),
				percent(y.BenchmarkReturn),
				percent(y.ExcessReturn),
				percent(y.Volatility),
				percent(y.MaxDrawdown),
				money(y.ProfitLoss),
			)
		}
		if err := yearly.Render(); err != nil {
			return err
		}
	}

	if len(rep.Returns) > 0 {
		fmt.Fprintln(w)
		returns := tablewriter.NewWriter(w)
		returns.Header("Period", "Portfolio", "Benchmark", "Excess")
		for _, r := range rep.Returns {
			returns.Append(r.Label, percent(r.Portfolio), percent(r.Benchmark), percent(r.Excess))
		}
		if err := returns.Render(); err != nil {
			return err
		}
	}

	if len(rep.Contributions) > 0 {
		fmt.Fprintln(w)
		contrib := tablewriter.NewWriter(w)
		contrib.Header("Code", "Name", "Cost", "Value", "P&L", "Weight", "Share")
		for _, c := range rep.Contributions {
			contrib.Append(
				c.Code,
				c.Name,
				money(c.Cost),
				money(c.Value),
				money(c.ProfitLoss),
				percent(c.Weight*100),
				percent(c.Share*100),
			)
		}
		if err := contrib.Render(); err != nil {
			return err
		}
	}
	return nil
}

func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixedBank(places)
}

func percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixedBank(2) + "%"
}
