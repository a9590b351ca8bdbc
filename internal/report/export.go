package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yourusername/fund-backtester/internal/backtest"
	"github.com/yourusername/fund-backtester/internal/ledger"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/performance"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Files written by Export
const (
	TradesFile        = "trades.csv"
	RejectionsFile    = "rejections.csv"
	HoldingValueFile  = "holding_values.csv"
	HoldingUnitsFile  = "holding_units.csv"
	HoldingCostsFile  = "holding_costs.csv"
	PortfolioFile     = "portfolio.csv"
	MetricsFile       = "metrics.csv"
	ReturnsFile       = "returns.csv"
	ContributionsFile = "contributions.csv"
	JSONFile          = "report.json"
)

// Document is the JSON export of one run. NaN values are written as null.
type Document struct {
	RunID      string               `json:"run_id"`
	Mode       string               `json:"mode"`
	Start      time.Time            `json:"start"`
	End        time.Time            `json:"end"`
	Funds      []models.Instrument  `json:"funds"`
	Summary    Summary              `json:"summary"`
	Curve      backtest.EquityCurve `json:"curve"`
	Executions []models.Execution   `json:"executions"`
	Unsettled  []models.Execution   `json:"unsettled"`
	Rejections []rejectionRecord    `json:"rejections"`
	Report     *performance.Report  `json:"report,omitempty"`
}

// Summary holds the headline numbers of a run
type Summary struct {
	FinalUnitNAV        float64 `json:"final_unit_nav"`
	FinalValue          float64 `json:"final_value"`
	Trades              int     `json:"trades"`
	Unsettled           int     `json:"unsettled"`
	Rejected            int     `json:"rejected"`
	Breaches            int     `json:"breaches"`
	MoneyMarketAdjusted int     `json:"money_market_adjusted"`
	DurationSeconds     float64 `json:"duration_seconds"`
}

type rejectionRecord struct {
	Code      string    `json:"code"`
	Type      string    `json:"type"`
	TradeDate time.Time `json:"trade_date"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

// NewSummary extracts the headline numbers of res
func NewSummary(res *backtest.Result) Summary {
	return Summary{
		FinalUnitNAV:        res.FinalUnitNAV(),
		FinalValue:          res.FinalValue(),
		Trades:              len(res.Executions),
		Unsettled:           len(res.Unsettled),
		Rejected:            len(res.Rejections),
		Breaches:            len(res.Breaches),
		MoneyMarketAdjusted: res.MoneyMarketAdjusted,
		DurationSeconds:     res.Duration.Seconds(),
	}
}

// NewDocument assembles the JSON export of a run
func NewDocument(res *backtest.Result, rep *performance.Report) *Document {
	doc := &Document{
		RunID:      res.RunID.String(),
		Mode:       string(res.Mode),
		Start:      res.Start(),
		End:        res.End(),
		Funds:      res.Instruments,
		Summary:    NewSummary(res),
		Curve:      res.Curve,
		Executions: res.Executions,
		Unsettled:  res.Unsettled,
		Report:     rep,
	}
	for _, r := range res.Rejections {
		doc.Rejections = append(doc.Rejections, rejectionRecord{
			Code:      r.Order.Code,
			Type:      r.Order.Type.String(),
			TradeDate: r.Order.TradeDate,
			Date:      r.Date,
			Reason:    r.Reason,
		})
	}
	return doc
}

// MarshalJSON encodes v with NaN and infinite floats as null
func MarshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(sanitize(v), "", "  ")
}

// Export writes the run to dir in each of formats and returns the paths written
func Export(dir string, res *backtest.Result, rep *performance.Report, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, format := range formats {
		switch format {
		case FormatCSV:
			paths, err := exportCSV(dir, res, rep)
			if err != nil {
				return written, err
			}
			written = append(written, paths...)
		case FormatJSON:
			data, err := MarshalJSON(NewDocument(res, rep))
			if err != nil {
				return written, fmt.Errorf("failed to encode report: %w", err)
			}
			path := filepath.Join(dir, JSONFile)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", JSONFile, err)
			}
			written = append(written, path)
		default:
			return written, fmt.Errorf("unknown report format %q", format)
		}
	}
	return written, nil
}

type csvTable struct {
	name string
	rows [][]string
}

func exportCSV(dir string, res *backtest.Result, rep *performance.Report) ([]string, error) {
	tables := []csvTable{
		{TradesFile, tradeRows(res)},
		{RejectionsFile, rejectionRows(res)},
		{HoldingValueFile, matrixRows(res.Values)},
		{HoldingUnitsFile, matrixRows(res.Units)},
		{HoldingCostsFile, matrixRows(res.Costs)},
		{PortfolioFile, portfolioRows(res)},
	}
	if rep != nil {
		tables = append(tables,
			csvTable{MetricsFile, metricRows(rep)},
			csvTable{ReturnsFile, returnRows(rep)},
			csvTable{ContributionsFile, contributionRows(rep)},
		)
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		if err := writeCSV(path, t.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func tradeRows(res *backtest.Result) [][]string {
	rows := [][]string{{"order_id", "code", "type", "trade_date", "confirm_date", "amount", "units", "nav", "portfolio_units", "status"}}
	add := func(e models.Execution) {
		rows = append(rows, []string{
			e.OrderID.String(),
			e.Code,
			e.Type.String(),
			e.TradeDate.Format(dateLayout),
			e.ConfirmDate.Format(dateLayout),
			num(e.Amount, 2),
			num(e.Units, 4),
			num(e.NAV, 6),
			num(e.PortfolioUnits, 4),
			string(e.Status),
		})
	}
	for _, e := range res.Executions {
		add(e)
	}
	for _, e := range res.Unsettled {
		add(e)
	}
	return rows
}

func rejectionRows(res *backtest.Result) [][]string {
	rows := [][]string{{"order_id", "code", "type", "trade_date", "confirm_date", "amount", "units", "rejected_on", "reason"}}
	for _, r := range res.Rejections {
		rows = append(rows, []string{
			r.Order.ID.String(),
			r.Order.Code,
			r.Order.Type.String(),
			r.Order.TradeDate.Format(dateLayout),
			r.Order.ConfirmDate.Format(dateLayout),
			num(r.Order.Amount, 2),
			num(r.Order.Units, 4),
			r.Date.Format(dateLayout),
			r.Reason,
		})
	}
	return rows
}

func matrixRows(m *ledger.Matrix) [][]string {
	header := append([]string{"date"}, m.Codes...)
	rows := [][]string{header}
	for i, d := range m.Dates {
		row := make([]string, 0, len(m.Codes)+1)
		row = append(row, d.Format(dateLayout))
		for _, v := range m.Values[i] {
			row = append(row, num(v, 6))
		}
		rows = append(rows, row)
	}
	return rows
}

func portfolioRows(res *backtest.Result) [][]string {
	rows := [][]string{{"date", "unit_nav", "benchmark", "value", "cost"}}
	for _, p := range res.Curve {
		rows = append(rows, []string{
			p.Date.Format(dateLayout),
			num(p.UnitNAV, 6),
			num(p.Benchmark, 6),
			num(p.Value, 2),
			num(p.Cost, 2),
		})
	}
	return rows
}

func metricRows(rep *performance.Report) [][]string {
	rows := [][]string{{"period", "start", "end", "return", "benchmark_return", "excess_return", "volatility",
		"max_run_up", "max_run_up_days", "max_drawdown", "max_drawdown_days", "max_drawdown_start", "max_drawdown_end", "profit_loss"}}
	for _, wm := range rep.Rolling {
		if wm.Metrics == nil {
			continue
		}
		rows = append(rows, periodRow(wm.Window.Name, wm.Metrics, math.NaN(), math.NaN()))
	}
	for _, y := range rep.Yearly {
		pm := y.PeriodMetrics
		rows = append(rows, periodRow(strconv.Itoa(y.Year), &pm, y.ExcessReturn, y.Volatility))
	}
	return rows
}

func periodRow(name string, m *performance.PeriodMetrics, excess, vol float64) []string {
	return []string{
		name,
		m.Start.Format(dateLayout),
		m.End.Format(dateLayout),
		num(m.Return, 2),
		num(m.BenchmarkReturn, 2),
		num(excess, 2),
		num(vol, 2),
		num(m.MaxRunUp, 2),
		strconv.Itoa(m.MaxRunUpDays),
		num(m.MaxDrawdown, 2),
		strconv.Itoa(m.MaxDrawdownDays),
		m.MaxDrawdownStart.Format(dateLayout),
		m.MaxDrawdownEnd.Format(dateLayout),
		num(m.ProfitLoss, 2),
	}
}

func returnRows(rep *performance.Report) [][]string {
	rows := [][]string{{"period", "period_end", "portfolio", "benchmark", "excess"}}
	for _, r := range rep.Returns {
		rows = append(rows, []string{
			r.Label,
			r.PeriodEnd.Format(dateLayout),
			num(r.Portfolio, 2),
			num(r.Benchmark, 2),
			num(r.Excess, 2),
		})
	}
	return rows
}

func contributionRows(rep *performance.Report) [][]string {
	rows := [][]string{{"code", "name", "cost", "value", "profit_loss", "weight", "share"}}
	for _, c := range rep.Contributions {
		rows = append(rows, []string{
			c.Code,
			c.Name,
			num(c.Cost, 2),
			num(c.Value, 2),
			num(c.ProfitLoss, 2),
			num(c.Weight, 6),
			num(c.Share, 6),
		})
	}
	return rows
}

// num formats v with fixed precision; NaN is a blank cell
func num(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
