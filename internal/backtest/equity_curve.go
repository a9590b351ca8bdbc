package backtest

import (
	"bytes"
	"math"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// EquityPoint is one simulated day of the portfolio history
type EquityPoint struct {
	Date      time.Time `json:"date"`
	UnitNAV   float64   `json:"unit_nav"`
	Value     float64   `json:"value"`
	Cost      float64   `json:"cost"`
	Benchmark float64   `json:"benchmark"` // NaN before the benchmark has data
}

// EquityCurve represents the daily unit-NAV history of a run
type EquityCurve []EquityPoint

// Dates returns the curve dates
func (e EquityCurve) Dates() []time.Time {
	out := make([]time.Time, len(e))
	for i, p := range e {
		out[i] = p.Date
	}
	return out
}

// UnitNAVs returns the unit NAV column
func (e EquityCurve) UnitNAVs() []float64 {
	out := make([]float64, len(e))
	for i, p := range e {
		out[i] = p.UnitNAV
	}
	return out
}

// Benchmarks returns the normalised benchmark column
func (e EquityCurve) Benchmarks() []float64 {
	out := make([]float64, len(e))
	for i, p := range e {
		out[i] = p.Benchmark
	}
	return out
}

// GetReturns calculates daily unit-NAV returns
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].UnitNAV
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, e[i].UnitNAV/prev-1)
	}
	return returns
}

// ToCSV exports the curve to a CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("date,unit_nav,value,cost,benchmark\n")
	for _, point := range e {
		buf.WriteString(point.Date.Format(dateLayout))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.UnitNAV))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Value))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Cost))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Benchmark))
		buf.WriteString("\n")
	}
	return buf.String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
