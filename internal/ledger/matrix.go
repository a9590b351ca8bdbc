package ledger

import (
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// Matrix is a dense date × fund table. Rows follow the trading calendar,
// columns follow the fund universe of the run.
type Matrix struct {
	Dates  []time.Time `json:"dates"`
	Codes  []string    `json:"codes"`
	Values [][]float64 `json:"values"`

	rows map[time.Time]int
	cols map[string]int
}

func newMatrix(dates []time.Time, codes []string) *Matrix {
	m := &Matrix{
		Dates:  dates,
		Codes:  codes,
		Values: make([][]float64, len(dates)),
		rows:   make(map[time.Time]int, len(dates)),
		cols:   make(map[string]int, len(codes)),
	}
	for i, d := range dates {
		m.Values[i] = make([]float64, len(codes))
		m.rows[d] = i
	}
	for j, c := range codes {
		m.cols[c] = j
	}
	return m
}

// RowIndex returns the row of date
func (m *Matrix) RowIndex(date time.Time) (int, bool) {
	i, ok := m.rows[models.TruncateDate(date)]
	return i, ok
}

// At returns the cell for (date, code); unknown keys read as zero
func (m *Matrix) At(date time.Time, code string) float64 {
	i, ok := m.RowIndex(date)
	if !ok {
		return 0
	}
	j, ok := m.cols[code]
	if !ok {
		return 0
	}
	return m.Values[i][j]
}

// Row returns the values recorded for date keyed by fund code
func (m *Matrix) Row(date time.Time) map[string]float64 {
	out := make(map[string]float64, len(m.Codes))
	i, ok := m.RowIndex(date)
	if !ok {
		return out
	}
	for j, code := range m.Codes {
		out[code] = m.Values[i][j]
	}
	return out
}

// RowSum returns the total across funds for date
func (m *Matrix) RowSum(date time.Time) float64 {
	i, ok := m.RowIndex(date)
	if !ok {
		return 0
	}
	total := 0.0
	for _, v := range m.Values[i] {
		total += v
	}
	return total
}

// Column returns one fund's values in calendar order
func (m *Matrix) Column(code string) []float64 {
	j, ok := m.cols[code]
	if !ok {
		return nil
	}
	out := make([]float64, len(m.Dates))
	for i := range m.Dates {
		out[i] = m.Values[i][j]
	}
	return out
}
