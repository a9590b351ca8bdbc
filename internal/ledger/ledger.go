// Package ledger tracks per-fund units and cost for a backtest run.
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// PriceFunc returns the valuation price of a fund on a date.
type PriceFunc func(code string, date time.Time) (float64, bool)

// Ledger holds the working position state and the historical matrices.
// It has a single writer: the engine that owns it.
type Ledger struct {
	codes     []string
	cols      map[string]int
	units     []float64
	costs     []float64
	tolerance float64

	Units  *Matrix
	Values *Matrix
	Costs  *Matrix
}

// New creates a ledger over dates × codes with all positions at zero.
// tolerance bounds how far a delta may push units below zero.
func New(dates []time.Time, codes []string, tolerance float64) *Ledger {
	l := &Ledger{
		codes:     codes,
		cols:      make(map[string]int, len(codes)),
		units:     make([]float64, len(codes)),
		costs:     make([]float64, len(codes)),
		tolerance: tolerance,
		Units:     newMatrix(dates, codes),
		Values:    newMatrix(dates, codes),
		Costs:     newMatrix(dates, codes),
	}
	for j, c := range codes {
		l.cols[c] = j
	}
	return l
}

// Codes returns the fund universe
func (l *Ledger) Codes() []string {
	return l.codes
}

func (l *Ledger) column(code string) (int, error) {
	j, ok := l.cols[code]
	if !ok {
		return 0, fmt.Errorf("fund %s is not part of the ledger universe", code)
	}
	return j, nil
}

// CurrentUnits returns the working units of code
func (l *Ledger) CurrentUnits(code string) float64 {
	j, ok := l.cols[code]
	if !ok {
		return 0
	}
	return l.units[j]
}

// CurrentCost returns the working cost of code
func (l *Ledger) CurrentCost(code string) float64 {
	j, ok := l.cols[code]
	if !ok {
		return 0
	}
	return l.costs[j]
}

// UnitsOn returns the recorded units of code at date
func (l *Ledger) UnitsOn(code string, date time.Time) float64 {
	return l.Units.At(date, code)
}

// CostOn returns the recorded cost of code at date
func (l *Ledger) CostOn(code string, date time.Time) float64 {
	return l.Costs.At(date, code)
}

// ApplyDelta adjusts the working units and cost of code
func (l *Ledger) ApplyDelta(code string, unitsDelta, costDelta float64) error {
	j, err := l.column(code)
	if err != nil {
		return err
	}
	next := l.units[j] + unitsDelta
	if next < -l.tolerance {
		return &models.InsufficientHoldingsError{
			Code:      code,
			Held:      l.units[j],
			Delta:     unitsDelta,
			Tolerance: l.tolerance,
		}
	}
	l.units[j] = next
	l.costs[j] += costDelta
	return nil
}

// SetUnits overwrites the working units of code during reconciliation
func (l *Ledger) SetUnits(code string, units float64) error {
	j, err := l.column(code)
	if err != nil {
		return err
	}
	l.units[j] = units
	return nil
}

// ClampDust zeroes working positions whose magnitude is below eps
func (l *Ledger) ClampDust(eps float64) {
	for j, u := range l.units {
		if math.Abs(u) < eps {
			l.units[j] = 0
		}
	}
}

// MarketValue prices the working units as of date
func (l *Ledger) MarketValue(date time.Time, price PriceFunc) float64 {
	total := 0.0
	for j, code := range l.codes {
		if l.units[j] == 0 {
			continue
		}
		if p, ok := price(code, date); ok {
			total += l.units[j] * p
		}
	}
	return total
}

// Snapshot writes the working state into the matrices at date. Repeating
// it for the same date overwrites the row.
func (l *Ledger) Snapshot(date time.Time, price PriceFunc) error {
	i, ok := l.Units.RowIndex(date)
	if !ok {
		return fmt.Errorf("snapshot date %s is outside the ledger calendar", date.Format("2006-01-02"))
	}
	for j, code := range l.codes {
		u := l.units[j]
		l.Units.Values[i][j] = u
		l.Costs.Values[i][j] = l.costs[j]
		value := 0.0
		if p, ok := price(code, date); ok {
			value = u * p
		}
		l.Values.Values[i][j] = value
	}
	return nil
}
