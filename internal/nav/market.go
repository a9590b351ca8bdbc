package nav

import (
	"fmt"

	"github.com/yourusername/fund-backtester/internal/models"
)

// Market is the pre-fetched data a backtest run reads from.
type Market struct {
	Calendar    *Calendar
	Funds       *Book
	Benchmark   *Series
	Instruments []models.Instrument
}

// NewMarket assembles a Market and normalises the benchmark to start at 1.0
func NewMarket(cal *Calendar, funds *Book, benchmark *Series, instruments []models.Instrument) (*Market, error) {
	if cal == nil {
		return nil, &models.DataUnavailableError{Source: "market", What: "calendar is required"}
	}
	if funds == nil {
		return nil, &models.DataUnavailableError{Source: "market", What: "fund NAV book is required"}
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("at least one instrument is required")
	}
	norm := NewSeries()
	if benchmark != nil {
		norm = benchmark.Normalize()
	}
	return &Market{
		Calendar:    cal,
		Funds:       funds,
		Benchmark:   norm,
		Instruments: instruments,
	}, nil
}

// Codes returns the fund codes in instrument order
func (m *Market) Codes() []string {
	codes := make([]string, len(m.Instruments))
	for i, inst := range m.Instruments {
		codes[i] = inst.Code
	}
	return codes
}

// Instrument looks up an instrument by code
func (m *Market) Instrument(code string) (models.Instrument, bool) {
	for _, inst := range m.Instruments {
		if inst.Code == code {
			return inst, true
		}
	}
	return models.Instrument{}, false
}
