package performance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// Contribution is one fund's share of the portfolio on a date
type Contribution struct {
	Code       string  `json:"code"`
	Name       string  `json:"name,omitempty"`
	Cost       float64 `json:"cost"`
	Value      float64 `json:"value"`
	ProfitLoss float64 `json:"profit_loss"`
	// Weight is value over total value
	Weight float64 `json:"weight"`
	// Share is profit/loss over total profit/loss. It can exceed one or be
	// negative when funds move against the book.
	Share float64 `json:"share"`
}

// Contributions breaks the portfolio down by fund on date, sorted by share
// descending. Undefined shares sort last.
func (e *Evaluator) Contributions(date time.Time) ([]Contribution, error) {
	date = models.TruncateDate(date)
	if _, ok := e.result.Values.RowIndex(date); !ok {
		return nil, &models.DataUnavailableError{
			Source: "history",
			What:   fmt.Sprintf("no simulated state on %s", date.Format(dateLayout)),
		}
	}

	values := e.result.Values.Row(date)
	costs := e.result.Costs.Row(date)

	out := make([]Contribution, 0, len(e.result.Codes))
	totalValue, totalPL := 0.0, 0.0
	for _, code := range e.result.Codes {
		c := Contribution{
			Code:  code,
			Cost:  costs[code],
			Value: values[code],
		}
		if inst, ok := e.result.Instrument(code); ok {
			c.Name = inst.Name
		}
		c.ProfitLoss = c.Value - c.Cost
		totalValue += c.Value
		totalPL += c.ProfitLoss
		out = append(out, c)
	}

	for i := range out {
		out[i].Weight = ratio(out[i].Value, totalValue)
		out[i].Share = ratio(out[i].ProfitLoss, totalPL)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Share, out[j].Share
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return out, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
