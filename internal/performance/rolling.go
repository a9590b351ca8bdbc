package performance

import (
	"context"
	"math"
	"time"

	"github.com/yourusername/fund-backtester/internal/config"
	"golang.org/x/sync/errgroup"
)

// Window is a trailing look-back period. The zero offset means since inception.
type Window struct {
	Name   string `json:"name"`
	Years  int    `json:"years"`
	Months int    `json:"months"`
	Days   int    `json:"days"`
}

// SinceInception reports whether the window covers the whole history
func (w Window) SinceInception() bool {
	return w.Years == 0 && w.Months == 0 && w.Days == 0
}

// From returns the first date of the window ending at asOf
func (w Window) From(asOf time.Time) time.Time {
	if w.SinceInception() {
		return time.Time{}
	}
	return shiftMonths(asOf, -(w.Years*12+w.Months)).AddDate(0, 0, -w.Days)
}

// ParseWindow builds a window from a look-back spec such as "3M" or "1Y"
func ParseWindow(spec string) (Window, error) {
	if spec == "inception" {
		return Window{Name: spec}, nil
	}
	years, months, days, err := config.ParseLookback(spec)
	if err != nil {
		return Window{}, err
	}
	return Window{Name: spec, Years: years, Months: months, Days: days}, nil
}

// DefaultWindows are the trailing 1, 3 and 6 months, 1 year and since inception
func DefaultWindows() []Window {
	return []Window{
		{Name: "1M", Months: 1},
		{Name: "3M", Months: 3},
		{Name: "6M", Months: 6},
		{Name: "1Y", Years: 1},
		{Name: "inception"},
	}
}

// WindowMetrics pairs a window with its metrics. Metrics is nil when the
// window holds fewer than two dates.
type WindowMetrics struct {
	Window  Window         `json:"window"`
	Metrics *PeriodMetrics `json:"metrics"`
}

// YearlyMetrics is the period metrics of one calendar year
type YearlyMetrics struct {
	Year int `json:"year"`
	PeriodMetrics
	// Volatility is the standard deviation of daily returns scaled by the
	// square root of the year's observation count, in percent
	Volatility   float64 `json:"volatility"`
	ExcessReturn float64 `json:"excess_return"`
}

// Rolling computes each window ending at asOf. Windows are independent and
// run concurrently.
func (e *Evaluator) Rolling(ctx context.Context, asOf time.Time, windows []Window) ([]WindowMetrics, error) {
	if len(windows) == 0 {
		windows = DefaultWindows()
	}
	hi := e.upTo(asOf)
	out := make([]WindowMetrics, len(windows))

	g, ctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = WindowMetrics{Window: w}
			if hi < 0 {
				return nil
			}
			from := w.From(asOf)
			lo := hi
			for lo > 0 && !e.dates[lo-1].Before(from) {
				lo--
			}
			out[i].Metrics = e.period(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Yearly computes one entry per calendar year from startYear, or from the
// first simulated year when startYear is zero. Years with fewer than two
// dates are omitted.
func (e *Evaluator) Yearly(ctx context.Context, startYear int) ([]YearlyMetrics, error) {
	first, last := e.dates[0].Year(), e.dates[len(e.dates)-1].Year()
	if startYear == 0 {
		startYear = first
	}
	if startYear > last {
		return nil, nil
	}

	years := make([]*YearlyMetrics, last-startYear+1)
	g, ctx := errgroup.WithContext(ctx)
	for i := range years {
		i := i
		year := startYear + i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			years[i] = e.year(year)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []YearlyMetrics
	for _, y := range years {
		if y != nil {
			out = append(out, *y)
		}
	}
	return out, nil
}

func (e *Evaluator) year(year int) *YearlyMetrics {
	lo, hi := -1, -1
	for i, d := range e.dates {
		if d.Year() != year {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return nil
	}
	pm := e.period(lo, hi)
	if pm == nil {
		return nil
	}

	returns := dailyReturns(e.unitNAV[lo : hi+1])
	vol := math.NaN()
	if len(returns) >= 2 {
		vol = sampleStdDev(returns) * math.Sqrt(float64(hi-lo+1)) * 100
	}
	return &YearlyMetrics{
		Year:          year,
		PeriodMetrics: *pm,
		Volatility:    round2(vol),
		ExcessReturn:  round2(pm.Return - pm.BenchmarkReturn),
	}
}

// shiftMonths moves t by n calendar months, clamping to the last day of the
// target month so that 31 March minus one month is 29 February.
func shiftMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
