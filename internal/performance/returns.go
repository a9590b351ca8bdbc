package performance

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Frequency is a resampling period
type Frequency string

const (
	// Weekly periods end on Sunday
	Weekly Frequency = "W"
	// Monthly periods end on the last day of the month
	Monthly Frequency = "ME"
	// Quarterly periods end on the last day of March, June, September and December
	Quarterly Frequency = "QE"
)

// ParseFrequency accepts W, ME and QE and their long names
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "W", "WEEKLY":
		return Weekly, nil
	case "", "M", "ME", "MONTHLY":
		return Monthly, nil
	case "Q", "QE", "QUARTERLY":
		return Quarterly, nil
	default:
		return "", fmt.Errorf("unknown return frequency %q", s)
	}
}

// PeriodEnd returns the last calendar day of the period containing t
func (f Frequency) PeriodEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	switch f {
	case Weekly:
		offset := (7 - int(t.Weekday())) % 7
		return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC)
	case Quarterly:
		qm := ((m-1)/3+1)*3 + 1
		return time.Date(y, qm, 0, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
	}
}

// Label formats a period end for display
func (f Frequency) Label(end time.Time) string {
	switch f {
	case Weekly:
		return end.Format(dateLayout)
	case Quarterly:
		return fmt.Sprintf("%d-Q%d", end.Year(), (int(end.Month())-1)/3+1)
	default:
		return end.Format("2006-01")
	}
}

// PeriodReturn is one resampled period, in percent rounded to two decimals
type PeriodReturn struct {
	PeriodEnd time.Time `json:"period_end"`
	Label     string    `json:"label"`
	Portfolio float64   `json:"portfolio"`
	Benchmark float64   `json:"benchmark"`
	Excess    float64   `json:"excess"`
}

// Returns resamples the unit NAV and benchmark up to asOf to period-end
// values and returns each period's change. The first period is measured
// against the first value of the series rather than a prior period end.
// Periods without any simulated date are omitted.
func (e *Evaluator) Returns(freq Frequency, asOf time.Time) ([]PeriodReturn, error) {
	switch freq {
	case Weekly, Monthly, Quarterly:
	default:
		return nil, fmt.Errorf("unknown return frequency %q", freq)
	}
	hi := e.upTo(asOf)
	if hi < 0 {
		return nil, nil
	}

	type bucket struct {
		end       time.Time
		nav       float64
		benchmark float64
	}
	var buckets []bucket
	for i := 0; i <= hi; i++ {
		end := freq.PeriodEnd(e.dates[i])
		if len(buckets) == 0 || !buckets[len(buckets)-1].end.Equal(end) {
			buckets = append(buckets, bucket{end: end, benchmark: math.NaN()})
		}
		b := &buckets[len(buckets)-1]
		b.nav = e.unitNAV[i]
		if !math.IsNaN(e.benchmark[i]) {
			b.benchmark = e.benchmark[i]
		}
	}

	prevNAV := e.unitNAV[0]
	prevBench := firstObserved(e.benchmark[:hi+1])
	out := make([]PeriodReturn, 0, len(buckets))
	for _, b := range buckets {
		port := pctChange(prevNAV, b.nav)
		bench := pctChange(prevBench, b.benchmark)
		out = append(out, PeriodReturn{
			PeriodEnd: b.end,
			Label:     freq.Label(b.end),
			Portfolio: round2(port),
			Benchmark: round2(bench),
			Excess:    round2(port - bench),
		})
		prevNAV = b.nav
		if !math.IsNaN(b.benchmark) {
			prevBench = b.benchmark
		}
	}
	return out, nil
}

func pctChange(from, to float64) float64 {
	if math.IsNaN(from) || math.IsNaN(to) || from == 0 {
		return math.NaN()
	}
	return (to/from - 1) * 100
}

func firstObserved(values []float64) float64 {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v
		}
	}
	return math.NaN()
}
