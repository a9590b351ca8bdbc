package nav

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// CalendarSource supplies trading dates for a range.
type CalendarSource interface {
	TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error)
}

// Calendar is a strictly increasing sequence of trading dates.
type Calendar struct {
	dates []time.Time
	index map[time.Time]int
}

// NewCalendar validates and indexes dates
func NewCalendar(dates []time.Time) (*Calendar, error) {
	if len(dates) == 0 {
		return nil, &models.DataUnavailableError{Source: "calendar", What: "no trading dates"}
	}
	c := &Calendar{
		dates: make([]time.Time, len(dates)),
		index: make(map[time.Time]int, len(dates)),
	}
	for i, d := range dates {
		d = models.TruncateDate(d)
		if i > 0 && !d.After(c.dates[i-1]) {
			return nil, fmt.Errorf("trading dates must be strictly increasing: %s follows %s",
				d.Format("2006-01-02"), c.dates[i-1].Format("2006-01-02"))
		}
		c.dates[i] = d
		c.index[d] = i
	}
	return c, nil
}

// TradingDates fetches [begin, end] from src and builds a Calendar
func TradingDates(ctx context.Context, src CalendarSource, begin, end time.Time) (*Calendar, error) {
	dates, err := src.TradingDates(ctx, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, &models.DataUnavailableError{
			Source: "calendar",
			What:   fmt.Sprintf("no trading dates between %s and %s", begin.Format("2006-01-02"), end.Format("2006-01-02")),
		}
	}
	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return NewCalendar(sorted)
}

// Dates returns the trading dates. Callers must not modify the slice.
func (c *Calendar) Dates() []time.Time {
	return c.dates
}

// Len returns the number of trading dates
func (c *Calendar) Len() int {
	return len(c.dates)
}

// At returns the i-th trading date
func (c *Calendar) At(i int) time.Time {
	return c.dates[i]
}

// Start returns the first trading date
func (c *Calendar) Start() time.Time {
	return c.dates[0]
}

// End returns the last trading date
func (c *Calendar) End() time.Time {
	return c.dates[len(c.dates)-1]
}

// Index returns the position of date in the calendar
func (c *Calendar) Index(date time.Time) (int, bool) {
	i, ok := c.index[models.TruncateDate(date)]
	return i, ok
}

// Contains reports whether date is a trading date
func (c *Calendar) Contains(date time.Time) bool {
	_, ok := c.Index(date)
	return ok
}

// Next returns the trading date n sessions after date.
// It fails when date is not a trading date or the calendar ends first.
func (c *Calendar) Next(date time.Time, n int) (time.Time, bool) {
	i, ok := c.Index(date)
	if !ok || i+n >= len(c.dates) || i+n < 0 {
		return time.Time{}, false
	}
	return c.dates[i+n], true
}

// Between returns the trading dates d with begin <= d <= end
func (c *Calendar) Between(begin, end time.Time) []time.Time {
	begin, end = models.TruncateDate(begin), models.TruncateDate(end)
	lo := sort.Search(len(c.dates), func(i int) bool { return !c.dates[i].Before(begin) })
	hi := sort.Search(len(c.dates), func(i int) bool { return c.dates[i].After(end) })
	if lo >= hi {
		return nil
	}
	return c.dates[lo:hi]
}

// Distance returns the number of trading sessions from a to b
func (c *Calendar) Distance(a, b time.Time) int {
	i, _ := c.Index(a)
	j, _ := c.Index(b)
	return j - i
}
