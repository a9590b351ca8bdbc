// Package nav holds trading calendars and per-fund NAV series with as-of lookups.
package nav

import (
	"time"

	"github.com/google/btree"
	"github.com/yourusername/fund-backtester/internal/models"
)

type point struct {
	date  time.Time
	value float64
}

func lessPoint(a, b point) bool {
	return a.date.Before(b.date)
}

// Series is a sparse, date-ordered NAV series.
type Series struct {
	tree *btree.BTreeG[point]
}

// NewSeries creates an empty series
func NewSeries() *Series {
	return &Series{tree: btree.NewG(16, lessPoint)}
}

// SeriesFromPoints builds a series; later duplicates of a date win
func SeriesFromPoints(points []models.NAVPoint) *Series {
	s := NewSeries()
	for _, p := range points {
		s.Set(p.Date, p.Value)
	}
	return s
}

// Set stores value at date, replacing any existing observation
func (s *Series) Set(date time.Time, value float64) {
	s.tree.ReplaceOrInsert(point{date: models.TruncateDate(date), value: value})
}

// At returns the exact observation on date
func (s *Series) At(date time.Time) (float64, bool) {
	p, ok := s.tree.Get(point{date: models.TruncateDate(date)})
	return p.value, ok
}

// AsOf returns the latest observation on or before date. It never looks forward.
func (s *Series) AsOf(date time.Time) (float64, time.Time, bool) {
	var (
		found point
		ok    bool
	)
	s.tree.DescendLessOrEqual(point{date: models.TruncateDate(date)}, func(p point) bool {
		found, ok = p, true
		return false
	})
	return found.value, found.date, ok
}

// Len returns the number of observations
func (s *Series) Len() int {
	return s.tree.Len()
}

// First returns the earliest observation
func (s *Series) First() (time.Time, float64, bool) {
	p, ok := s.tree.Min()
	return p.date, p.value, ok
}

// Last returns the latest observation
func (s *Series) Last() (time.Time, float64, bool) {
	p, ok := s.tree.Max()
	return p.date, p.value, ok
}

// Each visits observations in date order until fn returns false
func (s *Series) Each(fn func(date time.Time, value float64) bool) {
	s.tree.Ascend(func(p point) bool {
		return fn(p.date, p.value)
	})
}

// Clone returns an independent copy; writes to either side do not leak.
func (s *Series) Clone() *Series {
	return &Series{tree: s.tree.Clone()}
}

// Normalize rebases the series so its first observation equals 1.0
func (s *Series) Normalize() *Series {
	out := NewSeries()
	_, base, ok := s.First()
	if !ok || base == 0 {
		return out
	}
	s.Each(func(date time.Time, value float64) bool {
		out.Set(date, value/base)
		return true
	})
	return out
}
