package nav

import (
	"sort"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// Book holds one NAV series per fund code.
type Book struct {
	series map[string]*Series
}

// NewBook creates an empty book
func NewBook() *Book {
	return &Book{series: make(map[string]*Series)}
}

// BookFromPoints groups observations by fund code
func BookFromPoints(points []models.NAVPoint) *Book {
	b := NewBook()
	for _, p := range points {
		b.Set(p.Code, p.Date, p.Value)
	}
	return b
}

// Series returns the series for code, creating it if missing
func (b *Book) Series(code string) *Series {
	s, ok := b.series[code]
	if !ok {
		s = NewSeries()
		b.series[code] = s
	}
	return s
}

// Codes returns the fund codes in sorted order
func (b *Book) Codes() []string {
	codes := make([]string, 0, len(b.series))
	for code := range b.series {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Set stores a NAV observation
func (b *Book) Set(code string, date time.Time, value float64) {
	b.Series(code).Set(date, value)
}

// At returns the exact NAV of code on date
func (b *Book) At(code string, date time.Time) (float64, bool) {
	s, ok := b.series[code]
	if !ok {
		return 0, false
	}
	return s.At(date)
}

// AsOf returns the latest NAV of code on or before date without mutating the book
func (b *Book) AsOf(code string, date time.Time) (float64, bool) {
	s, ok := b.series[code]
	if !ok {
		return 0, false
	}
	v, _, ok := s.AsOf(date)
	return v, ok
}

// Ensure returns the NAV of code on date. A missing date is filled from the
// latest earlier observation and written back so later exact lookups hit.
// It returns false when the fund has no history at or before date.
func (b *Book) Ensure(code string, date time.Time) (float64, bool) {
	s, ok := b.series[code]
	if !ok {
		return 0, false
	}
	if v, ok := s.At(date); ok {
		return v, true
	}
	v, _, ok := s.AsOf(date)
	if !ok {
		return 0, false
	}
	s.Set(date, v)
	return v, true
}

// Clone copies every series so the copy can be patched independently
func (b *Book) Clone() *Book {
	out := &Book{series: make(map[string]*Series, len(b.series))}
	for code, s := range b.series {
		out.series[code] = s.Clone()
	}
	return out
}
