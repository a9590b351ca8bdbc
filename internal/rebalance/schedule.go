// Package rebalance converts target-weight schedules into fund orders.
package rebalance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/fund-backtester/internal/models"
)

// Schedule is a target-weight table keyed by rebalance date.
// Weights are not normalised; a missing fund on a date means weight zero.
type Schedule struct {
	dates   []time.Time
	weights map[time.Time]map[string]float64
}

// NewSchedule builds a schedule from weight rows. Later rows for the same
// (date, fund) pair replace earlier ones.
func NewSchedule(targets []models.WeightTarget) (*Schedule, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("weight schedule is empty")
	}

	s := &Schedule{weights: make(map[time.Time]map[string]float64)}
	for _, t := range targets {
		if t.Code == "" {
			return nil, fmt.Errorf("weight row on %s has no fund code", t.Date.Format("2006-01-02"))
		}
		if math.IsNaN(t.Weight) || t.Weight < 0 {
			return nil, fmt.Errorf("invalid weight %v for %s on %s", t.Weight, t.Code, t.Date.Format("2006-01-02"))
		}
		d := models.TruncateDate(t.Date)
		row, ok := s.weights[d]
		if !ok {
			row = make(map[string]float64)
			s.weights[d] = row
			s.dates = append(s.dates, d)
		}
		row[t.Code] = t.Weight
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s, nil
}

// Dates returns the rebalance dates in ascending order
func (s *Schedule) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Has reports whether date is a rebalance date
func (s *Schedule) Has(date time.Time) bool {
	_, ok := s.weights[models.TruncateDate(date)]
	return ok
}

// Weights returns a copy of the targets for date, nil when date is not scheduled
func (s *Schedule) Weights(date time.Time) map[string]float64 {
	row, ok := s.weights[models.TruncateDate(date)]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// First returns the earliest rebalance date
func (s *Schedule) First() time.Time {
	return s.dates[0]
}

// Last returns the latest rebalance date
func (s *Schedule) Last() time.Time {
	return s.dates[len(s.dates)-1]
}

// Codes returns every fund that appears in the schedule, sorted
func (s *Schedule) Codes() []string {
	seen := make(map[string]struct{})
	for _, row := range s.weights {
		for code := range row {
			seen[code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
