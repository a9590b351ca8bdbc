package rebalance

import (
	"fmt"
	"strings"
)

// Timing is the redemption timing policy of a rebalance event.
type Timing int

const (
	// NextDay redeems on T, switches on T+1 and confirms subscriptions on T+2.
	NextDay Timing = iota
	// SameDay redeems and subscribes on the rebalance date itself.
	SameDay
)

func (t Timing) String() string {
	if t == SameDay {
		return "same-day"
	}
	return "next-day"
}

// ParseTiming accepts "next-day"/"yesterday" and "same-day"/"today"
func ParseTiming(s string) (Timing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "next-day", "next_day", "nextday", "yesterday":
		return NextDay, nil
	case "same-day", "same_day", "sameday", "today":
		return SameDay, nil
	default:
		return NextDay, fmt.Errorf("unknown redemption timing %q", s)
	}
}
