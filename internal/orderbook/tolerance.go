// Package orderbook validates pending fund orders and queues them for settlement.
package orderbook

import "fmt"

// Adjustment describes how a redemption was reconciled with holdings.
type Adjustment int

const (
	// AdjustmentNone leaves holdings alone.
	AdjustmentNone Adjustment = iota
	// AdjustmentNoise overwrites holdings silently, the mismatch is rounding drift.
	AdjustmentNoise
	// AdjustmentWarn overwrites holdings and must be surfaced in the logs.
	AdjustmentWarn
)

func (a Adjustment) String() string {
	switch a {
	case AdjustmentNoise:
		return "noise"
	case AdjustmentWarn:
		return "warn"
	default:
		return "none"
	}
}

// Tolerance holds the redemption reconciliation thresholds in units.
type Tolerance struct {
	Noise float64
	Warn  float64
}

// DefaultTolerance returns the 10 / 1000 unit thresholds
func DefaultTolerance() Tolerance {
	return Tolerance{Noise: 10, Warn: 1000}
}

// Validate checks the thresholds are ordered
func (t Tolerance) Validate() error {
	if t.Noise < 0 {
		return fmt.Errorf("noise tolerance cannot be negative")
	}
	if t.Warn < t.Noise {
		return fmt.Errorf("warn tolerance must be at least the noise tolerance")
	}
	return nil
}

// Reconcile classifies a redemption of requested units against held units.
// exceeded is true when the request is beyond the hard limit and must fail.
// The noise band applies on both sides of held, so a request slightly short
// of the holding also closes the position.
func (t Tolerance) Reconcile(requested, held float64) (adj Adjustment, exceeded bool) {
	switch {
	case requested > held+t.Warn:
		return AdjustmentNone, true
	case requested > held+t.Noise:
		return AdjustmentWarn, false
	case requested-held <= t.Noise && held-requested <= t.Noise:
		return AdjustmentNoise, false
	default:
		return AdjustmentNone, false
	}
}
