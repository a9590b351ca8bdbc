package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/fund-backtester/internal/config"
	"github.com/yourusername/fund-backtester/internal/orderbook"
	"github.com/yourusername/fund-backtester/internal/rebalance"
)

// Mode selects how orders enter the simulation.
type Mode string

const (
	// ModeLedger replays an explicit order ledger.
	ModeLedger Mode = "ledger"
	// ModeWeights generates orders from a target-weight schedule.
	ModeWeights Mode = "weights"
)

// ParseMode converts a config string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLedger:
		return ModeLedger, nil
	case ModeWeights:
		return ModeWeights, nil
	default:
		return "", fmt.Errorf("unknown backtest mode %q", s)
	}
}

// BacktestConfig holds the engine settings for one run
type BacktestConfig struct {
	StartDate       time.Time
	EndDate         time.Time
	Mode            Mode
	InitialNotional float64
	Timing          rebalance.Timing
	Fees            rebalance.Fees
	Tolerance       orderbook.Tolerance
	DustThreshold   float64
	// ContinueOnRedemptionError drops redemptions beyond the hard tolerance
	// instead of aborting the run.
	ContinueOnRedemptionError bool
	AdjustMoneyMarket         bool
}

// DefaultConfig returns the engine defaults for the given date range
func DefaultConfig(start, end time.Time) BacktestConfig {
	return BacktestConfig{
		StartDate:         start,
		EndDate:           end,
		Mode:              ModeLedger,
		InitialNotional:   1e9,
		Timing:            rebalance.NextDay,
		Tolerance:         orderbook.DefaultTolerance(),
		DustThreshold:     1e-4,
		AdjustMoneyMarket: true,
	}
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("backtest config is required")
	}
	start, end, err := cfg.DateRange()
	if err != nil {
		return BacktestConfig{}, err
	}
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return BacktestConfig{}, err
	}
	timing, err := rebalance.ParseTiming(cfg.RedemptionTiming)
	if err != nil {
		return BacktestConfig{}, err
	}

	bt := BacktestConfig{
		StartDate:       start,
		EndDate:         end,
		Mode:            mode,
		InitialNotional: cfg.InitialNotional,
		Timing:          timing,
		Fees: rebalance.Fees{
			Flat:       cfg.FlatFee,
			Percentage: cfg.PercentageFee,
		},
		Tolerance: orderbook.Tolerance{
			Noise: cfg.NoiseTolerance,
			Warn:  cfg.WarnTolerance,
		},
		DustThreshold:             cfg.DustThreshold,
		ContinueOnRedemptionError: cfg.ContinueOnRedemptionError,
		AdjustMoneyMarket:         cfg.AdjustMoneyMarket,
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if b.StartDate.After(b.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	if b.InitialNotional <= 0 {
		return fmt.Errorf("initial notional must be positive")
	}
	if b.DustThreshold <= 0 {
		return fmt.Errorf("dust threshold must be positive")
	}
	if b.Fees.Flat < 0 {
		return fmt.Errorf("flat fee cannot be negative")
	}
	if b.Fees.Percentage < 0 || b.Fees.Percentage >= 100 {
		return fmt.Errorf("percentage fee must be between 0 and 100")
	}
	return b.Tolerance.Validate()
}
