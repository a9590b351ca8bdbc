package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BacktestRun represents a persisted backtest run summary
type BacktestRun struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Mode             string          `db:"mode" json:"mode"`
	Benchmark        string          `db:"benchmark" json:"benchmark"`
	StartDate        time.Time       `db:"start_date" json:"start_date"`
	EndDate          time.Time       `db:"end_date" json:"end_date"`
	Funds            []string        `db:"funds" json:"funds"`
	FinalUnitNAV     decimal.Decimal `db:"final_unit_nav" json:"final_unit_nav"`
	FinalValue       decimal.Decimal `db:"final_value" json:"final_value"`
	TotalReturn      decimal.Decimal `db:"total_return" json:"total_return"`
	BenchmarkReturn  decimal.Decimal `db:"benchmark_return" json:"benchmark_return"`
	AnnualizedReturn decimal.Decimal `db:"annualized_return" json:"annualized_return"`
	MaxDrawdown      decimal.Decimal `db:"max_drawdown" json:"max_drawdown"`
	SharpeRatio      decimal.Decimal `db:"sharpe_ratio" json:"sharpe_ratio"`
	Trades           int             `db:"trades" json:"trades"`
	Rejected         int             `db:"rejected" json:"rejected"`
	Report           json.RawMessage `db:"report" json:"report"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
