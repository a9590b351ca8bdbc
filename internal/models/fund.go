package models

import "time"

// FundCategory is the first-level fund classification.
type FundCategory string

const (
	FundCategoryMoneyMarket FundCategory = "money_market"
	FundCategoryOther       FundCategory = "other"
)

// MoneyMarketTypeName is the first-level type name used by the fund master table.
const MoneyMarketTypeName = "货币市场基金"

// CategoryFromTypeName maps a fund master type name onto a FundCategory
func CategoryFromTypeName(name string) FundCategory {
	if name == MoneyMarketTypeName || name == string(FundCategoryMoneyMarket) {
		return FundCategoryMoneyMarket
	}
	return FundCategoryOther
}

// Instrument is a fund tracked by a backtest run.
type Instrument struct {
	Code     string       `json:"code" yaml:"code"`
	Name     string       `json:"name,omitempty" yaml:"name"`
	Category FundCategory `json:"category" yaml:"category"`
}

// IsMoneyMarket reports whether the fund accrues like a money-market fund
func (i Instrument) IsMoneyMarket() bool {
	return i.Category == FundCategoryMoneyMarket
}

// NAVPoint is a single observation of a per-unit value.
type NAVPoint struct {
	Code  string    `json:"code" db:"code"`
	Date  time.Time `json:"date" db:"trade_date"`
	Value float64   `json:"value" db:"nav"`
}

// WeightTarget is one row of a target-weight schedule.
type WeightTarget struct {
	Code   string    `json:"code" yaml:"code"`
	Date   time.Time `json:"date" yaml:"date"`
	Weight float64   `json:"weight" yaml:"weight"`
}

// TruncateDate drops the clock part of t and pins it to UTC
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
