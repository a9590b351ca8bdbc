package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TradeType is the direction of a fund order.
type TradeType int

const (
	TradeTypeSubscribe TradeType = iota + 1
	TradeTypeRedeem
)

// String returns the canonical lower-case name of the trade type
func (t TradeType) String() string {
	switch t {
	case TradeTypeSubscribe:
		return "subscribe"
	case TradeTypeRedeem:
		return "redeem"
	default:
		return fmt.Sprintf("TradeType(%d)", int(t))
	}
}

// Valid reports whether t is one of the known trade types
func (t TradeType) Valid() bool {
	return t == TradeTypeSubscribe || t == TradeTypeRedeem
}

// ParseTradeType converts ledger text into a TradeType.
// Unknown values return an *InvalidOrderTypeError.
func ParseTradeType(s string) (TradeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subscribe", "subscription", "buy", "申购":
		return TradeTypeSubscribe, nil
	case "redeem", "redemption", "sell", "赎回":
		return TradeTypeRedeem, nil
	default:
		return 0, &InvalidOrderTypeError{Value: s}
	}
}

// MarshalText implements encoding.TextMarshaler
func (t TradeType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, &InvalidOrderTypeError{Value: t.String()}
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TradeType) UnmarshalText(text []byte) error {
	parsed, err := ParseTradeType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// OrderStatus tracks an order through the book.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusApplied   OrderStatus = "applied"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a subscription or redemption instruction for one fund.
// Amount and Units are optional; NaN means "not supplied".
type Order struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	Type          TradeType `json:"type"`
	Amount        float64   `json:"amount"`
	Units         float64   `json:"units"`
	FlatFee       float64   `json:"flat_fee"`
	PercentageFee float64   `json:"percentage_fee"` // percent points, 0.15 means 0.15%
	TradeDate     time.Time `json:"trade_date"`
	ConfirmDate   time.Time `json:"confirm_date"`
}

// NewSubscription builds a cash subscription order
func NewSubscription(code string, amount float64, tradeDate, confirmDate time.Time) Order {
	return Order{
		ID:          uuid.New(),
		Code:        code,
		Type:        TradeTypeSubscribe,
		Amount:      amount,
		Units:       math.NaN(),
		TradeDate:   tradeDate,
		ConfirmDate: confirmDate,
	}
}

// NewRedemption builds a unit redemption order
func NewRedemption(code string, units float64, tradeDate, confirmDate time.Time) Order {
	return Order{
		ID:          uuid.New(),
		Code:        code,
		Type:        TradeTypeRedeem,
		Amount:      math.NaN(),
		Units:       units,
		TradeDate:   tradeDate,
		ConfirmDate: confirmDate,
	}
}

// HasAmount reports whether a cash amount was supplied
func (o Order) HasAmount() bool {
	return !math.IsNaN(o.Amount)
}

// HasUnits reports whether a unit quantity was supplied
func (o Order) HasUnits() bool {
	return !math.IsNaN(o.Units)
}

// WithFees returns a copy of the order carrying the given fee schedule
func (o Order) WithFees(flat, percentage float64) Order {
	o.FlatFee = flat
	o.PercentageFee = percentage
	return o
}

// Execution is an accepted order waiting in, or applied from, the confirmation queue.
type Execution struct {
	OrderID        uuid.UUID   `json:"order_id"`
	Code           string      `json:"code"`
	Type           TradeType   `json:"type"`
	Amount         float64     `json:"amount"`
	Units          float64     `json:"units"`
	PortfolioUnits float64     `json:"portfolio_units"`
	NAV            float64     `json:"nav"`
	TradeDate      time.Time   `json:"trade_date"`
	ConfirmDate    time.Time   `json:"confirm_date"`
	Status         OrderStatus `json:"status"`
}

// Rejection records an order dropped before confirmation.
type Rejection struct {
	Order  Order     `json:"order"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}
