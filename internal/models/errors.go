package models

import (
	"errors"
	"fmt"
	"time"
)

// Custom errors
var (
	ErrDataUnavailable           = errors.New("data unavailable")
	ErrOrderRejected             = errors.New("order rejected")
	ErrRedemptionExceedsHoldings = errors.New("redemption exceeds holdings")
	ErrInvalidOrderType          = errors.New("invalid order type")
	ErrInsufficientHoldings      = errors.New("insufficient holdings")
	ErrNotFound                  = errors.New("record not found")
)

// DataUnavailableError reports missing calendar or NAV data.
type DataUnavailableError struct {
	Source string
	What   string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDataUnavailable, e.Source, e.What)
}

func (e *DataUnavailableError) Unwrap() error { return ErrDataUnavailable }

// OrderRejectedError is a non-fatal, per-order failure.
type OrderRejectedError struct {
	Code   string
	Date   time.Time
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("%s: fund %s on %s: %s", ErrOrderRejected, e.Code, e.Date.Format("2006-01-02"), e.Reason)
}

func (e *OrderRejectedError) Unwrap() error { return ErrOrderRejected }

// RedemptionExceedsHoldingsError carries the quantities of a failed reconciliation.
type RedemptionExceedsHoldingsError struct {
	Code      string
	Date      time.Time
	Requested float64
	Held      float64
	Tolerance float64
}

func (e *RedemptionExceedsHoldingsError) Error() string {
	return fmt.Sprintf("%s: fund %s on %s: requested %.4f units, held %.4f, tolerance %.2f",
		ErrRedemptionExceedsHoldings, e.Code, e.Date.Format("2006-01-02"), e.Requested, e.Held, e.Tolerance)
}

func (e *RedemptionExceedsHoldingsError) Unwrap() error { return ErrRedemptionExceedsHoldings }

// InvalidOrderTypeError reports a trade type outside subscribe/redeem.
type InvalidOrderTypeError struct {
	Value string
}

func (e *InvalidOrderTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidOrderType, e.Value)
}

func (e *InvalidOrderTypeError) Unwrap() error { return ErrInvalidOrderType }

// InsufficientHoldingsError is raised by the ledger when units would go negative.
type InsufficientHoldingsError struct {
	Code      string
	Held      float64
	Delta     float64
	Tolerance float64
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("%s: fund %s holds %.4f units, delta %.4f breaches tolerance %g",
		ErrInsufficientHoldings, e.Code, e.Held, e.Delta, e.Tolerance)
}

func (e *InsufficientHoldingsError) Unwrap() error { return ErrInsufficientHoldings }
