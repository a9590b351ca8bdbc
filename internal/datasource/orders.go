package datasource

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/yourusername/fund-backtester/internal/models"
)

// ParseOrders reads an order ledger CSV. Required columns are code,
// trade_date, confirm_date and type; amount and units may be blank. Fee
// columns override flatFee and percentageFee per row when present.
// English and Chinese headers are both accepted. A confirm date before the
// trade date is kept as is; the order book confirms such orders on the
// trade date.
func ParseOrders(r io.Reader, flatFee, percentageFee float64) ([]models.Order, error) {
	t, err := readTable("orders", r)
	if err != nil {
		return nil, err
	}
	if err := t.require("code", "trade_date", "confirm_date", "type"); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		tradeType, err := models.ParseTradeType(t.cell(row, "type"))
		if err != nil {
			return nil, fmt.Errorf("orders line %d: %w", line, err)
		}
		tradeDate, err := t.date(row, line, "trade_date")
		if err != nil {
			return nil, err
		}
		confirmDate, err := t.date(row, line, "confirm_date")
		if err != nil {
			return nil, err
		}

		order := models.Order{
			ID:            uuid.New(),
			Code:          t.cell(row, "code"),
			Type:          tradeType,
			Amount:        math.NaN(),
			Units:         math.NaN(),
			FlatFee:       flatFee,
			PercentageFee: percentageFee,
			TradeDate:     tradeDate,
			ConfirmDate:   confirmDate,
		}
		if order.Code == "" {
			return nil, NewDataSourceError("orders", ErrCodeInvalidData, fmt.Sprintf("line %d: missing fund code", line), nil)
		}
		if order.Amount, err = t.float(row, line, "amount"); err != nil {
			return nil, err
		}
		if order.Units, err = t.float(row, line, "units"); err != nil {
			return nil, err
		}
		if fee, err := t.float(row, line, "flat_fee"); err != nil {
			return nil, err
		} else if !math.IsNaN(fee) {
			order.FlatFee = fee
		}
		if fee, err := t.float(row, line, "percentage_fee"); err != nil {
			return nil, err
		} else if !math.IsNaN(fee) {
			order.PercentageFee = fee
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// LoadOrders reads an order ledger CSV from path
func LoadOrders(path string, flatFee, percentageFee float64) ([]models.Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open orders file: %w", err)
	}
	defer f.Close()
	return ParseOrders(f, flatFee, percentageFee)
}
