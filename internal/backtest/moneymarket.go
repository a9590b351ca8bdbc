package backtest

import (
	"time"

	"github.com/yourusername/fund-backtester/internal/logger"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
)

// AdjustMoneyMarketRedemptions back-dates the trade price of money-market
// redemptions whose confirmation lands more than one calendar day after the
// trade, typically across a weekend. The price used becomes the NAV of the
// day before confirmation, read from source. Only prices is patched; source
// and any valuation built on it are left alone. It returns the number of
// patched orders.
func AdjustMoneyMarketRedemptions(orders []models.Order, market *nav.Market, prices *nav.Book, log *logger.TradeLogger) int {
	if log == nil {
		log = logger.NewTradeLogger(nil)
	}

	patched := 0
	for _, order := range orders {
		if order.Type != models.TradeTypeRedeem {
			continue
		}
		inst, ok := market.Instrument(order.Code)
		if !ok || !inst.IsMoneyMarket() {
			continue
		}
		trade := models.TruncateDate(order.TradeDate)
		confirm := models.TruncateDate(order.ConfirmDate)
		if confirm.Sub(trade) <= 24*time.Hour {
			continue
		}

		navDate := confirm.AddDate(0, 0, -1)
		value, ok := market.Funds.AsOf(order.Code, navDate)
		if !ok {
			continue
		}
		old, _ := prices.AsOf(order.Code, trade)
		prices.Set(order.Code, trade, value)
		log.LogNAVBackdated(order.Code, trade, confirm, navDate, old, value)
		patched++
	}
	return patched
}
