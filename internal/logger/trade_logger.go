// Package logger provides trade audit logging.
package logger

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/models"
)

const dateLayout = "2006-01-02"

// TradeLogger provides the audit trail for order handling. Every rejected
// or adjusted order is logged with fund, date and the quantities used.
type TradeLogger struct {
	*logrus.Entry
}

// NewTradeLogger creates a new trade logger.
func NewTradeLogger(baseLogger *logrus.Logger) *TradeLogger {
	if baseLogger == nil {
		baseLogger = Discard()
	}
	return &TradeLogger{
		Entry: baseLogger.WithField("component", "trades"),
	}
}

// LogOrderAccepted logs an order moved into the confirmation queue.
func (tl *TradeLogger) LogOrderAccepted(exec models.Execution, held float64) {
	tl.WithFields(logrus.Fields{
		"fund":            exec.Code,
		"type":            exec.Type.String(),
		"trade_date":      exec.TradeDate.Format(dateLayout),
		"confirm_date":    exec.ConfirmDate.Format(dateLayout),
		"amount":          exec.Amount,
		"units":           exec.Units,
		"nav":             exec.NAV,
		"portfolio_units": exec.PortfolioUnits,
		"held_units":      held,
	}).Info("Order accepted")
}

// LogOrderRejected logs an order dropped before confirmation.
func (tl *TradeLogger) LogOrderRejected(order models.Order, date time.Time, reason string) {
	tl.WithFields(logrus.Fields{
		"fund":   order.Code,
		"type":   order.Type.String(),
		"date":   date.Format(dateLayout),
		"amount": optional(order.Amount),
		"units":  optional(order.Units),
		"reason": reason,
	}).Warn("Order rejected")
}

// LogRedemptionAdjusted logs holdings overwritten to match a redemption.
// Small mismatches are treated as rounding noise and only logged at debug.
func (tl *TradeLogger) LogRedemptionAdjusted(code string, date time.Time, requested, held, tolerance float64, warn bool) {
	entry := tl.WithFields(logrus.Fields{
		"fund":      code,
		"date":      date.Format(dateLayout),
		"requested": requested,
		"held":      held,
		"mismatch":  requested - held,
		"tolerance": tolerance,
	})
	if warn {
		entry.Warn("Redemption exceeds holdings, holdings clamped to requested units")
		return
	}
	entry.Debug("Holdings reconciled to redemption units")
}

// LogRedemptionExceeded logs a redemption beyond the hard tolerance.
func (tl *TradeLogger) LogRedemptionExceeded(err *models.RedemptionExceedsHoldingsError) {
	tl.WithFields(logrus.Fields{
		"fund":      err.Code,
		"date":      err.Date.Format(dateLayout),
		"requested": err.Requested,
		"held":      err.Held,
		"tolerance": err.Tolerance,
	}).Error("Redemption exceeds holdings")
}

// LogNAVBackdated logs a money-market trade price replaced ahead of the run.
func (tl *TradeLogger) LogNAVBackdated(code string, tradeDate, confirmDate, navDate time.Time, from, to float64) {
	tl.WithFields(logrus.Fields{
		"fund":         code,
		"trade_date":   tradeDate.Format(dateLayout),
		"confirm_date": confirmDate.Format(dateLayout),
		"nav_date":     navDate.Format(dateLayout),
		"old_nav":      from,
		"new_nav":      to,
	}).Info("Money-market redemption NAV back-dated")
}

// LogRebalanceSkipped logs a rebalance that produced no trades.
func (tl *TradeLogger) LogRebalanceSkipped(date time.Time, reason string) {
	tl.WithFields(logrus.Fields{
		"date":   date.Format(dateLayout),
		"reason": reason,
	}).Debug("Rebalance skipped")
}

// optional maps the NaN "not supplied" marker to nil so JSON output stays valid
func optional(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
