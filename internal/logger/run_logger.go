// Package logger provides backtest run logging.
package logger

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunLogger provides dedicated logging for backtest runs.
type RunLogger struct {
	*logrus.Entry
}

// NewRunLogger creates a run logger bound to a run ID.
func NewRunLogger(baseLogger *logrus.Logger, runID uuid.UUID) *RunLogger {
	if baseLogger == nil {
		baseLogger = Discard()
	}
	return &RunLogger{
		Entry: baseLogger.WithFields(logrus.Fields{
			"component": "backtest",
			"run_id":    runID.String(),
		}),
	}
}

// LogRunStarted logs the start of a run.
func (rl *RunLogger) LogRunStarted(mode string, start, end time.Time, funds int) {
	rl.WithFields(logrus.Fields{
		"mode":  mode,
		"start": start.Format(dateLayout),
		"end":   end.Format(dateLayout),
		"funds": funds,
	}).Info("Starting backtest run")
}

// LogRunCompleted logs the outcome of a run.
func (rl *RunLogger) LogRunCompleted(mode string, days, trades, rejected int, finalUnitNAV float64, duration time.Duration) {
	rl.WithFields(logrus.Fields{
		"mode":           mode,
		"days":           days,
		"trades":         trades,
		"rejected":       rejected,
		"final_unit_nav": finalUnitNAV,
		"duration_ms":    duration.Milliseconds(),
	}).Info("Backtest run completed")
}

// LogRunFailed logs a fatal run error.
func (rl *RunLogger) LogRunFailed(mode string, date time.Time, err error) {
	rl.WithFields(logrus.Fields{
		"mode": mode,
		"date": date.Format(dateLayout),
	}).WithError(err).Error("Backtest run failed")
}
