// Package metrics defines backtesting-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by mode and status",
	}, []string{"mode", "status"})
)

// Backtest gauge vectors
var (
	BacktestFinalUnitNAV = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_final_unit_nav",
		Help:      "Final unit NAV of the latest run per mode",
	}, []string{"mode"})
)

// RecordBacktestRun records a backtest run event.
// mode should be one of: "ledger", "weights"
// status should be one of: "success", "failure", "canceled"
func RecordBacktestRun(mode, status string) {
	BacktestRunsTotal.WithLabelValues(mode, status).Inc()
}

// UpdateFinalUnitNAV records the closing unit NAV of a run.
func UpdateFinalUnitNAV(mode string, unitNAV float64) {
	BacktestFinalUnitNAV.WithLabelValues(mode).Set(unitNAV)
}
