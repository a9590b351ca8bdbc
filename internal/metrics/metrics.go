// Package metrics provides centralized Prometheus metrics registry for the backtester.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fund_backtester"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	OrdersProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_processed_total",
		Help:      "Total number of orders processed by trade type and outcome",
	}, []string{"type", "outcome"})
	OrdersSettledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_settled_total",
		Help:      "Total number of confirmed orders applied to the ledger",
	}, []string{"type"})
	RedemptionAdjustmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemption_adjustments_total",
		Help:      "Total number of holdings reconciled to a redemption by tolerance band",
	}, []string{"band"})
	RebalancesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebalances_total",
		Help:      "Total number of rebalance events that generated orders",
	})
	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of NAV source circuit breaker trips",
	})
)

// Gauge metrics
var (
	PortfolioUnitNAV = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "portfolio_unit_nav",
		Help:      "Unit NAV of the most recently simulated day",
	})
	PortfolioValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "portfolio_value",
		Help:      "Market value of the most recently simulated day",
	})
	QueuedOrders = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queued_orders",
		Help:      "Confirmed orders awaiting settlement",
	})
)

// Histogram metrics
var (
	BacktestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"mode"})
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of performance evaluation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(OrdersProcessedTotal)
		registry.MustRegister(OrdersSettledTotal)
		registry.MustRegister(RedemptionAdjustmentsTotal)
		registry.MustRegister(RebalancesTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)

		// Register gauge metrics
		registry.MustRegister(PortfolioUnitNAV)
		registry.MustRegister(PortfolioValue)
		registry.MustRegister(QueuedOrders)

		// Register histogram metrics
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(EvaluationDuration)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestFinalUnitNAV)

		// Register data source metrics
		registry.MustRegister(DataSourceRequestsTotal)
		registry.MustRegister(DataSourceLatency)
		registry.MustRegister(NAVCacheLookupsTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordOrderProcessed records an order leaving the pending book.
// outcome is one of "accepted", "rejected", "breach".
func RecordOrderProcessed(tradeType, outcome string) {
	OrdersProcessedTotal.WithLabelValues(tradeType, outcome).Inc()
}

// RecordOrderSettled records a confirmed order applied on its confirm date.
func RecordOrderSettled(tradeType string) {
	OrdersSettledTotal.WithLabelValues(tradeType).Inc()
}

// RecordRedemptionAdjustment records holdings overwritten by reconciliation.
func RecordRedemptionAdjustment(band string, count int) {
	RedemptionAdjustmentsTotal.WithLabelValues(band).Add(float64(count))
}

// RecordRebalance records a rebalance event.
func RecordRebalance() {
	RebalancesTotal.Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}

// UpdatePortfolio updates the portfolio gauges for the latest simulated day.
func UpdatePortfolio(unitNAV, value float64, queued int) {
	PortfolioUnitNAV.Set(unitNAV)
	PortfolioValue.Set(value)
	QueuedOrders.Set(float64(queued))
}

// RecordBacktestDuration records backtest duration.
func RecordBacktestDuration(mode string, durationSeconds float64) {
	BacktestDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordEvaluationDuration records performance evaluation duration.
func RecordEvaluationDuration(durationSeconds float64) {
	EvaluationDuration.Observe(durationSeconds)
}
