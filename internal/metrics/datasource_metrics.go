package metrics

import "github.com/prometheus/client_golang/prometheus"

// Data source metrics
var (
	DataSourceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasource_requests_total",
		Help:      "Total number of NAV source requests by source, query and status",
	}, []string{"source", "query", "status"})

	DataSourceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "datasource_latency_seconds",
		Help:      "Latency of NAV source requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "query"})

	NAVCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nav_cache_lookups_total",
		Help:      "NAV cache lookups by result",
	}, []string{"result"})
)

// RecordDataSourceRequest records one request against a NAV source.
func RecordDataSourceRequest(source, query string, err error, durationSeconds float64) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	DataSourceRequestsTotal.WithLabelValues(source, query, status).Inc()
	DataSourceLatency.WithLabelValues(source, query).Observe(durationSeconds)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	NAVCacheLookupsTotal.WithLabelValues(result).Inc()
}
