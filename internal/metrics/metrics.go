package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentup_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluentup_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UsageIncrementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentup_usage_increments_total",
			Help: "Total number of successful usage increments.",
		},
		[]string{"category"},
	)

	QuotaExceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentup_quota_exceeded_total",
			Help: "Total number of increments rejected for exceeding the cap.",
		},
		[]string{"category"},
	)

	StorageMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluentup_storage_mode",
			Help: "Active usage store backend: 0 durable, 1 in-memory fallback.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UsageIncrementsTotal,
		QuotaExceededTotal,
		StorageMode,
	)
}
