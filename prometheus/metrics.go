package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthErrorsCounter *prometheus.CounterVec

	// Tenant context metrics
	TenantContextMissingCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Entity operation metrics
	EntityOperationsCounter *prometheus.CounterVec

	// Active issued tokens
	ActiveTokensGauge prometheus.Gauge
)

// InitMetrics initializes Prometheus metrics with the configured prefix
func InitMetrics(prefix string) {
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"reason"},
	)

	TenantContextMissingCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_context_missing_total",
			Help: "Requests rejected for lacking a TenantId claim",
		},
	)

	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	EntityOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_entity_operations_total",
			Help: "Total number of entity store operations",
		},
		[]string{"entity", "operation"},
	)

	ActiveTokensGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_active_tokens",
			Help: "Number of JWT tokens issued and not yet expired",
		},
	)
}

// RecordAuthError increments the auth error counter for a reason
func RecordAuthError(reason string) {
	if AuthErrorsCounter != nil {
		AuthErrorsCounter.WithLabelValues(reason).Inc()
	}
}

// RecordTenantContextMissing counts requests rejected without a tenant claim
func RecordTenantContextMissing() {
	if TenantContextMissingCounter != nil {
		TenantContextMissingCounter.Inc()
	}
}

// RecordEntityOperation increments the per-entity operation counter
func RecordEntityOperation(entity, operation string) {
	if EntityOperationsCounter != nil {
		EntityOperationsCounter.WithLabelValues(entity, operation).Inc()
	}
}

// TrackDBOperation returns a function that records operation duration when
// deferred: defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		if DbOperationDuration != nil {
			DbOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		}
	}
}

// IncreaseActiveTokens bumps the issued token gauge
func IncreaseActiveTokens() {
	if ActiveTokensGauge != nil {
		ActiveTokensGauge.Inc()
	}
}
