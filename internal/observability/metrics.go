// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lifecycle metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	TokensEscrowed    prometheus.Counter
	TokensFilled      prometheus.Counter
	TokensRefunded    prometheus.Counter
	LamportsSettled   prometheus.Counter
	ActiveSwaps       prometheus.Gauge

	// Notification metrics
	EventsPublished    *prometheus.CounterVec
	NotifyErrors       *prometheus.CounterVec
	FeedSubscribers    prometheus.Gauge
	FeedDroppedClients prometheus.Counter

	// API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthFailures        *prometheus.CounterVec

	// Solana RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	DBConnections   *prometheus.GaugeVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "otc_swaps"
	}

	return &Metrics{
		// Lifecycle metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "operations_total",
			Help:      "Total number of lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		TokensEscrowed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "tokens_escrowed_total",
			Help:      "Total raw token units deposited into escrow",
		}),
		TokensFilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "tokens_filled_total",
			Help:      "Total raw token units released to buyers",
		}),
		TokensRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "tokens_refunded_total",
			Help:      "Total raw token units refunded to sellers",
		}),
		LamportsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "lamports_settled_total",
			Help:      "Total lamports paid by buyers to sellers",
		}),
		ActiveSwaps: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "active_swaps",
			Help:      "Number of swaps accepting fills",
		}),

		// Notification metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of audit events published by type",
		}, []string{"event_type"}),
		NotifyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "notify_errors_total",
			Help:      "Total number of failed event deliveries by sink",
		}, []string{"sink"}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of websocket feed subscribers",
		}),
		FeedDroppedClients: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_clients_total",
			Help:      "Total number of slow feed subscribers disconnected",
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of rejected request signatures by reason",
		}, []string{"reason"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		DBConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections",
			Help:      "Number of database connections by state",
		}, []string{"database", "state"}),

		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records the outcome and duration of a lifecycle operation.
// outcome is "ok" or an error kind name.
func RecordOperation(operation, outcome string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordCreated records a new escrow deposit.
func RecordCreated(amount uint64) {
	DefaultMetrics.TokensEscrowed.Add(float64(amount))
	DefaultMetrics.ActiveSwaps.Inc()
}

// RecordFilled records a fill. closed is true when the fill exhausted the swap.
func RecordFilled(quantity, payment uint64, closed bool) {
	DefaultMetrics.TokensFilled.Add(float64(quantity))
	DefaultMetrics.LamportsSettled.Add(float64(payment))
	if closed {
		DefaultMetrics.ActiveSwaps.Dec()
	}
}

// RecordCancelled records a refund to the seller.
func RecordCancelled(refund uint64) {
	DefaultMetrics.TokensRefunded.Add(float64(refund))
	DefaultMetrics.ActiveSwaps.Dec()
}

// SetActiveSwaps sets the active swap gauge, e.g. after loading persisted state.
func SetActiveSwaps(n int) {
	DefaultMetrics.ActiveSwaps.Set(float64(n))
}

// RecordEventPublished increments the published counter for an event type.
func RecordEventPublished(eventType string) {
	DefaultMetrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordNotifyError increments the delivery failure counter of a sink.
func RecordNotifyError(sink string) {
	DefaultMetrics.NotifyErrors.WithLabelValues(sink).Inc()
}

// UpdateFeedSubscribers sets the current subscriber count.
func UpdateFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordFeedDrop increments the dropped subscriber counter.
func RecordFeedDrop() {
	DefaultMetrics.FeedDroppedClients.Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordAuthFailure increments the auth failure counter.
func RecordAuthFailure(reason string) {
	DefaultMetrics.AuthFailures.WithLabelValues(reason).Inc()
}

// RecordRPCLatency records Solana RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateDBConnections sets the connection gauge of a database by state.
func UpdateDBConnections(database string, idle, inUse int) {
	DefaultMetrics.DBConnections.WithLabelValues(database, "idle").Set(float64(idle))
	DefaultMetrics.DBConnections.WithLabelValues(database, "in_use").Set(float64(inUse))
}

// AddUptime advances the uptime counter.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}
