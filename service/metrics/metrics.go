package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Stream Connection Metrics
	streamConnectAttempts *prometheus.CounterVec
	streamReconnects      prometheus.Counter
	streamConnected       prometheus.Gauge
	streamMessagesTotal   *prometheus.CounterVec
	streamRecordsTotal    prometheus.Counter

	// Filter Pipeline Metrics
	eventsEmittedTotal  *prometheus.CounterVec
	recordsDroppedTotal *prometheus.CounterVec

	// Subscription API Metrics
	subscriptionCallsTotal   *prometheus.CounterVec
	subscriptionCallDuration *prometheus.HistogramVec

	// HTTP Client Metrics
	httpClientRequestDuration *prometheus.HistogramVec
	httpClientRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Stream Connection Metrics
		streamConnectAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_connect_attempts_total",
				Help: "Total number of stream connection attempts by status",
			},
			[]string{"status"},
		),
		streamReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_reconnects_total",
				Help: "Total number of times an established stream connection was lost",
			},
		),
		streamConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stream_connected",
				Help: "1 while the stream connection is open and registered, 0 otherwise",
			},
		),
		streamMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_messages_total",
				Help: "Total number of stream messages received by kind (ack, batch, malformed)",
			},
			[]string{"kind"},
		),
		streamRecordsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_records_total",
				Help: "Total number of balance-change records decoded from the stream",
			},
		),

		// Filter Pipeline Metrics
		eventsEmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buy_events_emitted_total",
				Help: "Total number of buy events emitted by the filter pipeline",
			},
			[]string{"mint"},
		),
		recordsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_dropped_total",
				Help: "Total number of records dropped by the filter pipeline by reason",
			},
			[]string{"mint", "reason"},
		),

		// Subscription API Metrics
		subscriptionCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_api_calls_total",
				Help: "Total number of subscription management API calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		subscriptionCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subscription_api_call_duration_seconds",
				Help:    "Duration of subscription management API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"operation"},
		),

		// HTTP Client Metrics
		httpClientRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_client_request_duration_seconds",
				Help:    "Duration of outbound HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"client", "method", "status"},
		),
		httpClientRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_requests_total",
				Help: "Total number of outbound HTTP requests",
			},
			[]string{"client", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Stream metric helpers

// RecordConnectAttempt records a dial+register attempt against the stream endpoint.
func (m *Metrics) RecordConnectAttempt(status string) {
	m.streamConnectAttempts.WithLabelValues(status).Inc()
}

// RecordReconnect records the loss of an established connection.
func (m *Metrics) RecordReconnect() {
	m.streamReconnects.Inc()
}

// SetConnected flips the connected gauge.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.streamConnected.Set(1)
		return
	}
	m.streamConnected.Set(0)
}

// RecordMessage records an inbound stream message by its decoded kind.
func (m *Metrics) RecordMessage(kind string) {
	m.streamMessagesTotal.WithLabelValues(kind).Inc()
}

// RecordRecords records the number of records in a decoded batch.
func (m *Metrics) RecordRecords(count int) {
	m.streamRecordsTotal.Add(float64(count))
}

// Filter pipeline metric helpers

// RecordEventsEmitted records buy events produced for a mint.
func (m *Metrics) RecordEventsEmitted(mint string, count int) {
	m.eventsEmittedTotal.WithLabelValues(mint).Add(float64(count))
}

// RecordRecordDropped records a record the pipeline filtered out.
func (m *Metrics) RecordRecordDropped(mint, reason string) {
	m.recordsDroppedTotal.WithLabelValues(mint, reason).Inc()
}

// Subscription API metric helpers

// RecordSubscriptionCall records a subscription management call with duration.
func (m *Metrics) RecordSubscriptionCall(operation string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.subscriptionCallsTotal.WithLabelValues(operation, status).Inc()
	m.subscriptionCallDuration.WithLabelValues(operation).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPClientRequest records an outbound HTTP request with duration.
func (m *Metrics) RecordHTTPClientRequest(client, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpClientRequestDuration.WithLabelValues(client, method, status).Observe(duration)
	m.httpClientRequestsTotal.WithLabelValues(client, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
