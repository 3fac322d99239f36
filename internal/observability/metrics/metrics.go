// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinical_translator"

// Metrics holds all Prometheus metrics for the server and the recording client.
type Metrics struct {
	// HTTP endpoint metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Correction/translation pipeline metrics
	UpstreamLatency   *prometheus.HistogramVec
	UpstreamErrors    *prometheus.CounterVec
	TranslationsTotal *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCCallsTotal *prometheus.CounterVec

	// Recording session metrics
	SessionsTotal  prometheus.Counter
	SessionsActive prometheus.Gauge

	// Capture metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	CaptureErrors      *prometheus.CounterVec

	// Client orchestration metrics
	DebounceScheduled prometheus.Counter
	DebounceFired     prometheus.Counter
	ClientAttempts    *prometheus.CounterVec
	ClientRetries     prometheus.Counter
	StaleDiscarded    *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"route"}),

		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Latency of the correction and translation model calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"stage"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of model call failures",
		}, []string{"stage", "error_type"}),
		TranslationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Total number of generate requests by outcome",
		}, []string{"outcome"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		GRPCCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),

		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active recording sessions",
		}),

		TranscriptsInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim capture results",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of finalized capture results",
		}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of speech capture errors",
		}, []string{"provider"}),

		DebounceScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_scheduled_total",
			Help:      "Total number of debounce (re)schedules",
		}),
		DebounceFired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_fired_total",
			Help:      "Total number of debounce timers that elapsed",
		}),
		ClientAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_attempts_total",
			Help:      "Total number of translation attempts by outcome",
		}, []string{"outcome"}),
		ClientRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_retries_total",
			Help:      "Total number of rate-limit retries scheduled",
		}),
		StaleDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_discarded_total",
			Help:      "Total number of responses or timers discarded for a superseded session",
		}, []string{"kind"}),
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, status int, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordUpstreamCall records a model call for a pipeline stage.
func (m *Metrics) RecordUpstreamCall(stage string, errorType string, latencySeconds float64) {
	m.UpstreamLatency.WithLabelValues(stage).Observe(latencySeconds)
	if errorType != "" {
		m.UpstreamErrors.WithLabelValues(stage, errorType).Inc()
	}
}

// RecordTranslation records the outcome of a generate request.
func (m *Metrics) RecordTranslation(outcome string) {
	m.TranslationsTotal.WithLabelValues(outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCallsTotal.WithLabelValues(method, code).Inc()
}

// RecordSessionStart records a recording session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a recording session ending.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordTranscript records a capture result.
func (m *Metrics) RecordTranscript(final bool) {
	if final {
		m.TranscriptsFinal.Inc()
		return
	}
	m.TranscriptsInterim.Inc()
}

// RecordCaptureError records a capture adapter failure.
func (m *Metrics) RecordCaptureError(provider string) {
	m.CaptureErrors.WithLabelValues(provider).Inc()
}

// RecordDebounceScheduled records a debounce (re)schedule.
func (m *Metrics) RecordDebounceScheduled() {
	m.DebounceScheduled.Inc()
}

// RecordDebounceFired records a debounce timer elapsing.
func (m *Metrics) RecordDebounceFired() {
	m.DebounceFired.Inc()
}

// RecordAttempt records the outcome of one translation attempt.
func (m *Metrics) RecordAttempt(outcome string) {
	m.ClientAttempts.WithLabelValues(outcome).Inc()
}

// RecordRetry records a scheduled rate-limit retry.
func (m *Metrics) RecordRetry() {
	m.ClientRetries.Inc()
}

// RecordStale records a discarded stale response or timer.
func (m *Metrics) RecordStale(kind string) {
	m.StaleDiscarded.WithLabelValues(kind).Inc()
}
