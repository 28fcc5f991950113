package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	TurnsTotal      *prometheus.CounterVec
	ToolCallsTotal  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Pipeline metrics
	PipelineResultsTotal   *prometheus.CounterVec
	PipelinePersistSeconds prometheus.Histogram
	ConversationsPersisted prometheus.Counter

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		SessionsActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivethru_sessions_active",
				Help: "Number of live ordering sessions",
			},
		)

		SessionsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drivethru_sessions_total",
				Help: "Total number of ordering sessions started",
			},
		)

		TurnsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivethru_turns_total",
				Help: "Total number of conversation turns",
			},
			[]string{"speaker"},
		)

		ToolCallsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivethru_tool_calls_total",
				Help: "Total number of tool calls by outcome",
			},
			[]string{"status"},
		)

		SessionDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "drivethru_session_duration_seconds",
				Help:    "Duration of completed ordering sessions",
				Buckets: prometheus.ExponentialBuckets(5, 2, 8), // 5s to ~10min
			},
		)

		PipelineResultsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivethru_pipeline_results_total",
				Help: "Pipeline invocations by result status",
			},
			[]string{"status"},
		)

		PipelinePersistSeconds = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "drivethru_pipeline_persist_seconds",
				Help:    "Time spent persisting a conversation",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		)

		ConversationsPersisted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drivethru_conversations_persisted_total",
				Help: "Total number of conversations committed to storage",
			},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivethru_amqp_published_messages_total",
				Help: "Total number of AMQP messages published",
			},
			[]string{"status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivethru_amqp_connection_status",
				Help: "AMQP connection status (1 connected, 0 disconnected)",
			},
		)

		registry.MustRegister(
			SessionsActive,
			SessionsTotal,
			TurnsTotal,
			ToolCallsTotal,
			SessionDuration,
			PipelineResultsTotal,
			PipelinePersistSeconds,
			ConversationsPersisted,
			AMQPPublishedMessages,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetMetricsPath sets the HTTP path for metrics endpoint
func SetMetricsPath(path string) {
	defaultMetricsPath = path
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled && registry != nil {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// SessionStarted records a new live session
func SessionStarted() {
	if !metricsEnabled || SessionsActive == nil {
		return
	}
	SessionsActive.Inc()
	SessionsTotal.Inc()
}

// SessionEnded records a session leaving the registry
func SessionEnded() {
	if !metricsEnabled || SessionsActive == nil {
		return
	}
	SessionsActive.Dec()
}

// RecordTurn records one conversation turn for a speaker
func RecordTurn(speaker string) {
	if !metricsEnabled || TurnsTotal == nil {
		return
	}
	TurnsTotal.WithLabelValues(speaker).Inc()
}

// RecordToolCall records a tool call outcome
func RecordToolCall(successful bool) {
	if !metricsEnabled || ToolCallsTotal == nil {
		return
	}
	status := "error"
	if successful {
		status = "success"
	}
	ToolCallsTotal.WithLabelValues(status).Inc()
}

// ObserveSessionDuration records the duration of a finished session
func ObserveSessionDuration(seconds float64) {
	if !metricsEnabled || SessionDuration == nil {
		return
	}
	SessionDuration.Observe(seconds)
}

// RecordPipelineResult records a pipeline invocation outcome
func RecordPipelineResult(status string) {
	if !metricsEnabled || PipelineResultsTotal == nil {
		return
	}
	PipelineResultsTotal.WithLabelValues(status).Inc()
}

// ObservePersistDuration returns a function to observe persistence duration
func ObservePersistDuration() func() {
	if !metricsEnabled || PipelinePersistSeconds == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		PipelinePersistSeconds.Observe(time.Since(start).Seconds())
	}
}

// RecordConversationPersisted records a committed conversation
func RecordConversationPersisted() {
	if !metricsEnabled || ConversationsPersisted == nil {
		return
	}
	ConversationsPersisted.Inc()
}

// RecordAMQPPublish records an AMQP publish attempt
func RecordAMQPPublish(status string) {
	if !metricsEnabled || AMQPPublishedMessages == nil {
		return
	}
	AMQPPublishedMessages.WithLabelValues(status).Inc()
}

// SetAMQPConnectionStatus sets the AMQP connection status gauge
func SetAMQPConnectionStatus(connected bool) {
	if !metricsEnabled || AMQPConnectionStatus == nil {
		return
	}
	if connected {
		AMQPConnectionStatus.Set(1)
	} else {
		AMQPConnectionStatus.Set(0)
	}
}
