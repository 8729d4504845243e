package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
)

const namespace = "marketplace_assistant"

// MetricsCollector collects and exposes metrics for the marketplace assistant.
// A nil or disabled collector accepts every call and records nothing.
type MetricsCollector struct {
	enabled  bool
	registry *prometheus.Registry
	logger   *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Chat pipeline metrics
	chatResponsesTotal *prometheus.CounterVec
	chatDuration       *prometheus.HistogramVec

	// Cache metrics
	cacheOperationsTotal *prometheus.CounterVec

	// LLM metrics
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration prometheus.Histogram
	llmTokensTotal     prometheus.Counter

	// Circuit breaker metrics
	breakerState            prometheus.Gauge
	breakerTransitionsTotal *prometheus.CounterVec

	// Analytics metrics
	analyticsBuildsTotal   *prometheus.CounterVec
	analyticsBuildDuration *prometheus.HistogramVec

	// Event publishing metrics
	eventsPublishedTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector backed by its own registry
func NewMetricsCollector(cfg *config.Config, logger *zap.Logger) *MetricsCollector {
	if !cfg.Metrics.Enabled {
		logger.Info("metrics collection disabled")
		return &MetricsCollector{logger: logger, registry: prometheus.NewRegistry()}
	}

	buckets := cfg.Metrics.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &MetricsCollector{
		enabled:  true,
		registry: prometheus.NewRegistry(),
		logger:   logger,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "endpoint"},
		),

		chatResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_responses_total",
				Help:      "Chat responses by the pipeline stage that produced them",
			},
			[]string{"source", "cached"},
		),

		chatDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_duration_seconds",
				Help:      "Chat handling duration in seconds",
				Buckets:   buckets,
			},
			[]string{"source"},
		),

		cacheOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_operations_total",
				Help:      "Total number of response cache operations",
			},
			[]string{"operation", "result"}, // operation: get/set, result: hit_redis/hit_db/miss/error/ok
		),

		llmRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of language model requests",
			},
			[]string{"result"},
		),

		llmRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Language model request duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
		),

		llmTokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total tokens consumed by language model requests",
			},
		),

		breakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
		),

		breakerTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"to"},
		),

		analyticsBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_builds_total",
				Help:      "Analytics summaries built",
			},
			[]string{"domain", "result"},
		),

		analyticsBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analytics_build_duration_seconds",
				Help:      "Analytics fetch and build duration in seconds",
				Buckets:   buckets,
			},
			[]string{"domain"},
		),

		eventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_events_published_total",
				Help:      "Chat events handed to the message broker",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.chatResponsesTotal,
		m.chatDuration,
		m.cacheOperationsTotal,
		m.llmRequestsTotal,
		m.llmRequestDuration,
		m.llmTokensTotal,
		m.breakerState,
		m.breakerTransitionsTotal,
		m.analyticsBuildsTotal,
		m.analyticsBuildDuration,
		m.eventsPublishedTotal,
	)

	logger.Info("metrics collector initialized",
		zap.Bool("enabled", true),
		zap.String("path", cfg.Metrics.Path))

	return m
}

func (m *MetricsCollector) active() bool {
	return m != nil && m.enabled
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !m.active() {
		return
	}

	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordChatResponse records which stage answered a chat request
func (m *MetricsCollector) RecordChatResponse(source string, cached bool, duration time.Duration) {
	if !m.active() {
		return
	}

	m.chatResponsesTotal.WithLabelValues(source, strconv.FormatBool(cached)).Inc()
	m.chatDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheOperation records response cache metrics
func (m *MetricsCollector) RecordCacheOperation(operation, result string) {
	if !m.active() {
		return
	}

	m.cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordLLMRequest records a language model call
func (m *MetricsCollector) RecordLLMRequest(result string, tokens int, duration time.Duration) {
	if !m.active() {
		return
	}

	m.llmRequestsTotal.WithLabelValues(result).Inc()
	m.llmRequestDuration.Observe(duration.Seconds())
	if tokens > 0 {
		m.llmTokensTotal.Add(float64(tokens))
	}
}

// SetBreakerState records a circuit breaker transition. State values follow
// breaker.State: 0 closed, 1 open, 2 half-open.
func (m *MetricsCollector) SetBreakerState(state int, name string) {
	if !m.active() {
		return
	}

	m.breakerState.Set(float64(state))
	m.breakerTransitionsTotal.WithLabelValues(name).Inc()
}

// RecordAnalyticsBuild records an analytics request
func (m *MetricsCollector) RecordAnalyticsBuild(domain, result string, duration time.Duration) {
	if !m.active() {
		return
	}

	m.analyticsBuildsTotal.WithLabelValues(domain, result).Inc()
	m.analyticsBuildDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordEventPublished records a chat event publish attempt
func (m *MetricsCollector) RecordEventPublished(result string) {
	if !m.active() {
		return
	}

	m.eventsPublishedTotal.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics handler for this collector's registry
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
