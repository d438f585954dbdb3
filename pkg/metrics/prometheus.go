// Package metrics provides Prometheus metrics for the trendcast forecasting service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the trendcast service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Model lifecycle
	fitsTotal          *prometheus.CounterVec
	fitLatency         prometheus.Histogram
	predictionsTotal   prometheus.Counter
	predictLatency     prometheus.Histogram
	predictiveSamples  prometheus.Counter
	changepointClamps  prometheus.Counter
	optimizerFallbacks prometheus.Counter
	modelsStored       prometheus.Gauge
	modelsEvicted      prometheus.Counter

	// Submission pipeline
	submissionsDuplicate prometheus.Counter
	submissionsLimited   prometheus.Counter
	queueSize            prometheus.Gauge
	queueCapacity        prometheus.Gauge
	queueEnqueued        prometheus.Counter
	queueDequeued        prometheus.Counter
	queueRejected        prometheus.Counter
	workerActive         prometheus.Gauge
	workerErrors         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "trendcast",
		subsystem:        "forecast",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fitsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fits_total",
		Help:      "Total number of model fits by outcome",
	}, []string{"status"})
	m.fitLatency = m.histogram("fit_latency_milliseconds", "Model fit latency in milliseconds")
	m.predictionsTotal = m.counter("predictions_total", "Total number of predict calls")
	m.predictLatency = m.histogram("predict_latency_milliseconds", "Predict latency in milliseconds")
	m.predictiveSamples = m.counter("predictive_samples_total", "Total number of simulated predictive paths")
	m.changepointClamps = m.counter("changepoint_clamps_total", "Fits whose changepoint count was reduced to fit the history")
	m.optimizerFallbacks = m.counter("optimizer_fallbacks_total", "MAP fits that needed the fallback optimizer")
	m.modelsStored = m.gauge("models_stored", "Number of models held in the model store")
	m.modelsEvicted = m.counter("models_evicted_total", "Number of models evicted from the model store")

	m.submissionsDuplicate = m.counter("submissions_duplicate_total", "Submissions answered from the idempotency cache")
	m.submissionsLimited = m.counter("submissions_rate_limited_total", "Submissions rejected by the rate limiter")
	m.queueSize = m.gauge("queue_size", "Current number of pending fit jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of pending fit jobs")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of fit jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of fit jobs dequeued")
	m.queueRejected = m.counter("queue_rejected_total", "Fit jobs rejected because the queue was full")
	m.workerActive = m.gauge("worker_active_count", "Number of fit workers running")
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed fit jobs")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordFit records a finished fit with its outcome ("success" or "error") and latency.
func RecordFit(status string, latencyMs float64) {
	globalManager.fitsTotal.WithLabelValues(status).Inc()
	globalManager.fitLatency.Observe(latencyMs)
}

// RecordPredict records a predict call.
func RecordPredict(latencyMs float64, paths int) {
	globalManager.predictionsTotal.Inc()
	globalManager.predictLatency.Observe(latencyMs)
	globalManager.predictiveSamples.Add(float64(paths))
}

// RecordChangepointClamp increments the changepoint clamp counter.
func RecordChangepointClamp() {
	globalManager.changepointClamps.Inc()
}

// RecordOptimizerFallback increments the optimizer fallback counter.
func RecordOptimizerFallback() {
	globalManager.optimizerFallbacks.Inc()
}

// UpdateModelsStored sets the number of stored models.
func UpdateModelsStored(count int) {
	globalManager.modelsStored.Set(float64(count))
}

// RecordModelEvicted increments the eviction counter.
func RecordModelEvicted() {
	globalManager.modelsEvicted.Inc()
}

// RecordSubmissionDuplicate increments the duplicate submission counter.
func RecordSubmissionDuplicate() {
	globalManager.submissionsDuplicate.Inc()
}

// RecordSubmissionRateLimited increments the rate-limited submission counter.
func RecordSubmissionRateLimited() {
	globalManager.submissionsLimited.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected increments the rejected-enqueue counter.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
