// Package metrics provides Prometheus metrics for the tally progress service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	attemptsAccepted  prometheus.Counter
	attemptsDuplicate prometheus.Counter
	attemptsInvalid   *prometheus.CounterVec
	attemptsFolded    prometheus.Counter

	// Aggregation
	summaryRecomputes *prometheus.CounterVec
	summaryLatency    prometheus.Histogram
	cachedSummaries   prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryRecordsTotal  prometheus.Gauge
	repositoryAppendLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// Scheduler
	schedulerJobRuns *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "progress",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.attemptsAccepted = m.counter("attempts_accepted_total", "Attempts accepted for aggregation")
	m.attemptsDuplicate = m.counter("attempts_duplicate_total", "Attempts rejected as resubmissions")
	m.attemptsInvalid = m.counterVec("attempts_invalid_total", "Attempts rejected at the boundary, by reason", "reason")
	m.attemptsFolded = m.counter("attempts_folded_total", "Attempts stored and folded into a summary")

	m.summaryRecomputes = m.counterVec("summary_recomputes_total", "Full summary recomputations from the attempt log", "reason")
	m.summaryLatency = m.histogram("summary_latency_milliseconds", "Time to produce a summary in milliseconds")
	m.cachedSummaries = m.gauge("cached_summaries", "Summaries held in the incremental cache")

	m.queueSize = m.gauge("queue_size", "Current size of the attempt queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the attempt queue")
	m.queueUtilization = m.gauge("queue_utilization", "Queue size divided by capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Attempts enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Attempts dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Attempts that could not be enqueued")

	m.workerCount = m.gauge("worker_count", "Number of ingestion workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to store and fold one attempt")
	m.workerErrors = m.counter("worker_errors_total", "Attempts a worker failed to process")

	m.repositoryRecordsTotal = m.gauge("repository_records_total", "Attempts in the record store")
	m.repositoryAppendLatency = m.histogram("repository_append_latency_milliseconds", "Record store append latency")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Record store query latency")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.schedulerJobRuns = m.counterVec("scheduler_job_runs_total", "Scheduled job executions", "job")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Ingestion Metrics Functions.

// RecordAttemptAccepted counts an attempt accepted for aggregation.
func RecordAttemptAccepted() { globalManager.attemptsAccepted.Inc() }

// RecordAttemptDuplicate counts a resubmitted attempt.
func RecordAttemptDuplicate() { globalManager.attemptsDuplicate.Inc() }

// RecordAttemptInvalid counts an attempt rejected for reason.
func RecordAttemptInvalid(reason string) { globalManager.attemptsInvalid.WithLabelValues(reason).Inc() }

// RecordAttemptFolded counts an attempt stored and folded.
func RecordAttemptFolded() { globalManager.attemptsFolded.Inc() }

// Aggregation Metrics Functions.

// RecordSummaryRecompute counts a full recomputation and why it happened.
func RecordSummaryRecompute(reason string) { globalManager.summaryRecomputes.WithLabelValues(reason).Inc() }

// RecordSummaryLatency records how long a summary took to produce.
func RecordSummaryLatency(latencyMs float64) { globalManager.summaryLatency.Observe(latencyMs) }

// UpdateCachedSummaries sets the number of cached summaries.
func UpdateCachedSummaries(count int) { globalManager.cachedSummaries.Set(float64(count)) }

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Repository Metrics Functions.

// UpdateRepositoryRecordsTotal sets the number of stored attempts.
func UpdateRepositoryRecordsTotal(count int) { globalManager.repositoryRecordsTotal.Set(float64(count)) }

// RecordRepositoryAppendLatency records store append latency.
func RecordRepositoryAppendLatency(latencyMs float64) {
	globalManager.repositoryAppendLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records store query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordSchedulerJobRun counts one execution of a scheduled job.
func RecordSchedulerJobRun(job string) { globalManager.schedulerJobRuns.WithLabelValues(job).Inc() }

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// Configure rebuilds the global collectors on a fresh registry with opts.
// Call it once at startup, before any handler captures GetRegistry.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(reg))...)
	customRegistry = reg
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
