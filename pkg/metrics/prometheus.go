// Package metrics provides Prometheus metrics for the tenderwatch service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Fetch outcomes used as label values.
const (
	OutcomeSuccess     = "success"
	OutcomeCacheHit    = "cache_hit"
	OutcomeFallback    = "fallback"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
)

// Manager manages all Prometheus metrics for the tenderwatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Pipeline Metrics
	pipelineRuns     *prometheus.CounterVec
	pipelineLatency  prometheus.Histogram
	pagesFetched     prometheus.Counter
	releasesFetched  prometheus.Counter
	tendersMatched   prometheus.Gauge
	rateLimitHits    prometheus.Counter
	scheduledRetries prometheus.Counter
	refreshDropped   prometheus.Counter
	queueSize        prometheus.Gauge
	workerCount      prometheus.Gauge

	// Cache Metrics
	cacheReads        *prometheus.CounterVec
	cacheWrites       prometheus.Counter
	snapshotAge       prometheus.Gauge
	snapshotLastUnix  prometheus.Gauge
	snapshotRecords   prometheus.Gauge
	cacheWriteLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	upstreamRequests    *prometheus.CounterVec
	upstreamLatency     prometheus.Histogram

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tenderwatch",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
			Buckets: m.histogramBuckets, ConstLabels: constLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		}, labels)
	}

	m.pipelineRuns = counterVec("runs_total", "Pipeline runs by outcome", "outcome")
	m.pipelineLatency = histogram("run_duration_milliseconds", "Duration of pipeline runs that reached the remote API")
	m.pagesFetched = counter("pages_fetched_total", "Pages retrieved from the procurement API")
	m.releasesFetched = counter("releases_fetched_total", "Raw releases retrieved from the procurement API")
	m.tendersMatched = gauge("tenders_matched", "Tenders kept by the classifier in the last successful fetch")
	m.rateLimitHits = counter("rate_limit_hits_total", "429 responses received from the procurement API")
	m.scheduledRetries = counter("scheduled_retries_total", "Automatic retries scheduled after rate limiting")
	m.refreshDropped = counter("refresh_dropped_total", "Refresh requests ignored because one was already pending")
	m.queueSize = gauge("queue_size", "Refresh jobs waiting in the queue")
	m.workerCount = gauge("worker_count", "Refresh workers currently running")

	m.cacheReads = counterVec("cache_reads_total", "Snapshot reads by result", "result")
	m.cacheWrites = counter("cache_writes_total", "Snapshot writes")
	m.snapshotAge = gauge("snapshot_age_seconds", "Age of the cached snapshot")
	m.snapshotLastUnix = gauge("snapshot_last_unix", "Capture time of the cached snapshot as Unix seconds")
	m.snapshotRecords = gauge("snapshot_records", "Records in the cached snapshot")
	m.cacheWriteLatency = histogram("cache_write_duration_milliseconds", "Snapshot write latency")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: m.histogramBuckets, ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.upstreamRequests = counterVec("upstream_requests_total", "Requests made to the procurement API by status", "status_code")
	m.upstreamLatency = histogram("upstream_request_duration_milliseconds", "Procurement API request latency")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_milliseconds", "Average GC pause time")
}

// Pipeline Metrics Functions.

// RecordPipelineRun counts a pipeline run with the given outcome.
func RecordPipelineRun(outcome string) {
	globalManager.pipelineRuns.WithLabelValues(outcome).Inc()
}

// RecordPipelineLatency records how long a remote pipeline run took.
func RecordPipelineLatency(latencyMs float64) {
	globalManager.pipelineLatency.Observe(latencyMs)
}

// RecordPageFetched counts a fetched page and the releases it carried.
func RecordPageFetched(releases int) {
	globalManager.pagesFetched.Inc()
	globalManager.releasesFetched.Add(float64(releases))
}

// UpdateTendersMatched sets the number of tenders kept by the classifier.
func UpdateTendersMatched(count int) {
	globalManager.tendersMatched.Set(float64(count))
}

// RecordRateLimitHit counts a 429 from the procurement API.
func RecordRateLimitHit() {
	globalManager.rateLimitHits.Inc()
}

// RecordScheduledRetry counts an automatic retry scheduled after rate limiting.
func RecordScheduledRetry() {
	globalManager.scheduledRetries.Inc()
}

// RecordRefreshDropped counts a refresh request that was ignored.
func RecordRefreshDropped() {
	globalManager.refreshDropped.Inc()
}

// UpdateQueueSize sets the number of pending refresh jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateWorkerCount sets the number of running refresh workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// Cache Metrics Functions.

// RecordCacheRead counts a snapshot read; result is one of hit, miss, corrupt.
func RecordCacheRead(result string) {
	globalManager.cacheReads.WithLabelValues(result).Inc()
}

// RecordCacheWrite counts a snapshot write and its latency.
func RecordCacheWrite(latencyMs float64) {
	globalManager.cacheWrites.Inc()
	globalManager.cacheWriteLatency.Observe(latencyMs)
}

// UpdateSnapshot sets the snapshot gauges.
func UpdateSnapshot(capturedAt time.Time, records int, now time.Time) {
	globalManager.snapshotAge.Set(now.Sub(capturedAt).Seconds())
	globalManager.snapshotLastUnix.Set(float64(capturedAt.Unix()))
	globalManager.snapshotRecords.Set(float64(records))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordUpstreamRequest records a request to the procurement API.
func RecordUpstreamRequest(statusCode string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(statusCode).Inc()
	globalManager.upstreamLatency.Observe(latencyMs)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
