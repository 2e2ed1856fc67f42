package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafetch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job Metrics
	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_jobs_created_total",
			Help: "Total number of download jobs created",
		},
		[]string{"platform"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_jobs_completed_total",
			Help: "Total number of finished download jobs",
		},
		[]string{"status"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediafetch_jobs_in_progress",
			Help: "Number of downloads currently running",
		},
	)

	JobsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediafetch_jobs_tracked",
			Help: "Number of jobs held in the job table",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafetch_job_duration_seconds",
			Help:    "Download job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
		[]string{"platform", "status"},
	)

	ArtifactSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafetch_artifact_size_bytes",
			Help:    "Size of downloaded artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 15), // 1MB to 16GB
		},
		[]string{"platform"},
	)

	ArtifactsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediafetch_artifacts_evicted_total",
			Help: "Total number of artifacts removed by retention cleanup",
		},
	)

	// Provider Metrics
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_provider_calls_total",
			Help: "Total number of calls into the media provider",
		},
		[]string{"operation", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafetch_provider_call_duration_seconds",
			Help:    "Media provider call duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"operation"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafetch_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafetch_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Notification Metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediafetch_websocket_clients",
			Help: "Number of connected job progress subscribers",
		},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "status"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordJobCreated records a job creation
func RecordJobCreated(platform string) {
	JobsCreatedTotal.WithLabelValues(platform).Inc()
}

// RecordJobCompleted records a job reaching a terminal status
func RecordJobCompleted(status, platform string, duration float64) {
	JobsCompletedTotal.WithLabelValues(status).Inc()
	JobDuration.WithLabelValues(platform, status).Observe(duration)
}

// UpdateJobMetrics updates current job gauges
func UpdateJobMetrics(inProgress, tracked int) {
	JobsInProgress.Set(float64(inProgress))
	JobsTracked.Set(float64(tracked))
}

// RecordArtifact records the size of a completed artifact
func RecordArtifact(platform string, size int64) {
	ArtifactSizeBytes.WithLabelValues(platform).Observe(float64(size))
}

// RecordEviction records artifacts removed by the janitor
func RecordEviction(count int) {
	ArtifactsEvictedTotal.Add(float64(count))
}

// RecordProviderCall records a metadata or download call
func RecordProviderCall(operation, status string, duration float64) {
	ProviderCallsTotal.WithLabelValues(operation, status).Inc()
	ProviderCallDuration.WithLabelValues(operation).Observe(duration)
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordWebhookDelivery records one webhook POST
func RecordWebhookDelivery(event, status string) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
