package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myip",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ResponseFormatTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "http",
			Name:      "response_format_total",
			Help:      "Total number of responses by negotiated format",
		},
		[]string{"format"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "myip",
			Subsystem: "http",
			Name:      "batch_addresses",
			Help:      "Number of addresses requested per batch lookup",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		},
	)

	// Cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of cache backend errors",
		},
		[]string{"backend", "op"},
	)

	CacheBackendInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "myip",
			Subsystem: "cache",
			Name:      "backend_info",
			Help:      "Active cache backend, set to 1 for the selected one",
		},
		[]string{"backend"},
	)

	CacheBackendHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "myip",
			Subsystem: "cache",
			Name:      "backend_healthy",
			Help:      "1 if the last cache probe succeeded, 0 otherwise",
		},
	)

	// Lookup metrics
	GeoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "geoip",
			Name:      "lookups_total",
			Help:      "Total number of GeoIP source lookups by outcome",
		},
		[]string{"outcome"},
	)

	GeoLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "myip",
			Subsystem: "geoip",
			Name:      "lookup_duration_seconds",
			Help:      "GeoIP source lookup duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	RDNSLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "rdns",
			Name:      "lookups_total",
			Help:      "Total number of reverse DNS resolutions by outcome",
		},
		[]string{"outcome"},
	)

	RDNSLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "myip",
			Subsystem: "rdns",
			Name:      "lookup_duration_seconds",
			Help:      "Reverse DNS resolution duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Scheduler metrics
	SchedulerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Total number of scheduled jobs executed",
		},
		[]string{"job_name", "status"},
	)

	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myip",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job execution duration in seconds",
			Buckets:   []float64{.01, .1, 1, 5, 10, 30, 60},
		},
		[]string{"job_name"},
	)

	LastSchedulerJobTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "myip",
			Subsystem: "scheduler",
			Name:      "last_job_timestamp",
			Help:      "Unix timestamp of last job execution",
		},
		[]string{"job_name"},
	)

	// Rate limiter metrics
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myip",
			Subsystem: "rate_limiter",
			Name:      "requests_total",
			Help:      "Total number of rate-limited requests",
		},
		[]string{"allowed"},
	)
)

// Metrics provides convenience methods for recording metrics
type Metrics struct{}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(method, endpoint, http.StatusText(statusCode)).Inc()
	HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFormat records the representation a response was rendered in
func (m *Metrics) RecordFormat(format string) {
	ResponseFormatTotal.WithLabelValues(format).Inc()
}

// RecordBatch records the size of a batch lookup
func (m *Metrics) RecordBatch(size int) {
	BatchSize.Observe(float64(size))
}

// RecordCacheLookup records a cache hit or miss for a key namespace
func (m *Metrics) RecordCacheLookup(namespace string, hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	CacheLookupsTotal.WithLabelValues(namespace, result).Inc()
}

// RecordCacheError records a cache backend failure
func (m *Metrics) RecordCacheError(backend, op string) {
	CacheErrorsTotal.WithLabelValues(backend, op).Inc()
}

// SetCacheBackend marks backend as the active cache backend
func (m *Metrics) SetCacheBackend(backend string) {
	CacheBackendInfo.Reset()
	CacheBackendInfo.WithLabelValues(backend).Set(1)
}

// SetCacheHealthy records the outcome of the latest cache probe
func (m *Metrics) SetCacheHealthy(healthy bool) {
	if healthy {
		CacheBackendHealthy.Set(1)
		return
	}
	CacheBackendHealthy.Set(0)
}

// RecordGeoLookup records a GeoIP source lookup
func (m *Metrics) RecordGeoLookup(outcome string, duration time.Duration) {
	GeoLookupsTotal.WithLabelValues(outcome).Inc()
	GeoLookupDuration.Observe(duration.Seconds())
}

// RecordRDNSLookup records a reverse DNS resolution
func (m *Metrics) RecordRDNSLookup(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	RDNSLookupsTotal.WithLabelValues(outcome).Inc()
	RDNSLookupDuration.Observe(duration.Seconds())
}

// RecordSchedulerJob records a scheduler job execution
func (m *Metrics) RecordSchedulerJob(jobName string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	SchedulerJobsTotal.WithLabelValues(jobName, status).Inc()
	SchedulerJobDuration.WithLabelValues(jobName).Observe(duration.Seconds())
	LastSchedulerJobTime.WithLabelValues(jobName).SetToCurrentTime()
}

// RecordRateLimit records whether a request passed the rate limiter
func (m *Metrics) RecordRateLimit(allowed bool) {
	if allowed {
		RateLimitRequestsTotal.WithLabelValues("true").Inc()
		return
	}
	RateLimitRequestsTotal.WithLabelValues("false").Inc()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
