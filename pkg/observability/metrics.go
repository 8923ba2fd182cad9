package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Identity resolution metrics
	IdentityResolutionsTotal *prometheus.CounterVec

	// Workspace authorization metrics
	AccessChecksTotal  *prometheus.CounterVec
	AccessCheckLatency prometheus.Histogram

	// Authorization cache metrics
	AuthzCacheHitsTotal      prometheus.Counter
	AuthzCacheMissesTotal    prometheus.Counter
	AuthzCacheEvictionsTotal *prometheus.CounterVec
	AuthzCacheSize           prometheus.Gauge

	// API key metrics
	APIKeyLookupsTotal *prometheus.CounterVec
	APIKeysActive      prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		IdentityResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_identity_resolutions_total",
				Help: "Identity resolutions by credential provider",
			},
			[]string{"provider"},
		),

		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_workspace_access_checks_total",
				Help: "Workspace access checks by outcome",
			},
			[]string{"outcome"},
		),
		AccessCheckLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "console_workspace_access_check_duration_seconds",
				Help:    "Workspace access check duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),

		AuthzCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "console_authz_cache_hits_total",
				Help: "Authorization cache hits",
			},
		),
		AuthzCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "console_authz_cache_misses_total",
				Help: "Authorization cache misses, including TTL expiries",
			},
		),
		AuthzCacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_authz_cache_evictions_total",
				Help: "Authorization cache evictions by reason",
			},
			[]string{"reason"},
		),
		AuthzCacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_authz_cache_entries",
				Help: "Current number of authorization cache entries",
			},
		),

		APIKeyLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_apikey_lookups_total",
				Help: "API key lookups by outcome",
			},
			[]string{"outcome"},
		),
		APIKeysActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_apikeys_active",
				Help: "Number of active API keys",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IdentityResolutionsTotal,
		m.AccessChecksTotal,
		m.AccessCheckLatency,
		m.AuthzCacheHitsTotal,
		m.AuthzCacheMissesTotal,
		m.AuthzCacheEvictionsTotal,
		m.AuthzCacheSize,
		m.APIKeyLookupsTotal,
		m.APIKeysActive,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the /metrics endpoint handler for the registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
