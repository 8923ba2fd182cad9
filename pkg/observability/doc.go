// Package observability provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the console.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("workspace", name).Info("access granted")
//
// # Prometheus Metrics
//
// Initialize and register metrics once in the composition root:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.IdentityResolutionsTotal.WithLabelValues("api-key").Inc()
//
// # Tracing
//
// InitTracing sets up the global tracer provider with an OTLP gRPC exporter;
// HTTP handlers are instrumented via otelhttp in pkg/api.
package observability
