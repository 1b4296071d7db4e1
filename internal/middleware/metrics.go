package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Finalize outcomes recorded by RecordFinalize.
const (
	FinalizeOutcomeFinalized        = "finalized"
	FinalizeOutcomeAlreadyFinalized = "already_finalized"
	FinalizeOutcomeRejected         = "rejected"
	FinalizeOutcomeConflict         = "conflict"
	FinalizeOutcomeError            = "error"
)

// Metrics holds the Prometheus collectors for the HTTP layer and the
// inspection lifecycle.
//
// Collectors are registered on the registerer passed to NewMetrics, so tests
// can use a fresh prometheus.NewRegistry() per server.
type Metrics struct {
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	httpRequestsInFlight  prometheus.Gauge
	httpRequestSizeBytes  *prometheus.HistogramVec
	httpResponseSizeBytes *prometheus.HistogramVec

	finalizeTotal      *prometheus.CounterVec
	itemMutationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
//
// Usage in the server:
//
//	m := middleware.NewMetrics(reg)
//	e.Use(m.Middleware())
//	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		httpRequestSizeBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100B to 10GB
			},
			[]string{"method", "path"},
		),
		httpResponseSizeBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		finalizeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkmate_finalize_total",
				Help: "Finalize attempts by outcome",
			},
			[]string{"outcome"},
		),
		itemMutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkmate_item_mutations_total",
				Help: "Accepted item mutations by kind",
			},
			[]string{"kind"},
		),
	}
}

// Middleware records request count, latency and sizes per route.
// The /metrics route itself is skipped.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			m.httpRequestsInFlight.Inc()
			defer m.httpRequestsInFlight.Dec()

			requestSize := float64(c.Request().ContentLength)
			if requestSize < 0 {
				requestSize = 0
			}

			err := next(c)

			// Write the error response now so the recorded status is final.
			// The error handler skips committed responses.
			if err != nil {
				c.Error(err)
			}

			method := c.Request().Method
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			m.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			m.httpRequestSizeBytes.WithLabelValues(method, path).Observe(requestSize)
			m.httpResponseSizeBytes.WithLabelValues(method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordFinalize counts one finalize attempt.
func (m *Metrics) RecordFinalize(outcome string) {
	m.finalizeTotal.WithLabelValues(outcome).Inc()
}

// RecordItemMutation counts one accepted item mutation (status, note,
// photo_ref_add, photo_ref_remove, photo_upload).
func (m *Metrics) RecordItemMutation(kind string) {
	m.itemMutationsTotal.WithLabelValues(kind).Inc()
}
