package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	batchesProcessedTotal    *prometheus.CounterVec
	batchDuration            prometheus.Histogram
	candidateOutcomesTotal   *prometheus.CounterVec
	submitDuration           prometheus.Histogram
	sessionOpenFailuresTotal *prometheus.CounterVec
	batchesReclaimedTotal    prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "markmate",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "markmate",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "markmate",
				Name:      "batches_processed_total",
				Help:      "Total number of batches driven to a terminal status.",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "markmate",
				Name:      "batch_duration_seconds",
				Help:      "Wall-clock duration of one batch pass in seconds.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		candidateOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "markmate",
				Name:      "candidate_outcomes_total",
				Help:      "Total number of candidate submission outcomes by kind.",
			},
			[]string{"outcome"},
		),
		submitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "markmate",
				Name:      "submit_duration_seconds",
				Help:      "Portal submission duration per candidate in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		sessionOpenFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "markmate",
				Name:      "session_open_failures_total",
				Help:      "Total number of portal session open failures by reason.",
			},
			[]string{"reason"},
		),
		batchesReclaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "markmate",
				Name:      "batches_reclaimed_total",
				Help:      "Total number of stuck processing batches swept to failed.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesProcessedTotal,
		m.batchDuration,
		m.candidateOutcomesTotal,
		m.submitDuration,
		m.sessionOpenFailuresTotal,
		m.batchesReclaimedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchProcessed(status string) {
	if m == nil {
		return
	}
	m.batchesProcessedTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveBatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncCandidateOutcome(outcome string) {
	if m == nil {
		return
	}
	m.candidateOutcomesTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveSubmitDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.submitDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncSessionOpenFailure(reason string) {
	if m == nil {
		return
	}
	m.sessionOpenFailuresTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncBatchReclaimed() {
	if m == nil {
		return
	}
	m.batchesReclaimedTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func nonNegativeSeconds(duration time.Duration) float64 {
	seconds := duration.Seconds()
	if seconds < 0 {
		return 0
	}
	return seconds
}
