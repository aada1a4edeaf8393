package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics tracks the read-only HTTP query surface.
type QueryMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	queryMetricsOnce sync.Once
	queryRegistry    *QueryMetrics
)

// Query returns the lazily-initialised query metrics registry.
func Query() *QueryMetrics {
	queryMetricsOnce.Do(func() {
		queryRegistry = &QueryMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "query",
				Name:      "requests_total",
				Help:      "Total query requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "query",
				Name:      "errors_total",
				Help:      "Total query errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lending",
				Subsystem: "query",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for query handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			queryRegistry.requests,
			queryRegistry.errors,
			queryRegistry.latency,
		)
	})
	return queryRegistry
}

// Observe records the outcome of a query. The status code should be the HTTP
// status that was ultimately written to the response writer.
func (m *QueryMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}
