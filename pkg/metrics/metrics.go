// Package metrics holds the Prometheus collectors of the annotation pipeline.
// All methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	sessionExpired prometheus.Counter
	spans          prometheus.Counter
	chunks         *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enx_api_requests_total",
			Help: "Translation API requests by operation and outcome",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enx_api_request_duration_seconds",
			Help:    "Translation API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enx_session_expired_total",
			Help: "Sessions invalidated after an unauthorized response",
		}),
		spans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enx_annotation_spans_total",
			Help: "Annotation spans injected into pages",
		}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enx_classify_chunks_total",
			Help: "Classification chunks by outcome",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(m.requests, m.latency, m.sessionExpired, m.spans, m.chunks)
	return m
}

// ObserveRequest records one API call.
func (m *Metrics) ObserveRequest(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SessionExpired counts one credential invalidation.
func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.sessionExpired.Inc()
}

// Spans counts injected annotation spans.
func (m *Metrics) Spans(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.spans.Add(float64(n))
}

// Chunk counts one classification chunk by outcome.
func (m *Metrics) Chunk(outcome string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(outcome).Inc()
}
