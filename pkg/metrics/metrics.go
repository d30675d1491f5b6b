// Package metrics exposes the Prometheus collectors scraped at
// /api/metrics: HTTP request metrics, event-bus throughput, and sandbox
// execution metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics covers the REST API surface.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// BusMetrics covers event publish/consume traffic.
type BusMetrics struct {
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
	EventsDeadLettered *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
}

// SandboxMetrics covers ephemeral test-execution runs.
type SandboxMetrics struct {
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	ActiveRuns   prometheus.Gauge
}

func NewHTTPMetrics(namespace string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: namespace + "_http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    namespace + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func NewBusMetrics(namespace string) *BusMetrics {
	return &BusMetrics{
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: namespace + "_events_published_total",
				Help: "Total number of events published to the topic exchange.",
			},
			[]string{"event_type"},
		),
		EventsConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: namespace + "_events_consumed_total",
				Help: "Total number of events consumed, by outcome.",
			},
			[]string{"event_type", "outcome"},
		),
		EventsDeadLettered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: namespace + "_events_dead_lettered_total",
				Help: "Total number of events routed to the dead-letter queue.",
			},
			[]string{"event_type"},
		),
		HandlerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    namespace + "_handler_duration_seconds",
				Help:    "Agent handler execution duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
	}
}

func NewSandboxMetrics(namespace string) *SandboxMetrics {
	return &SandboxMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: namespace + "_sandbox_runs_total",
				Help: "Total number of sandbox executions, by outcome.",
			},
			[]string{"kind", "outcome"},
		),
		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    namespace + "_sandbox_run_duration_seconds",
				Help:    "Sandbox execution duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: namespace + "_sandbox_active_runs",
				Help: "Number of sandbox containers currently running.",
			},
		),
	}
}

func (m *HTTPMetrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *BusMetrics) RecordPublish(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *BusMetrics) RecordConsume(eventType, outcome string, duration time.Duration) {
	m.EventsConsumed.WithLabelValues(eventType, outcome).Inc()
	m.HandlerDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *BusMetrics) RecordDeadLetter(eventType string) {
	m.EventsDeadLettered.WithLabelValues(eventType).Inc()
}

func (m *SandboxMetrics) RecordRun(kind, outcome string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(kind, outcome).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
