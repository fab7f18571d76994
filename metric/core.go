// Package metric provides Prometheus metrics for the TuGranjita services:
// request-level counters and latency histograms plus upstream and store
// instrumentation for the federation and catalog layers.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not domain-specific)
type Metrics struct {
	// HTTP surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Record store
	StoreReloads *prometheus.CounterVec

	// Federation upstream calls
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tugranjita",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"service", "route", "method", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tugranjita",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "route"},
		),

		StoreReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tugranjita",
				Subsystem: "store",
				Name:      "reloads_total",
				Help:      "Total number of backing-store reloads",
			},
			[]string{"service", "collection", "status"},
		),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tugranjita",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of federation upstream requests",
			},
			[]string{"service", "target", "status"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tugranjita",
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Federation upstream request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "target"},
		),
	}
}

// collectors returns every metric for bulk registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RequestsTotal,
		m.RequestDuration,
		m.StoreReloads,
		m.UpstreamRequests,
		m.UpstreamDuration,
	}
}
