// Package telemetry provides the proxy's observability surface:
// Prometheus counters/gauges and OpenTelemetry tracing spans, fanned
// out from a single proxy.Observer implementation.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the proxy records.
type Metrics struct {
	MessagesTotal  *prometheus.CounterVec
	HeldTotal      prometheus.Counter
	HeldDuration   prometheus.Histogram
	ActiveSessions prometheus.Gauge
	ReplaysTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers every metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		MessagesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcprelay",
				Name:      "messages_total",
				Help:      "Total number of JSON-RPC messages observed by the pipeline",
			},
			[]string{"direction", "kind"}, // direction=client_to_server/server_to_client, kind=request/notification/response/error_response
		),
		HeldTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcprelay",
				Name:      "held_total",
				Help:      "Total number of messages paused for operator review",
			},
		),
		HeldDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mcprelay",
				Name:      "held_duration_seconds",
				Help:      "Time a message spent held before the operator released it",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcprelay",
				Name:      "active_sessions",
				Help:      "Number of proxy sessions currently running",
			},
		),
		ReplaysTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcprelay",
				Name:      "replays_total",
				Help:      "Total number of replay attempts",
			},
			[]string{"outcome"}, // outcome=ok/timeout/error
		),
	}
}
