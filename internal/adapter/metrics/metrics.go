package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/paywatch/paywatch/internal/domain"
)

// GatewayMetrics holds all Prometheus metrics for the telemetry gateway.
type GatewayMetrics struct {
	EventsTotal      *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	AlertsTotal      *prometheus.CounterVec
	IngestQueueDepth prometheus.Gauge
}

// NewGatewayMetrics initializes and registers the metrics with reg. Pass
// prometheus.DefaultRegisterer in production; tests use a private
// registry so repeated construction doesn't collide.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	factory := promauto.With(reg)
	return &GatewayMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of ingested payment events by outcome.",
		}, []string{"outcome"}), // outcome: settled, payment_required, rejected, error_validation
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Total number of candidates dropped by the fire-and-forget queue.",
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "alert",
			Name:      "deliveries_total",
			Help:      "Total number of alert delivery attempts by status.",
		}, []string{"status"}), // status: sent, error, dropped
		IngestQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "paywatch",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Current number of candidates waiting in the ingest queue.",
		}),
	}
}

// EventAppended implements domain.EventObserver. Counting at the store
// covers every ingress path, the HTTP endpoint and the tracking
// middleware queue alike.
func (m *GatewayMetrics) EventAppended(event domain.PaymentEvent) {
	m.EventsTotal.WithLabelValues(OutcomeLabel(event.Outcome)).Inc()
}

// OutcomeLabel maps an outcome to its metric label value.
func OutcomeLabel(o domain.Outcome) string {
	switch o {
	case domain.OutcomeSettled:
		return "settled"
	case domain.OutcomePaymentRequired:
		return "payment_required"
	case domain.OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
