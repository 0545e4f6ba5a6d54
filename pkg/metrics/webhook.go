package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts provider deliveries by event type and outcome.
type WebhookMetrics struct {
	deliveries        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	signatureFailures prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Verified webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_handle_duration_seconds",
		Help:    "Time spent handling a verified webhook delivery.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	signatureFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Deliveries rejected for a missing or invalid signature.",
	})
	reg.MustRegister(deliveries, duration, signatureFailures)
	return &WebhookMetrics{
		deliveries:        deliveries,
		duration:          duration,
		signatureFailures: signatureFailures,
	}
}

// ObserveDelivery records one handled delivery.
func (w *WebhookMetrics) ObserveDelivery(eventType, outcome string, took time.Duration) {
	if w == nil || w.deliveries == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	w.deliveries.WithLabelValues(eventType, normalizeLabel(outcome)).Inc()
	w.duration.WithLabelValues(eventType).Observe(took.Seconds())
}

// IncSignatureFailure counts a rejected signature.
func (w *WebhookMetrics) IncSignatureFailure() {
	if w == nil || w.signatureFailures == nil {
		return
	}
	w.signatureFailures.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
