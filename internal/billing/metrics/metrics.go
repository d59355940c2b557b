package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	WebhookEvents     *prometheus.CounterVec
	SignatureFailures prometheus.Counter
	GrossCents        *prometheus.CounterVec
	PlatformFeeCents  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_webhook_events_total",
			Help: "Payment webhook events by outcome (recorded, duplicate, ignored, failed)",
		}, []string{"outcome"}),
		SignatureFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streak_webhook_signature_failures_total",
			Help: "Webhook requests rejected for a missing or bad signature",
		}),
		GrossCents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_revenue_gross_cents_total",
			Help: "Gross payment volume recorded, by currency",
		}, []string{"currency"}),
		PlatformFeeCents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_revenue_platform_fee_cents_total",
			Help: "Platform fees retained, by currency",
		}, []string{"currency"}),
	}
}

func (m *Metrics) IncWebhookEvent(outcome string) {
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSignatureFailure() {
	m.SignatureFailures.Inc()
}

func (m *Metrics) AddRevenue(currency string, gross, fee int64) {
	m.GrossCents.WithLabelValues(currency).Add(float64(gross))
	m.PlatformFeeCents.WithLabelValues(currency).Add(float64(fee))
}
