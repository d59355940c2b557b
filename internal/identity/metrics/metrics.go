package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Resolutions        *prometheus.CounterVec
	TenantsCreated     prometheus.Counter
	IdentityReassigned prometheus.Counter
	ResolveDuration    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_identity_resolutions_total",
			Help: "Identity resolutions by outcome (owner, member, unauthenticated, unresolved, error)",
		}, []string{"outcome"}),
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streak_tenants_created_total",
			Help: "Tenants created on first sight of a canonical key",
		}),
		IdentityReassigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streak_identity_reassigned_total",
			Help: "Identities whose tenant or role changed",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streak_identity_resolve_duration_seconds",
			Help:    "Duration of identity resolution (runs on every tenant-scoped request)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTenantCreated() {
	m.TenantsCreated.Inc()
}

func (m *Metrics) IncIdentityReassigned() {
	m.IdentityReassigned.Inc()
}

func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
