package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChallengesCreated prometheus.Counter
	ChallengesDeleted prometheus.Counter
	Enrollments       *prometheus.CounterVec
	EnrollRejected    *prometheus.CounterVec
	ProofsSubmitted   *prometheus.CounterVec
	WinnersSelected   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ChallengesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streak_challenges_created_total",
			Help: "Challenges created by tenant owners",
		}),
		ChallengesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streak_challenges_deleted_total",
			Help: "Challenges deleted together with their children",
		}),
		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_enrollments_total",
			Help: "New enrollments by source (free, purchase)",
		}, []string{"source"}),
		EnrollRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_enrollments_rejected_total",
			Help: "Enrollment attempts refused by reason (ended, full, paid)",
		}, []string{"reason"}),
		ProofsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streak_proofs_submitted_total",
			Help: "Proofs accepted by proof type",
		}, []string{"proof_type"}),
		WinnersSelected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streak_winner_selections_total",
			Help: "Winner lists replaced",
		}),
	}
}

func (m *Metrics) IncChallengeCreated() {
	m.ChallengesCreated.Inc()
}

func (m *Metrics) IncChallengeDeleted() {
	m.ChallengesDeleted.Inc()
}

func (m *Metrics) IncEnrollment(source string) {
	m.Enrollments.WithLabelValues(source).Inc()
}

func (m *Metrics) IncEnrollRejected(reason string) {
	m.EnrollRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncProof(proofType string) {
	m.ProofsSubmitted.WithLabelValues(proofType).Inc()
}

func (m *Metrics) IncWinnersSelected() {
	m.WinnersSelected.Inc()
}
