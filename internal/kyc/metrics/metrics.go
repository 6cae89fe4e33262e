package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the KYC module.
type Metrics struct {
	// Registrations accepted into the oracle
	Registrations prometheus.Counter

	// Status transitions by prior and new status
	StatusTransitions *prometheus.CounterVec

	// Current number of users in verified status
	VerifiedUsers prometheus.Gauge

	// Eligibility check results by outcome
	EligibilityChecks *prometheus.CounterVec
}

// New creates a Metrics instance with all KYC module metrics registered.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_kyc_registrations_total",
			Help: "Total number of KYC user registrations",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_kyc_status_transitions_total",
			Help: "Total KYC status transitions by prior and new status",
		}, []string{"from", "to"}),
		VerifiedUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custos_kyc_verified_users",
			Help: "Current number of users in verified status",
		}),
		EligibilityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_kyc_eligibility_checks_total",
			Help: "Total eligibility checks by outcome",
		}, []string{"outcome"}), // outcome: "eligible", "ineligible"
	}
}

// IncrementRegistration records an accepted registration.
func (m *Metrics) IncrementRegistration() {
	if m != nil {
		m.Registrations.Inc()
	}
}

// IncrementStatusTransition records a status update.
func (m *Metrics) IncrementStatusTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

// SetVerifiedUsers publishes the verified population counter.
func (m *Metrics) SetVerifiedUsers(count uint64) {
	if m != nil {
		m.VerifiedUsers.Set(float64(count))
	}
}

// IncrementEligibilityCheck records an eligibility evaluation result.
func (m *Metrics) IncrementEligibilityCheck(eligible bool) {
	if m != nil {
		outcome := "ineligible"
		if eligible {
			outcome = "eligible"
		}
		m.EligibilityChecks.WithLabelValues(outcome).Inc()
	}
}
