package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the token lifecycle module.
type Metrics struct {
	// Operations by name and outcome
	Operations *prometheus.CounterVec

	// Denied operations by name and the precondition that failed
	Denials *prometheus.CounterVec

	// Transfer screenings by outcome
	TransferChecks *prometheus.CounterVec

	// Regulatory seizures executed
	Seizures prometheus.Counter

	// Unix time of the most recent reserve attestation
	ReserveUpdateTime prometheus.Gauge
}

// New creates a Metrics instance with all token module metrics registered.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_token_operations_total",
			Help: "Total token lifecycle operations by name and outcome",
		}, []string{"op", "outcome"}), // outcome: "ok", "denied", "error"
		Denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_token_denials_total",
			Help: "Denied token operations by name and failed precondition",
		}, []string{"op", "reason"}),
		TransferChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_token_transfer_checks_total",
			Help: "Transfer screenings by outcome",
		}, []string{"outcome"}), // outcome: "allowed", "denied"
		Seizures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_token_seizures_total",
			Help: "Total regulatory seizures executed",
		}),
		ReserveUpdateTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custos_token_reserve_update_timestamp_seconds",
			Help: "Unix time of the most recent reserve attestation",
		}),
	}
}

// IncrementOperation records one finished operation.
func (m *Metrics) IncrementOperation(op, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(op, outcome).Inc()
	}
}

// IncrementDenial records a denied operation and the precondition that
// stopped it.
func (m *Metrics) IncrementDenial(op, reason string) {
	if m != nil {
		m.Operations.WithLabelValues(op, "denied").Inc()
		m.Denials.WithLabelValues(op, reason).Inc()
	}
}

// IncrementTransferCheck records a transfer screening result.
func (m *Metrics) IncrementTransferCheck(allowed bool) {
	if m != nil {
		outcome := "denied"
		if allowed {
			outcome = "allowed"
		}
		m.TransferChecks.WithLabelValues(outcome).Inc()
	}
}

// IncrementSeizure records an executed seizure.
func (m *Metrics) IncrementSeizure() {
	if m != nil {
		m.Seizures.Inc()
	}
}

// SetReserveUpdateTime publishes the attestation timestamp.
func (m *Metrics) SetReserveUpdateTime(at time.Time) {
	if m != nil {
		m.ReserveUpdateTime.Set(float64(at.Unix()))
	}
}
