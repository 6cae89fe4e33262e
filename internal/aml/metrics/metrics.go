package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the AML module.
type Metrics struct {
	// Authority lifecycle and blacklist mutations by action
	AuthorityActions *prometheus.CounterVec

	// Blacklist screening results
	BlacklistChecks *prometheus.CounterVec

	// Blacklist cache effectiveness
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates a Metrics instance with all AML module metrics registered.
func New() *Metrics {
	return &Metrics{
		AuthorityActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_aml_authority_actions_total",
			Help: "Total AML authority and blacklist mutations by action",
		}, []string{"action"}), // action: "register", "deactivate", "update_powers", "blacklist", "unblacklist"

		BlacklistChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_aml_blacklist_checks_total",
			Help: "Total blacklist screening results",
		}, []string{"outcome"}), // outcome: "listed", "clear"

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_aml_blacklist_cache_hits_total",
			Help: "Blacklist screenings answered from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_aml_blacklist_cache_misses_total",
			Help: "Blacklist screenings that fell through to the store",
		}),
	}
}

// IncrementAction records an authority or blacklist mutation.
func (m *Metrics) IncrementAction(action string) {
	if m != nil {
		m.AuthorityActions.WithLabelValues(action).Inc()
	}
}

// IncrementCheck records a screening outcome.
func (m *Metrics) IncrementCheck(listed bool) {
	if m != nil {
		outcome := "clear"
		if listed {
			outcome = "listed"
		}
		m.BlacklistChecks.WithLabelValues(outcome).Inc()
	}
}

// IncrementCacheHit records a cache-served screening.
func (m *Metrics) IncrementCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncrementCacheMiss records a screening served by the store.
func (m *Metrics) IncrementCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
