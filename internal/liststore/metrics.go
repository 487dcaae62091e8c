package liststore

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments list stores. A nil *Metrics records nothing.
type Metrics struct {
	fetches    *prometheus.CounterVec
	hits       *prometheus.CounterVec
	joins      *prometheus.CounterVec
	coalesces  *prometheus.CounterVec
	staleReads *prometheus.CounterVec
	drops      *prometheus.CounterVec
}

// NewMetrics creates list store metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm_console",
			Subsystem: "liststore",
			Name:      "fetches_total",
			Help:      "Page fetches by resource and outcome.",
		}, []string{"resource", "outcome"}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm_console",
			Subsystem: "liststore",
			Name:      "cache_hits_total",
			Help:      "Loads served from cache without fetching.",
		}, []string{"resource"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm_console",
			Subsystem: "liststore",
			Name:      "joined_loads_total",
			Help:      "Loads that waited on an in-flight fetch instead of issuing one.",
		}, []string{"resource"}),
		coalesces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm_console",
			Subsystem: "liststore",
			Name:      "coalesced_refreshes_total",
			Help:      "Refreshes folded into a pending follow-up fetch.",
		}, []string{"resource"}),
		staleReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm_console",
			Subsystem: "liststore",
			Name:      "stale_served_total",
			Help:      "Failed fetches answered with the previously fetched page.",
		}, []string{"resource"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm_console",
			Subsystem: "liststore",
			Name:      "dropped_responses_total",
			Help:      "Responses discarded because a later-issued fetch was already applied.",
		}, []string{"resource"}),
	}

	if reg != nil {
		reg.MustRegister(m.fetches, m.hits, m.joins, m.coalesces, m.staleReads, m.drops)
	}
	return m
}

func (m *Metrics) fetched(resource, outcome string) {
	if m != nil {
		m.fetches.WithLabelValues(resource, outcome).Inc()
	}
}

func (m *Metrics) hit(resource string) {
	if m != nil {
		m.hits.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) joined(resource string) {
	if m != nil {
		m.joins.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) coalesced(resource string) {
	if m != nil {
		m.coalesces.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) staleServed(resource string) {
	if m != nil {
		m.staleReads.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) dropped(resource string) {
	if m != nil {
		m.drops.WithLabelValues(resource).Inc()
	}
}
