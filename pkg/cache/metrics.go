package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus counters shared by every named cache.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates and registers the cache counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Number of cache lookups that found a live entry.",
		}, []string{"cache"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Number of cache lookups that found nothing or an expired entry.",
		}, []string{"cache"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Number of expired entries removed from the cache.",
		}, []string{"cache"}),
	}
	reg.MustRegister(m.hits, m.misses, m.evictions)
	return m
}

func (m *Metrics) hit(name string) {
	if m != nil {
		m.hits.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) miss(name string) {
	if m != nil {
		m.misses.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) evict(name string, n int) {
	if m != nil && n > 0 {
		m.evictions.WithLabelValues(name).Add(float64(n))
	}
}
