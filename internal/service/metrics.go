package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RatingMetrics counts aggregate recomputes. A nil *RatingMetrics records
// nothing.
type RatingMetrics struct {
	recomputes *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewRatingMetrics creates and registers the rating metrics with reg.
func NewRatingMetrics(reg prometheus.Registerer) *RatingMetrics {
	m := &RatingMetrics{
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rating_recomputes_total",
			Help: "Number of product rating recomputes by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rating_recompute_duration_seconds",
			Help:    "Time spent recomputing one product rating.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.recomputes, m.duration)
	return m
}

func (m *RatingMetrics) observe(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.recomputes.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}
