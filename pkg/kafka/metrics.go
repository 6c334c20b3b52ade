package kafka

import "github.com/prometheus/client_golang/prometheus"

// ProducerMetrics counts published and failed events per topic.
// A nil *ProducerMetrics records nothing.
type ProducerMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewProducerMetrics creates the counters and registers them with reg.
func NewProducerMetrics(reg prometheus.Registerer) *ProducerMetrics {
	m := &ProducerMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_events_published_total",
			Help: "Events successfully written to Kafka.",
		}, []string{"topic", "event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_events_failed_total",
			Help: "Events that could not be written to Kafka.",
		}, []string{"topic", "event_type"}),
	}
	reg.MustRegister(m.published, m.failed)
	return m
}

func (m *ProducerMetrics) observe(topic, eventType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failed.WithLabelValues(topic, eventType).Inc()
		return
	}
	m.published.WithLabelValues(topic, eventType).Inc()
}
