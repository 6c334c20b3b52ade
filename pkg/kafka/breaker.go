package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig holds circuit breaker settings for event publishing.
type BreakerConfig struct {
	Name string

	// MaxRequests is how many publishes are let through while half-open.
	MaxRequests uint32

	// Interval clears the failure counts while closed. 0 never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the settings used by the API server.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
}

// BreakerMetrics exposes breaker state and rejected publishes.
// A nil *BreakerMetrics records nothing.
type BreakerMetrics struct {
	state    *prometheus.GaugeVec
	rejected *prometheus.CounterVec
}

// NewBreakerMetrics creates the breaker collectors and registers them with reg.
func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuit_breaker_rejected_total",
			Help: "Publishes rejected because the circuit breaker was open.",
		}, []string{"name"}),
	}
	reg.MustRegister(m.state, m.rejected)
	return m
}

func (m *BreakerMetrics) setState(name string, s gobreaker.State) {
	if m != nil {
		m.state.WithLabelValues(name).Set(stateToFloat(s))
	}
}

func (m *BreakerMetrics) reject(name string) {
	if m != nil {
		m.rejected.WithLabelValues(name).Inc()
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerPublisher guards a publisher with a circuit breaker so that an
// unreachable broker fails publishes fast instead of stalling every request
// for the full write timeout.
type BreakerPublisher struct {
	next    eventPublisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *BreakerMetrics
	logger  *slog.Logger
	name    string
}

// NewBreakerPublisher wraps next with a circuit breaker.
func NewBreakerPublisher(next eventPublisher, cfg BreakerConfig, metrics *BreakerMetrics, logger *slog.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// A caller giving up is not a broker failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.setState(name, to)
		},
	}

	metrics.setState(cfg.Name, gobreaker.StateClosed)

	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		metrics: metrics,
		logger:  logger,
		name:    cfg.Name,
	}
}

// Publish forwards event to the wrapped publisher unless the breaker is open.
func (b *BreakerPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, topic, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.metrics.reject(b.name)
		b.logger.DebugContext(ctx, "event dropped, circuit open",
			slog.String("breaker", b.name),
			slog.String("topic", topic),
		)
	}
	return err
}

// State returns the current breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}
