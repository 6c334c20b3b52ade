package service

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler periodically re-syncs every product's rating aggregate. It
// repairs aggregates left stale by a recompute that failed after its review
// write had committed.
type Reconciler struct {
	ratings  *RatingAggregator
	interval time.Duration
	logger   *slog.Logger
}

// NewReconciler creates a reconciler. An interval of zero or less disables it.
func NewReconciler(ratings *RatingAggregator, interval time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{ratings: ratings, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("rating reconciler disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("rating reconciler started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rating reconciler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	start := time.Now()
	updated, failed, err := r.ratings.RecomputeAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "rating sync aborted", slog.String("error", err.Error()))
		}
		return
	}
	r.logger.InfoContext(ctx, "rating sync completed",
		slog.Int("updated", updated),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
}
