package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/event"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

// RatingListener is told about a product whose stored aggregate changed.
// Caches holding product data implement it to drop stale entries.
type RatingListener interface {
	RatingUpdated(ctx context.Context, productID string, summary domain.RatingSummary)
}

// RatingAggregator keeps a product's total_rating and review_count equal to
// the mean and count of its approved reviews. Every recompute reads the full
// approved set; nothing is ever adjusted incrementally.
type RatingAggregator struct {
	products  repository.ProductRepository
	reviews   repository.ReviewRepository
	producer  *event.Producer
	metrics   *RatingMetrics
	listeners []RatingListener
	logger    *slog.Logger
}

// NewRatingAggregator creates a rating aggregator.
func NewRatingAggregator(
	products repository.ProductRepository,
	reviews repository.ReviewRepository,
	producer *event.Producer,
	metrics *RatingMetrics,
	logger *slog.Logger,
) *RatingAggregator {
	return &RatingAggregator{
		products: products,
		reviews:  reviews,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
	}
}

// AddListener registers l to be called after every successful recompute.
// It must be called before the aggregator is used concurrently.
func (a *RatingAggregator) AddListener(l RatingListener) {
	a.listeners = append(a.listeners, l)
}

// Recompute rewrites the product's aggregate from its approved reviews and
// returns the stored value. The approved set is read while the product row
// is locked, so concurrent recomputes of one product cannot store an
// aggregate older than the one already committed.
func (a *RatingAggregator) Recompute(ctx context.Context, productID string) (domain.RatingSummary, error) {
	start := time.Now()

	summary, err := a.products.UpdateRating(ctx, productID, func(ctx context.Context, tx database.DBTX) (domain.RatingSummary, error) {
		reviews := a.reviews
		if b, ok := reviews.(repository.TxBinder); ok && tx != nil {
			reviews = b.WithTx(tx)
		}
		stats, err := reviews.ApprovedStats(ctx, productID)
		if err != nil {
			return domain.RatingSummary{}, err
		}
		return stats.RatingSummary, nil
	})
	a.metrics.observe(err, time.Since(start))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.RatingSummary{}, apperrors.NotFound("product", productID)
		}
		return domain.RatingSummary{}, fmt.Errorf("recompute rating for product %s: %w", productID, err)
	}

	for _, l := range a.listeners {
		l.RatingUpdated(ctx, productID, summary)
	}

	if err := a.producer.PublishRatingUpdated(ctx, productID, summary); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish product.rating_updated event",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}

	a.logger.DebugContext(ctx, "product rating recomputed",
		slog.String("product_id", productID),
		slog.Float64("total_rating", summary.Average),
		slog.Int("review_count", summary.Count),
	)

	return summary, nil
}

// RecomputeAll recomputes every product. A failing product is logged and
// skipped; the returned error is non-nil only when the product ids cannot be
// listed or ctx ends mid-sweep.
func (a *RatingAggregator) RecomputeAll(ctx context.Context) (updated, failed int, err error) {
	ids, err := a.products.ListIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list products for rating sync: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, failed, err
		}
		if _, err := a.Recompute(ctx, id); err != nil {
			failed++
			a.logger.WarnContext(ctx, "rating sync failed for product",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++
	}

	return updated, failed, nil
}

// recomputeAfterWriteTimeout bounds a recompute that no longer follows the
// request's cancellation.
const recomputeAfterWriteTimeout = 10 * time.Second

// recomputeAfterWrite runs Recompute for a review write that has already
// committed. It is detached from ctx's cancellation so a client hanging up
// after the write cannot leave the aggregate stale. Failures are logged and
// never reach the caller.
func (a *RatingAggregator) recomputeAfterWrite(ctx context.Context, productID, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recomputeAfterWriteTimeout)
	defer cancel()

	if _, err := a.Recompute(ctx, productID); err != nil {
		a.logger.ErrorContext(ctx, "rating recompute failed",
			slog.String("product_id", productID),
			slog.String("trigger", reason),
			slog.String("error", err.Error()),
		)
	}
}
