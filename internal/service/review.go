package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/event"
	"github.com/a-nagdy/anasityshop/internal/repository"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/pagination"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

// Viewer is the caller on whose behalf a service method runs. The zero value
// is an anonymous visitor.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// CreateReviewInput holds the fields of a new review.
type CreateReviewInput struct {
	ProductID string  `json:"productId" validate:"required"`
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Comment   string  `json:"comment" validate:"required,min=10,max=1000"`
	Title     *string `json:"title" validate:"omitempty,max=100"`
}

// ModerateReviewInput holds an admin's moderation decision.
type ModerateReviewInput struct {
	Status     string  `json:"status" validate:"required,oneof=pending approved rejected"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=500"`
}

// ReviewQuery selects reviews for listing. Status is only honored for admins.
type ReviewQuery struct {
	ProductID *string
	UserID    *string
	Status    string
	Page      int
	Limit     int
	StatsOnly bool
}

// ReviewListResult is either a page of reviews or, for stats-only queries,
// the product's approved review statistics.
type ReviewListResult struct {
	Reviews []domain.Review
	Total   int
	Page    int
	Limit   int
	Stats   *domain.ReviewStats
}

// ReviewService implements review submission, listing and moderation.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	ratings  *RatingAggregator
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	ratings *RatingAggregator,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		ratings:  ratings,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview stores a pending review by viewer for a product.
func (s *ReviewService) CreateReview(ctx context.Context, viewer Viewer, input CreateReviewInput) (*domain.Review, error) {
	if viewer.UserID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	input.Comment = strings.TrimSpace(input.Comment)
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		input.Title = &title
		if title == "" {
			input.Title = nil
		}
	}
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	if _, err := s.products.GetByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", input.ProductID)
		}
		return nil, fmt.Errorf("get product for review: %w", err)
	}

	now := s.now()
	review := &domain.Review{
		ID:        uuid.New().String(),
		ProductID: input.ProductID,
		UserID:    viewer.UserID,
		Rating:    input.Rating,
		Title:     input.Title,
		Comment:   input.Comment,
		Status:    domain.ReviewStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, domain.ErrDuplicateReview) {
			return nil, apperrors.BadRequest("DUPLICATE_REVIEW", "you have already reviewed this product")
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	if review.IsApproved() {
		s.ratings.recomputeAfterWrite(ctx, review.ProductID, "create")
	}

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("rating", review.Rating),
	)

	return review, nil
}

// ListReviews returns reviews visible to viewer. Anyone other than an admin
// sees approved reviews only, whatever status was asked for.
func (s *ReviewService) ListReviews(ctx context.Context, viewer Viewer, q ReviewQuery) (*ReviewListResult, error) {
	if q.StatsOnly {
		if q.ProductID == nil || *q.ProductID == "" {
			return nil, apperrors.InvalidInput("productId is required for statsOnly")
		}
		stats, err := s.reviews.ApprovedStats(ctx, *q.ProductID)
		if err != nil {
			return nil, fmt.Errorf("review stats: %w", err)
		}
		return &ReviewListResult{Stats: &stats}, nil
	}

	params := pagination.Params{Page: q.Page, Limit: q.Limit}
	params.Normalize()

	filter := domain.ReviewFilter{
		ProductID: q.ProductID,
		UserID:    q.UserID,
		Page:      params.Page,
		Limit:     params.Limit,
	}

	approved := domain.ReviewStatusApproved
	switch {
	case !viewer.IsAdmin:
		filter.Status = &approved
	case q.Status != "":
		status, ok := domain.ParseReviewStatus(q.Status)
		if !ok {
			return nil, apperrors.InvalidInput("status must be one of pending, approved, rejected")
		}
		filter.Status = &status
	}

	reviews, total, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return &ReviewListResult{
		Reviews: reviews,
		Total:   total,
		Page:    params.Page,
		Limit:   params.Limit,
	}, nil
}

// ModerateReview sets a review's status on behalf of an admin and then
// recomputes the product aggregate, whatever the old and new status were.
func (s *ReviewService) ModerateReview(ctx context.Context, viewer Viewer, id string, input ModerateReviewInput) (*domain.Review, error) {
	if !viewer.IsAdmin {
		return nil, apperrors.Forbidden("admin access required")
	}
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	status, ok := domain.ParseReviewStatus(input.Status)
	if !ok {
		return nil, apperrors.InvalidInput("status must be one of pending, approved, rejected")
	}

	review, err := s.getReview(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := review.Status
	if err := review.Moderate(status, viewer.UserID, input.AdminNotes, s.now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, apperrors.BadRequest("INVALID_TRANSITION",
				fmt.Sprintf("cannot move review from %s to %s", previous, status))
		}
		return nil, err
	}

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	s.ratings.recomputeAfterWrite(ctx, review.ProductID, "moderate")

	if err := s.producer.PublishReviewModerated(ctx, review, previous); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.moderated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", review.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(status)),
		slog.String("moderator", viewer.UserID),
	)

	return review, nil
}

// DeleteReview removes a review. The aggregate is recomputed only when the
// review was approved, since no other review counts toward it.
func (s *ReviewService) DeleteReview(ctx context.Context, viewer Viewer, id string) error {
	if !viewer.IsAdmin {
		return apperrors.Forbidden("admin access required")
	}

	review, err := s.getReview(ctx, id)
	if err != nil {
		return err
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if review.IsApproved() {
		s.ratings.recomputeAfterWrite(ctx, review.ProductID, "delete")
	}

	if err := s.producer.PublishReviewDeleted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", id),
		slog.String("product_id", review.ProductID),
	)

	return nil
}

// MarkHelpful increments the helpful counter of an approved review.
func (s *ReviewService) MarkHelpful(ctx context.Context, viewer Viewer, id string) (int, error) {
	if viewer.UserID == "" {
		return 0, apperrors.Unauthorized("authentication required")
	}
	n, err := s.reviews.IncrementHelpful(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("mark review helpful: %w", err)
	}
	return n, nil
}

func (s *ReviewService) getReview(ctx context.Context, id string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}
