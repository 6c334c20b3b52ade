package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a-nagdy/anasityshop/internal/domain"
	pkgkafka "github.com/a-nagdy/anasityshop/pkg/kafka"
)

// Kafka topics for storefront domain events.
const (
	TopicProductCreated       = "anasityshop.product.created"
	TopicProductUpdated       = "anasityshop.product.updated"
	TopicProductDeleted       = "anasityshop.product.deleted"
	TopicProductRatingUpdated = "anasityshop.product.rating_updated"
	TopicReviewCreated        = "anasityshop.review.created"
	TopicReviewModerated      = "anasityshop.review.moderated"
	TopicReviewDeleted        = "anasityshop.review.deleted"
)

const (
	AggregateTypeProduct = "product"
	AggregateTypeReview  = "review"
)

// Source identifies this service on every event.
const Source = "anasityshop-api"

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// ProductData is the payload of product.created and product.updated.
type ProductData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	CategoryID *string `json:"categoryId,omitempty"`
	Status     string  `json:"status"`
	BasePrice  int64   `json:"basePrice"`
	Currency   string  `json:"currency"`
	Stock      int     `json:"stock"`
}

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// RatingUpdatedData is the payload of product.rating_updated.
type RatingUpdatedData struct {
	ProductID   string  `json:"productId"`
	TotalRating float64 `json:"totalRating"`
	ReviewCount int     `json:"reviewCount"`
}

// ReviewData is the payload of the review events.
type ReviewData struct {
	ID             string              `json:"id"`
	ProductID      string              `json:"productId"`
	UserID         string              `json:"userId"`
	Rating         int                 `json:"rating"`
	Status         domain.ReviewStatus `json:"status"`
	PreviousStatus domain.ReviewStatus `json:"previousStatus,omitempty"`
	ReviewedBy     *string             `json:"reviewedBy,omitempty"`
}

// Producer publishes storefront domain events. A Producer with a nil
// Publisher drops every event, which is how the service runs without Kafka.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicProductDeleted, id, AggregateTypeProduct, ProductDeletedData{ID: id})
}

// PublishRatingUpdated publishes a product.rating_updated event.
func (p *Producer) PublishRatingUpdated(ctx context.Context, productID string, summary domain.RatingSummary) error {
	return p.publish(ctx, TopicProductRatingUpdated, productID, AggregateTypeProduct, RatingUpdatedData{
		ProductID:   productID,
		TotalRating: summary.Average,
		ReviewCount: summary.Count,
	})
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, review.ID, AggregateTypeReview, reviewData(review, ""))
}

// PublishReviewModerated publishes a review.moderated event carrying the
// status the review had before moderation.
func (p *Producer) PublishReviewModerated(ctx context.Context, review *domain.Review, previous domain.ReviewStatus) error {
	return p.publish(ctx, TopicReviewModerated, review.ID, AggregateTypeReview, reviewData(review, previous))
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewDeleted, review.ID, AggregateTypeReview, reviewData(review, ""))
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.pub == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(ctx, topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.pub.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:         p.ID,
		Name:       p.Name,
		Slug:       p.Slug,
		CategoryID: p.CategoryID,
		Status:     p.Status,
		BasePrice:  p.BasePrice,
		Currency:   p.Currency,
		Stock:      p.Stock,
	}
}

func reviewData(r *domain.Review, previous domain.ReviewStatus) ReviewData {
	return ReviewData{
		ID:             r.ID,
		ProductID:      r.ProductID,
		UserID:         r.UserID,
		Rating:         r.Rating,
		Status:         r.Status,
		PreviousStatus: previous,
		ReviewedBy:     r.ReviewedBy,
	}
}
