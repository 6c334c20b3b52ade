// Package mongodb holds the MongoDB-backed review store, selected with
// REVIEW_STORE=mongodb.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

const reviewCollectionName = "reviews"

type reviewDocument struct {
	ID         string     `bson:"_id"`
	ProductID  string     `bson:"product_id"`
	UserID     string     `bson:"user_id"`
	Rating     int        `bson:"rating"`
	Title      *string    `bson:"title,omitempty"`
	Comment    string     `bson:"comment"`
	Status     string     `bson:"status"`
	Verified   bool       `bson:"verified"`
	Helpful    int        `bson:"helpful"`
	AdminNotes *string    `bson:"admin_notes,omitempty"`
	ReviewedBy *string    `bson:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `bson:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func fromDomain(rv *domain.Review) reviewDocument {
	return reviewDocument{
		ID:         rv.ID,
		ProductID:  rv.ProductID,
		UserID:     rv.UserID,
		Rating:     rv.Rating,
		Title:      rv.Title,
		Comment:    rv.Comment,
		Status:     string(rv.Status),
		Verified:   rv.Verified,
		Helpful:    rv.Helpful,
		AdminNotes: rv.AdminNotes,
		ReviewedBy: rv.ReviewedBy,
		ReviewedAt: rv.ReviewedAt,
		CreatedAt:  rv.CreatedAt,
		UpdatedAt:  rv.UpdatedAt,
	}
}

func (d *reviewDocument) toDomain() domain.Review {
	return domain.Review{
		ID:         d.ID,
		ProductID:  d.ProductID,
		UserID:     d.UserID,
		Rating:     d.Rating,
		Title:      d.Title,
		Comment:    d.Comment,
		Status:     domain.ReviewStatus(d.Status),
		Verified:   d.Verified,
		Helpful:    d.Helpful,
		AdminNotes: d.AdminNotes,
		ReviewedBy: d.ReviewedBy,
		ReviewedAt: d.ReviewedAt,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

// ReviewRepository implements repository.ReviewRepository on a MongoDB
// collection.
type ReviewRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewReviewRepository creates a review repository on db's reviews collection.
func NewReviewRepository(db *mongo.Database, logger *slog.Logger) *ReviewRepository {
	return &ReviewRepository{
		collection: db.Collection(reviewCollectionName),
		logger:     logger.With(slog.String("component", "mongo_review_repository")),
	}
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// EnsureIndexes creates the lookup indexes and the unique (product_id,
// user_id) index that enforces one review per user and product.
func (r *ReviewRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("product_user_unique"),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create review indexes: %w", err)
	}
	r.logger.Info("review indexes ensured")
	return nil
}

// Create inserts a new review document.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	if _, err := r.collection.InsertOne(ctx, fromDomain(rv)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateReview
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	var doc reviewDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	rv := doc.toDomain()
	return &rv, nil
}

// Update replaces the mutable review fields.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	doc := fromDomain(rv)
	update := bson.M{"$set": bson.M{
		"rating":      doc.Rating,
		"title":       doc.Title,
		"comment":     doc.Comment,
		"status":      doc.Status,
		"verified":    doc.Verified,
		"helpful":     doc.Helpful,
		"admin_notes": doc.AdminNotes,
		"reviewed_by": doc.ReviewedBy,
		"reviewed_at": doc.ReviewedAt,
		"updated_at":  doc.UpdatedAt,
	}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": rv.ID}, update)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("review", rv.ID)
	}
	return nil
}

// Delete removes a review by its ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// DeleteByProduct removes every review document of the product.
func (r *ReviewRepository) DeleteByProduct(ctx context.Context, productID string) (int, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"product_id": productID})
	if err != nil {
		return 0, fmt.Errorf("delete reviews by product: %w", err)
	}
	return int(res.DeletedCount), nil
}

// List returns reviews matching filter, newest first, with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	query := bson.M{}
	if filter.ProductID != nil {
		query["product_id"] = *filter.ProductID
	}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	limit := int64(filter.Limit)
	if limit <= 0 {
		limit = 20
	}
	skip := int64(0)
	if filter.Page > 1 {
		skip = int64(filter.Page-1) * limit
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(skip)

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reviewDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode reviews: %w", err)
	}

	reviews := make([]domain.Review, 0, len(docs))
	for i := range docs {
		reviews = append(reviews, docs[i].toDomain())
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	return reviews, int(total), nil
}

// ApprovedStats groups a product's approved reviews by rating.
func (r *ReviewRepository) ApprovedStats(ctx context.Context, productID string) (domain.ReviewStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "product_id", Value: productID},
			{Key: "status", Value: string(domain.ReviewStatusApproved)},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$rating"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.ReviewStats{}, fmt.Errorf("aggregate review stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Rating int `bson:"_id"`
		Count  int `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return domain.ReviewStats{}, fmt.Errorf("decode review stats: %w", err)
	}

	var counts [domain.MaxRating]int
	for _, res := range results {
		if res.Rating >= domain.MinRating && res.Rating <= domain.MaxRating {
			counts[res.Rating-1] = res.Count
		}
	}
	return domain.NewReviewStats(counts), nil
}

// IncrementHelpful bumps the helpful counter of an approved review.
func (r *ReviewRepository) IncrementHelpful(ctx context.Context, id string) (int, error) {
	var doc reviewDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(domain.ReviewStatusApproved)},
		bson.M{"$inc": bson.M{"helpful": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("increment helpful: %w", err)
	}
	return doc.Helpful, nil
}
