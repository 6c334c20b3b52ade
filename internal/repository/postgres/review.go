package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

const reviewColumns = `id, product_id, user_id, rating, title, comment, status, verified, helpful,
	admin_notes, reviewed_by, reviewed_at, created_at, updated_at`

// ReviewRepository implements review persistence operations using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

var (
	_ repository.ReviewRepository = (*ReviewRepository)(nil)
	_ repository.TxBinder         = (*ReviewRepository)(nil)
)

// WithTx returns a copy of the repository that runs its queries on tx.
func (r *ReviewRepository) WithTx(tx database.DBTX) repository.ReviewRepository {
	return &ReviewRepository{pool: tx}
}

// Create inserts a new review. The (product_id, user_id) unique index turns a
// second review by the same user into domain.ErrDuplicateReview.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, title, comment, status, verified, helpful,
			admin_notes, reviewed_by, reviewed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		rv.ID,
		rv.ProductID,
		rv.UserID,
		rv.Rating,
		rv.Title,
		rv.Comment,
		rv.Status,
		rv.Verified,
		rv.Helpful,
		rv.AdminNotes,
		rv.ReviewedBy,
		rv.ReviewedAt,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReview
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	var rv domain.Review

	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	if err := r.pool.QueryRow(ctx, query, id).Scan(reviewDest(&rv)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	return &rv, nil
}

// Update stores the mutable review fields: content, moderation state and
// the helpful counter.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, title = $2, comment = $3, status = $4, verified = $5, helpful = $6,
		    admin_notes = $7, reviewed_by = $8, reviewed_at = $9, updated_at = $10
		WHERE id = $11`

	ct, err := r.pool.Exec(ctx, query,
		rv.Rating,
		rv.Title,
		rv.Comment,
		rv.Status,
		rv.Verified,
		rv.Helpful,
		rv.AdminNotes,
		rv.ReviewedBy,
		rv.ReviewedAt,
		rv.UpdatedAt,
		rv.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", rv.ID)
	}

	return nil
}

// Delete removes a review by its ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

// DeleteByProduct removes the product's reviews. The foreign key already
// cascades on product delete, so after DeleteProduct this is normally zero.
func (r *ReviewRepository) DeleteByProduct(ctx context.Context, productID string) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("delete reviews by product: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// List returns reviews matching filter, newest first, with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ProductID != nil {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argIndex))
		args = append(args, *filter.ProductID)
		argIndex++
	}

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
		       count(*) OVER() AS total_count
		FROM reviews
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, argIndex, argIndex+1,
	)

	limit, offset := limitOffset(filter.Page, filter.Limit)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    = []domain.Review{}
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(append(reviewDest(&rv), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, totalCount, nil
}

// ApprovedStats counts approved reviews per star value for a product.
func (r *ReviewRepository) ApprovedStats(ctx context.Context, productID string) (domain.ReviewStats, error) {
	query := `
		SELECT rating, count(*)
		FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		GROUP BY rating`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return domain.ReviewStats{}, fmt.Errorf("review stats: %w", err)
	}
	defer rows.Close()

	var counts [domain.MaxRating]int
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return domain.ReviewStats{}, fmt.Errorf("scan review stats: %w", err)
		}
		if rating >= domain.MinRating && rating <= domain.MaxRating {
			counts[rating-1] = n
		}
	}

	if err := rows.Err(); err != nil {
		return domain.ReviewStats{}, fmt.Errorf("iterate review stats: %w", err)
	}

	return domain.NewReviewStats(counts), nil
}

// IncrementHelpful atomically bumps the helpful counter of an approved review.
func (r *ReviewRepository) IncrementHelpful(ctx context.Context, id string) (int, error) {
	var helpful int
	err := r.pool.QueryRow(ctx,
		`UPDATE reviews SET helpful = helpful + 1 WHERE id = $1 AND status = 'approved' RETURNING helpful`,
		id,
	).Scan(&helpful)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("increment helpful: %w", err)
	}
	return helpful, nil
}

func reviewDest(rv *domain.Review) []any {
	return []any{
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.Rating,
		&rv.Title,
		&rv.Comment,
		&rv.Status,
		&rv.Verified,
		&rv.Helpful,
		&rv.AdminNotes,
		&rv.ReviewedBy,
		&rv.ReviewedAt,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
}
