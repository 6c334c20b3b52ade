package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

const productColumns = `id, name, slug, description, category_id, status, base_price, currency,
	stock, images, metadata, total_rating, review_count, created_at, updated_at`

// productOrder maps listing sort keys to ORDER BY clauses. The id tiebreak
// keeps pages stable.
var productOrder = map[string]string{
	"":                      "created_at DESC, id",
	domain.SortByNewest:    "created_at DESC, id",
	domain.SortByPriceAsc:  "base_price ASC, id",
	domain.SortByPriceDesc: "base_price DESC, id",
	domain.SortByNameAsc:   "name ASC, id",
	domain.SortByRating:    "total_rating DESC, review_count DESC, id",
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// Create inserts a new product. Rating columns always start at zero.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.TotalRating, p.ReviewCount = 0, 0

	query := `
		INSERT INTO products (id, name, slug, description, category_id, status, base_price, currency,
			stock, images, metadata, total_rating, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, $12, $13)`

	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Description,
		p.CategoryID,
		p.Status,
		p.BasePrice,
		p.Currency,
		p.Stock,
		p.Images,
		metadataJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return r.scanProduct(ctx, query, id)
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE slug = $1`, productColumns)
	return r.scanProduct(ctx, query, slug)
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.IDs != nil {
		conditions = append(conditions, fmt.Sprintf("id::text = ANY($%d)", argIndex))
		args = append(args, filter.IDs)
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("base_price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("base_price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("total_rating >= $%d", argIndex))
		args = append(args, *filter.MinRating)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := productOrder[filter.SortBy]
	if !ok {
		orderBy = productOrder[""]
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, orderBy, argIndex, argIndex+1,
	)

	limit, offset := limitOffset(filter.Page, filter.Limit)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)

	for rows.Next() {
		var (
			p            domain.Product
			metadataJSON []byte
		)

		dest := append(productDest(&p, &metadataJSON), &totalCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		if err := decodeMetadata(metadataJSON, &p); err != nil {
			return nil, 0, err
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, totalCount, nil
}

// Update modifies the editable columns of a product. total_rating and
// review_count are not touched here; only UpdateRating writes them.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, category_id = $4, status = $5,
		    base_price = $6, currency = $7, stock = $8, images = $9, metadata = $10, updated_at = $11
		WHERE id = $12`

	ct, err := r.pool.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.CategoryID,
		p.Status,
		p.BasePrice,
		p.Currency,
		p.Stock,
		p.Images,
		metadataJSON,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// UpdateRating serializes rating recomputation per product: the row lock is
// held while compute reads the approved reviews, so two concurrent writers
// cannot store an aggregate computed from a stale review set. compute gets
// the transaction so the read does not need a second pooled connection.
func (r *ProductRepository) UpdateRating(ctx context.Context, productID string, compute repository.RatingComputer) (domain.RatingSummary, error) {
	var summary domain.RatingSummary

	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		summary, err = compute(ctx, tx)
		if err != nil {
			return fmt.Errorf("compute rating: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE products SET total_rating = $1, review_count = $2, updated_at = $3 WHERE id = $4`,
			summary.Average, summary.Count, time.Now().UTC(), productID,
		)
		if err != nil {
			return fmt.Errorf("store rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.RatingSummary{}, err
	}

	return summary, nil
}

// ListIDs returns the id of every product ordered by creation time.
func (r *ProductRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product ids: %w", err)
	}
	return ids, nil
}

func (r *ProductRepository) scanProduct(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	var (
		p            domain.Product
		metadataJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(productDest(&p, &metadataJSON)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if err := decodeMetadata(metadataJSON, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// productDest lists scan targets in productColumns order.
func productDest(p *domain.Product, metadataJSON *[]byte) []any {
	return []any{
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.CategoryID,
		&p.Status,
		&p.BasePrice,
		&p.Currency,
		&p.Stock,
		&p.Images,
		metadataJSON,
		&p.TotalRating,
		&p.ReviewCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func decodeMetadata(raw []byte, p *domain.Product) error {
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, &p.Metadata); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}

// limitOffset turns 1-based page and limit into SQL LIMIT/OFFSET values.
func limitOffset(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}
	return limit, offset
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}
