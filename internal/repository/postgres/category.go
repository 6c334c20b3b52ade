package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

// categoryColumns selects a category with its live count of published
// products.
const categoryColumns = `c.id, c.name, c.slug, c.parent_id, c.sort_order, c.is_active,
	c.image_url, c.description, c.level,
	(SELECT count(*) FROM products p WHERE p.category_id = c.id AND p.status = 'published') AS product_count,
	c.created_at, c.updated_at`

// CategoryRepository implements category persistence operations using PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

// Create inserts a new category into the database.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	query := `
		INSERT INTO categories (id, name, slug, parent_id, sort_order, is_active,
			image_url, description, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Slug,
		c.ParentID,
		c.SortOrder,
		c.IsActive,
		c.ImageURL,
		c.Description,
		c.Level,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "slug", c.Slug)
		}
		return fmt.Errorf("insert category: %w", err)
	}

	return nil
}

// GetByID retrieves a category by its unique identifier.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories c WHERE c.id = $1`, categoryColumns)
	return r.scanCategory(ctx, query, id)
}

// GetBySlug retrieves a category by its URL-friendly slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories c WHERE c.slug = $1`, categoryColumns)
	return r.scanCategory(ctx, query, slug)
}

// Update modifies an existing category in the database.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE categories
		SET name = $1, slug = $2, parent_id = $3, sort_order = $4, is_active = $5,
		    image_url = $6, description = $7, level = $8, updated_at = $9
		WHERE id = $10`

	ct, err := r.pool.Exec(ctx, query,
		c.Name,
		c.Slug,
		c.ParentID,
		c.SortOrder,
		c.IsActive,
		c.ImageURL,
		c.Description,
		c.Level,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "slug", c.Slug)
		}
		return fmt.Errorf("update category: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", c.ID)
	}

	return nil
}

// Delete removes a category. Its children move up to the deleted category's
// parent and its products lose their category, all in one transaction.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var parentID *string
		err := tx.QueryRow(ctx, `SELECT parent_id FROM categories WHERE id = $1 FOR UPDATE`, id).Scan(&parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("category", id)
			}
			return fmt.Errorf("get category for delete: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE categories SET parent_id = $1 WHERE parent_id = $2`, parentID, id); err != nil {
			return fmt.Errorf("reparent child categories: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET category_id = NULL WHERE category_id = $1`, id); err != nil {
			return fmt.Errorf("detach products: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
}

// ListAll returns every category as a flat list ordered by level, sort_order
// and name.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM categories c
		ORDER BY c.level, c.sort_order, c.name`, categoryColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(categoryDest(&c)...); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}

func (r *CategoryRepository) scanCategory(ctx context.Context, query string, args ...any) (*domain.Category, error) {
	var c domain.Category

	if err := r.pool.QueryRow(ctx, query, args...).Scan(categoryDest(&c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}

	return &c, nil
}

func categoryDest(c *domain.Category) []any {
	return []any{
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.ParentID,
		&c.SortOrder,
		&c.IsActive,
		&c.ImageURL,
		&c.Description,
		&c.Level,
		&c.ProductCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}
