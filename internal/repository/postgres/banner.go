package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

const bannerColumns = `id, title, subtitle, image_url, link_url, link_type, position, sort_order,
	is_active, starts_at, ends_at, created_at, updated_at`

// BannerRepository implements repository.BannerRepository using PostgreSQL.
type BannerRepository struct {
	pool database.DBTX
}

// NewBannerRepository creates a new PostgreSQL-backed banner repository.
func NewBannerRepository(pool database.DBTX) *BannerRepository {
	return &BannerRepository{pool: pool}
}

var _ repository.BannerRepository = (*BannerRepository)(nil)

// Create inserts a new banner into the database.
func (r *BannerRepository) Create(ctx context.Context, b *domain.Banner) error {
	query := `
		INSERT INTO banners (id, title, subtitle, image_url, link_url, link_type, position, sort_order,
			is_active, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query, bannerArgs(b)...)
	if err != nil {
		return fmt.Errorf("insert banner: %w", err)
	}

	return nil
}

// GetByID retrieves a banner by its ID.
func (r *BannerRepository) GetByID(ctx context.Context, id string) (*domain.Banner, error) {
	var b domain.Banner

	query := fmt.Sprintf(`SELECT %s FROM banners WHERE id = $1`, bannerColumns)
	if err := r.pool.QueryRow(ctx, query, id).Scan(bannerDest(&b)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan banner: %w", err)
	}

	return &b, nil
}

// Update modifies an existing banner in the database.
func (r *BannerRepository) Update(ctx context.Context, b *domain.Banner) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE banners
		SET title = $1, subtitle = $2, image_url = $3, link_url = $4, link_type = $5, position = $6,
		    sort_order = $7, is_active = $8, starts_at = $9, ends_at = $10, updated_at = $11
		WHERE id = $12`

	ct, err := r.pool.Exec(ctx, query,
		b.Title,
		b.Subtitle,
		b.ImageURL,
		b.LinkURL,
		b.LinkType,
		b.Position,
		b.SortOrder,
		b.IsActive,
		b.StartsAt,
		b.EndsAt,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update banner: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("banner", b.ID)
	}

	return nil
}

// Delete removes a banner from the database by its ID.
func (r *BannerRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM banners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("banner", id)
	}

	return nil
}

// List returns banners matching the given filter with the total count,
// ordered by sort_order.
func (r *BannerRepository) List(ctx context.Context, filter repository.BannerFilter) ([]domain.Banner, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Position != nil {
		conditions = append(conditions, fmt.Sprintf("position = $%d", argIndex))
		args = append(args, *filter.Position)
		argIndex++
	}

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
		argIndex++
	}

	if filter.LiveAt != nil {
		conditions = append(conditions, fmt.Sprintf(
			"(starts_at IS NULL OR starts_at <= $%d) AND (ends_at IS NULL OR ends_at > $%d)", argIndex, argIndex))
		args = append(args, *filter.LiveAt)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM banners
		%s
		ORDER BY sort_order, created_at DESC
		LIMIT $%d OFFSET $%d`,
		bannerColumns, whereClause, argIndex, argIndex+1,
	)

	limit, offset := limitOffset(filter.Page, filter.Limit)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list banners: %w", err)
	}
	defer rows.Close()

	var (
		banners    = []domain.Banner{}
		totalCount int
	)

	for rows.Next() {
		var b domain.Banner
		if err := rows.Scan(append(bannerDest(&b), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan banner row: %w", err)
		}
		banners = append(banners, b)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate banner rows: %w", err)
	}

	return banners, totalCount, nil
}

// bannerArgs lists values in bannerColumns order.
func bannerArgs(b *domain.Banner) []any {
	return []any{
		b.ID,
		b.Title,
		b.Subtitle,
		b.ImageURL,
		b.LinkURL,
		b.LinkType,
		b.Position,
		b.SortOrder,
		b.IsActive,
		b.StartsAt,
		b.EndsAt,
		b.CreatedAt,
		b.UpdatedAt,
	}
}

func bannerDest(b *domain.Banner) []any {
	return []any{
		&b.ID,
		&b.Title,
		&b.Subtitle,
		&b.ImageURL,
		&b.LinkURL,
		&b.LinkType,
		&b.Position,
		&b.SortOrder,
		&b.IsActive,
		&b.StartsAt,
		&b.EndsAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}
