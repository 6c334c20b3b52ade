package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

// themeRowID is the primary key of the only row in theme_settings.
const themeRowID = 1

// ThemeRepository stores storefront theme settings in a single-row table.
type ThemeRepository struct {
	pool database.DBTX
}

// NewThemeRepository creates a new PostgreSQL-backed theme repository.
func NewThemeRepository(pool database.DBTX) *ThemeRepository {
	return &ThemeRepository{pool: pool}
}

var _ repository.ThemeRepository = (*ThemeRepository)(nil)

// Get loads the saved theme.
func (r *ThemeRepository) Get(ctx context.Context) (*domain.ThemeSettings, error) {
	var (
		t            domain.ThemeSettings
		sectionsJSON []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT store_name, logo_url, primary_color, secondary_color, font_family,
		       homepage_sections, updated_at, updated_by
		FROM theme_settings
		WHERE id = $1`, themeRowID,
	).Scan(
		&t.StoreName,
		&t.LogoURL,
		&t.PrimaryColor,
		&t.SecondaryColor,
		&t.FontFamily,
		&sectionsJSON,
		&t.UpdatedAt,
		&t.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get theme: %w", err)
	}

	if len(sectionsJSON) > 0 {
		if err := json.Unmarshal(sectionsJSON, &t.HomepageSections); err != nil {
			return nil, fmt.Errorf("unmarshal homepage sections: %w", err)
		}
	}

	return &t, nil
}

// Save upserts the theme row.
func (r *ThemeRepository) Save(ctx context.Context, t *domain.ThemeSettings) error {
	sectionsJSON, err := json.Marshal(t.HomepageSections)
	if err != nil {
		return fmt.Errorf("marshal homepage sections: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO theme_settings (id, store_name, logo_url, primary_color, secondary_color, font_family,
			homepage_sections, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET store_name = EXCLUDED.store_name, logo_url = EXCLUDED.logo_url,
		    primary_color = EXCLUDED.primary_color, secondary_color = EXCLUDED.secondary_color,
		    font_family = EXCLUDED.font_family, homepage_sections = EXCLUDED.homepage_sections,
		    updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
		themeRowID,
		t.StoreName,
		t.LogoURL,
		t.PrimaryColor,
		t.SecondaryColor,
		t.FontFamily,
		sectionsJSON,
		t.UpdatedAt,
		t.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("save theme: %w", err)
	}

	return nil
}
