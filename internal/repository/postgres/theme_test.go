package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-nagdy/anasityshop/internal/domain"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

var themeCols = []string{
	"store_name", "logo_url", "primary_color", "secondary_color", "font_family",
	"homepage_sections", "updated_at", "updated_by",
}

func TestThemeRepository_Get(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewThemeRepository(mock)

	theme := domain.DefaultTheme()
	sections, _ := json.Marshal(theme.HomepageSections)

	mock.ExpectQuery(`FROM theme_settings\s+WHERE id = \$1`).
		WithArgs(themeRowID).
		WillReturnRows(pgxmock.NewRows(themeCols).AddRow(
			theme.StoreName, theme.LogoURL, theme.PrimaryColor, theme.SecondaryColor, theme.FontFamily,
			sections, now, "admin-1",
		))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, theme.HomepageSections, got.HomepageSections)
	assert.Equal(t, "admin-1", got.UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThemeRepository_Get_NotSaved(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewThemeRepository(mock)

	mock.ExpectQuery(`FROM theme_settings`).
		WithArgs(themeRowID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThemeRepository_Save_Upserts(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewThemeRepository(mock)

	theme := domain.DefaultTheme()
	theme.UpdatedAt = now
	theme.UpdatedBy = "admin-1"
	sections, _ := json.Marshal(theme.HomepageSections)

	mock.ExpectExec(`INSERT INTO theme_settings .+ ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(themeRowID, theme.StoreName, theme.LogoURL, theme.PrimaryColor, theme.SecondaryColor,
			theme.FontFamily, sections, now, "admin-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Save(context.Background(), &theme))
	assert.NoError(t, mock.ExpectationsWereMet())
}
