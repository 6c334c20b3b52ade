package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/cache"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/pagination"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

const (
	homepageCacheKey    = "homepage"
	defaultSectionLimit = 8
)

// BannerQuery selects banners for listing. Position and IsActive are admin
// filters; shoppers always get the banners live right now.
type BannerQuery struct {
	Position *string
	IsActive *bool
	Page     int
	Limit    int
}

// HomepageService owns the storefront theme, promotional banners and the
// composed homepage payload.
type HomepageService struct {
	themes     repository.ThemeRepository
	banners    repository.BannerRepository
	products   repository.ProductRepository
	categories *CategoryService
	cache      *cache.Cache[*domain.Homepage]
	logger     *slog.Logger
	now        func() time.Time
}

// NewHomepageService creates a new homepage service.
func NewHomepageService(
	themes repository.ThemeRepository,
	banners repository.BannerRepository,
	products repository.ProductRepository,
	categories *CategoryService,
	c *cache.Cache[*domain.Homepage],
	logger *slog.Logger,
) *HomepageService {
	return &HomepageService{
		themes:     themes,
		banners:    banners,
		products:   products,
		categories: categories,
		cache:      c,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ RatingListener = (*HomepageService)(nil)

// GetTheme returns the saved theme, or the default one if none was saved.
func (s *HomepageService) GetTheme(ctx context.Context) (*domain.ThemeSettings, error) {
	theme, err := s.themes.Get(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			def := domain.DefaultTheme()
			return &def, nil
		}
		return nil, fmt.Errorf("get theme: %w", err)
	}
	return theme, nil
}

// UpdateTheme replaces the theme settings.
func (s *HomepageService) UpdateTheme(ctx context.Context, viewer Viewer, theme domain.ThemeSettings) (*domain.ThemeSettings, error) {
	if !viewer.IsAdmin {
		return nil, apperrors.Forbidden("admin access required")
	}
	if err := validator.Validate(theme); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(theme.HomepageSections))
	for _, sec := range theme.HomepageSections {
		if seen[sec.Type] {
			return nil, apperrors.InvalidInput(fmt.Sprintf("section %q appears more than once", sec.Type))
		}
		seen[sec.Type] = true
	}

	theme.UpdatedAt = s.now()
	theme.UpdatedBy = viewer.UserID
	if theme.HomepageSections == nil {
		theme.HomepageSections = []domain.HomepageSection{}
	}

	if err := s.themes.Save(ctx, &theme); err != nil {
		return nil, fmt.Errorf("save theme: %w", err)
	}
	s.cache.Delete(homepageCacheKey)

	s.logger.InfoContext(ctx, "theme updated", slog.String("updated_by", viewer.UserID))
	return &theme, nil
}

// ListBanners returns a page of banners. Shoppers only see banners that are
// active and inside their schedule window.
func (s *HomepageService) ListBanners(ctx context.Context, viewer Viewer, q BannerQuery) ([]domain.Banner, int, pagination.Params, error) {
	params := pagination.Params{Page: q.Page, Limit: q.Limit}
	params.Normalize()

	if q.Position != nil && !domain.IsValidBannerPosition(*q.Position) {
		return nil, 0, params, apperrors.InvalidInput(fmt.Sprintf("invalid banner position %q", *q.Position))
	}

	filter := repository.BannerFilter{
		Position: q.Position,
		IsActive: q.IsActive,
		Page:     params.Page,
		Limit:    params.Limit,
	}
	if !viewer.IsAdmin {
		active, now := true, s.now()
		filter.IsActive = &active
		filter.LiveAt = &now
	}

	banners, total, err := s.banners.List(ctx, filter)
	if err != nil {
		return nil, 0, params, fmt.Errorf("list banners: %w", err)
	}
	return banners, total, params, nil
}

// CreateBanner creates a banner.
func (s *HomepageService) CreateBanner(ctx context.Context, input domain.CreateBannerInput) (*domain.Banner, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if err := checkSchedule(input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := s.now()
	banner := &domain.Banner{
		ID:        uuid.New().String(),
		Title:     input.Title,
		Subtitle:  input.Subtitle,
		ImageURL:  input.ImageURL,
		LinkURL:   input.LinkURL,
		LinkType:  input.LinkType,
		Position:  input.Position,
		SortOrder: input.SortOrder,
		IsActive:  isActive,
		StartsAt:  input.StartsAt,
		EndsAt:    input.EndsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.banners.Create(ctx, banner); err != nil {
		return nil, fmt.Errorf("create banner: %w", err)
	}
	s.cache.Delete(homepageCacheKey)

	s.logger.InfoContext(ctx, "banner created",
		slog.String("banner_id", banner.ID),
		slog.String("position", banner.Position),
	)
	return banner, nil
}

// UpdateBanner applies partial updates to a banner.
func (s *HomepageService) UpdateBanner(ctx context.Context, id string, input domain.UpdateBannerInput) (*domain.Banner, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	banner, err := s.banners.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("banner", id)
		}
		return nil, fmt.Errorf("get banner for update: %w", err)
	}

	if input.Title != nil {
		banner.Title = *input.Title
	}
	if input.Subtitle != nil {
		banner.Subtitle = input.Subtitle
	}
	if input.ImageURL != nil {
		banner.ImageURL = *input.ImageURL
	}
	if input.LinkURL != nil {
		banner.LinkURL = *input.LinkURL
	}
	if input.LinkType != nil {
		banner.LinkType = *input.LinkType
	}
	if input.Position != nil {
		banner.Position = *input.Position
	}
	if input.SortOrder != nil {
		banner.SortOrder = *input.SortOrder
	}
	if input.IsActive != nil {
		banner.IsActive = *input.IsActive
	}
	if input.StartsAt != nil {
		banner.StartsAt = input.StartsAt
	}
	if input.EndsAt != nil {
		banner.EndsAt = input.EndsAt
	}
	if err := checkSchedule(banner.StartsAt, banner.EndsAt); err != nil {
		return nil, err
	}
	banner.UpdatedAt = s.now()

	if err := s.banners.Update(ctx, banner); err != nil {
		return nil, fmt.Errorf("update banner: %w", err)
	}
	s.cache.Delete(homepageCacheKey)

	s.logger.InfoContext(ctx, "banner updated", slog.String("banner_id", banner.ID))
	return banner, nil
}

// DeleteBanner removes a banner.
func (s *HomepageService) DeleteBanner(ctx context.Context, id string) error {
	if err := s.banners.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("banner", id)
		}
		return fmt.Errorf("delete banner: %w", err)
	}
	s.cache.Delete(homepageCacheKey)

	s.logger.InfoContext(ctx, "banner deleted", slog.String("banner_id", id))
	return nil
}

// Homepage composes the landing payload: theme, enabled sections, live
// banners grouped by position and the data for each enabled section. The
// result is cached, so banner schedules take effect within one cache TTL.
func (s *HomepageService) Homepage(ctx context.Context) (*domain.Homepage, error) {
	return s.cache.GetOrLoad(ctx, homepageCacheKey, s.buildHomepage)
}

// RatingUpdated drops the cached homepage, whose top-rated section may
// have changed.
func (s *HomepageService) RatingUpdated(context.Context, string, domain.RatingSummary) {
	s.cache.Delete(homepageCacheKey)
}

func (s *HomepageService) buildHomepage(ctx context.Context) (*domain.Homepage, error) {
	theme, err := s.GetTheme(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := true
	banners, _, err := s.banners.List(ctx, repository.BannerFilter{
		IsActive: &active,
		LiveAt:   &now,
		Page:     1,
		Limit:    pagination.MaxLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list live banners: %w", err)
	}

	hp := &domain.Homepage{
		Theme:    *theme,
		Sections: theme.EnabledSections(),
		Banners: map[string][]domain.Banner{
			domain.BannerPositionHeroSlider:     {},
			domain.BannerPositionMidBanner:      {},
			domain.BannerPositionCategoryBanner: {},
		},
	}
	for _, b := range banners {
		hp.Banners[b.Position] = append(hp.Banners[b.Position], b)
	}

	for _, sec := range hp.Sections {
		limit := sec.Limit
		if limit <= 0 {
			limit = defaultSectionLimit
		}

		switch sec.Type {
		case domain.SectionTopRated:
			published := domain.ProductStatusPublished
			products, _, err := s.products.List(ctx, repository.ProductFilter{
				Status: &published,
				SortBy: domain.SortByRating,
				Page:   1,
				Limit:  limit,
			})
			if err != nil {
				return nil, fmt.Errorf("list top rated products: %w", err)
			}
			hp.TopRated = products
		case domain.SectionCategories:
			tree, err := s.categories.Tree(ctx, Viewer{})
			if err != nil {
				return nil, err
			}
			if len(tree) > limit {
				tree = tree[:limit]
			}
			hp.Categories = tree
		}
	}

	return hp, nil
}

func checkSchedule(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		return apperrors.InvalidInput("endsAt must be after startsAt")
	}
	return nil
}
