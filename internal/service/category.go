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
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/cache"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/slug"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

const categoriesCacheKey = "all"

// CategoryService manages the category hierarchy. The full flat list is
// cached and every tree is built from it.
type CategoryService struct {
	repo   repository.CategoryRepository
	cache  *cache.Cache[[]domain.Category]
	logger *slog.Logger
	now    func() time.Time
}

// NewCategoryService creates a new category service.
func NewCategoryService(repo repository.CategoryRepository, c *cache.Cache[[]domain.Category], logger *slog.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		cache:  c,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateCategory creates a category, optionally under an existing parent.
func (s *CategoryService) CreateCategory(ctx context.Context, input domain.CreateCategoryInput) (*domain.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	categorySlug := slug.Generate(input.Name)
	if categorySlug == "" {
		return nil, apperrors.InvalidInput("category name must contain letters or digits")
	}

	level := 0
	if input.ParentID != nil {
		parent, err := s.parent(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		level = parent.Level + 1
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := s.now()
	category := &domain.Category{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Slug:        categorySlug,
		ParentID:    input.ParentID,
		SortOrder:   input.SortOrder,
		IsActive:    isActive,
		ImageURL:    input.ImageURL,
		Description: input.Description,
		Level:       level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.cache.Delete(categoriesCacheKey)

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
	)

	return category, nil
}

// GetCategory looks a category up by id or slug. Inactive categories are
// only visible to admins.
func (s *CategoryService) GetCategory(ctx context.Context, viewer Viewer, idOrSlug string) (*domain.Category, error) {
	var (
		category *domain.Category
		err      error
	)
	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		category, err = s.repo.GetByID(ctx, idOrSlug)
	} else {
		category, err = s.repo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("category", idOrSlug)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	if !category.IsActive && !viewer.IsAdmin {
		return nil, apperrors.NotFound("category", idOrSlug)
	}
	return category, nil
}

// ListCategories returns the flat category list. Shoppers do not see inactive
// categories or anything beneath them.
func (s *CategoryService) ListCategories(ctx context.Context, viewer Viewer) ([]domain.Category, error) {
	all, err := s.cache.GetOrLoad(ctx, categoriesCacheKey, s.repo.ListAll)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if viewer.IsAdmin {
		return append([]domain.Category(nil), all...), nil
	}
	return visibleCategories(all), nil
}

// Tree returns the category hierarchy as nested nodes.
func (s *CategoryService) Tree(ctx context.Context, viewer Viewer) ([]*domain.Category, error) {
	flat, err := s.ListCategories(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return domain.BuildCategoryTree(flat), nil
}

// UpdateCategory applies partial updates. A category cannot be moved under
// itself or one of its descendants.
func (s *CategoryService) UpdateCategory(ctx context.Context, id string, input domain.UpdateCategoryInput) (*domain.Category, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category for update: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		categorySlug := slug.Generate(name)
		if categorySlug == "" {
			return nil, apperrors.InvalidInput("category name must contain letters or digits")
		}
		category.Name = name
		category.Slug = categorySlug
	}

	if input.ParentID != nil {
		if *input.ParentID == id {
			return nil, apperrors.InvalidInput("a category cannot be its own parent")
		}
		parent, err := s.parent(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if err := s.checkNotDescendant(ctx, id, parent.ID); err != nil {
			return nil, err
		}
		category.ParentID = input.ParentID
		category.Level = parent.Level + 1
	}

	if input.SortOrder != nil {
		category.SortOrder = *input.SortOrder
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if input.ImageURL != nil {
		category.ImageURL = input.ImageURL
	}
	if input.Description != nil {
		category.Description = input.Description
	}
	category.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	s.cache.Delete(categoriesCacheKey)

	s.logger.InfoContext(ctx, "category updated",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
	)

	return category, nil
}

// DeleteCategory removes a category. Children move up one level and products
// in the category become uncategorized.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("category", id)
		}
		return fmt.Errorf("delete category: %w", err)
	}
	s.cache.Delete(categoriesCacheKey)

	s.logger.InfoContext(ctx, "category deleted",
		slog.String("category_id", id),
	)
	return nil
}

func (s *CategoryService) parent(ctx context.Context, id string) (*domain.Category, error) {
	parent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput("parent category not found")
		}
		return nil, fmt.Errorf("get parent category: %w", err)
	}
	return parent, nil
}

// checkNotDescendant walks up from candidate and fails if it reaches id.
func (s *CategoryService) checkNotDescendant(ctx context.Context, id, candidate string) error {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	parents := make(map[string]*string, len(all))
	for _, c := range all {
		parents[c.ID] = c.ParentID
	}

	seen := make(map[string]bool)
	for cur := &candidate; cur != nil && !seen[*cur]; cur = parents[*cur] {
		if *cur == id {
			return apperrors.InvalidInput("a category cannot be moved under its own descendant")
		}
		seen[*cur] = true
	}
	return nil
}

// visibleCategories drops inactive categories and every descendant of one.
func visibleCategories(all []domain.Category) []domain.Category {
	byID := make(map[string]*domain.Category, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	visible := make(map[string]bool, len(all))
	var isVisible func(c *domain.Category, depth int) bool
	isVisible = func(c *domain.Category, depth int) bool {
		if v, ok := visible[c.ID]; ok {
			return v
		}
		v := c.IsActive
		if v && c.ParentID != nil && depth < len(all) {
			if p, ok := byID[*c.ParentID]; ok {
				v = isVisible(p, depth+1)
			}
		}
		visible[c.ID] = v
		return v
	}

	out := make([]domain.Category, 0, len(all))
	for i := range all {
		if isVisible(&all[i], 0) {
			out = append(out, all[i])
		}
	}
	return out
}
