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
	"github.com/a-nagdy/anasityshop/internal/event"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/cache"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/pagination"
	"github.com/a-nagdy/anasityshop/pkg/slug"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

const defaultCurrency = "USD"

// Search index tuning. A free-text query is resolved to at most
// maxSearchHits product ids before the SQL filters and paging apply.
const (
	maxSearchHits    = 1000
	reindexBatchSize = 100
)

// ProductQuery holds the listing filters a client may send.
type ProductQuery struct {
	CategoryID *string
	Status     *string
	Search     *string
	MinPrice   *int64
	MaxPrice   *int64
	MinRating  *float64
	SortBy     string
	Page       int
	Limit      int
}

// ProductService implements the business logic for product operations.
// Single-product reads are served from an in-process cache keyed by id, with
// a second cache resolving slugs to ids.
type ProductService struct {
	repo       repository.ProductRepository
	categories repository.CategoryRepository
	reviews    repository.ReviewRepository
	producer   *event.Producer
	byID       *cache.Cache[*domain.Product]
	slugs      *cache.Cache[string]
	index      repository.ProductSearchIndex
	logger     *slog.Logger
	now        func() time.Time
}

// NewProductService creates a new product service.
func NewProductService(
	repo repository.ProductRepository,
	categories repository.CategoryRepository,
	reviews repository.ReviewRepository,
	producer *event.Producer,
	byID *cache.Cache[*domain.Product],
	slugs *cache.Cache[string],
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		reviews:    reviews,
		producer:   producer,
		byID:       byID,
		slugs:      slugs,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ RatingListener = (*ProductService)(nil)

// UseSearchIndex routes free-text queries through index and keeps it in step
// with product writes. Without an index, search falls back to SQL matching.
func (s *ProductService) UseSearchIndex(index repository.ProductSearchIndex) {
	s.index = index
}

// CreateProduct creates a new product. The slug is derived from the name; a
// clash with an existing slug is resolved by appending part of the new id.
func (s *ProductService) CreateProduct(ctx context.Context, input domain.CreateProductInput) (*domain.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	base := slug.Generate(input.Name)
	if base == "" {
		return nil, apperrors.InvalidInput("product name must contain letters or digits")
	}
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Slug:        base,
		Description: input.Description,
		CategoryID:  input.CategoryID,
		Status:      input.Status,
		BasePrice:   input.BasePrice,
		Currency:    strings.ToUpper(input.Currency),
		Stock:       input.Stock,
		Images:      input.Images,
		Metadata:    input.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.Status == "" {
		product.Status = domain.ProductStatusDraft
	}
	if product.Currency == "" {
		product.Currency = defaultCurrency
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	if product.Metadata == nil {
		product.Metadata = make(map[string]any)
	}

	err := s.repo.Create(ctx, product)
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		product.Slug = base + "-" + product.ID[:8]
		err = s.repo.Create(ctx, product)
	}
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.indexProduct(ctx, product)

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)

	return product, nil
}

// GetProduct resolves idOrSlug to a product. Unpublished products are
// reported as missing to everyone but admins.
func (s *ProductService) GetProduct(ctx context.Context, viewer Viewer, idOrSlug string) (*domain.Product, error) {
	id := idOrSlug
	if _, err := uuid.Parse(idOrSlug); err != nil {
		resolved, err := s.slugs.GetOrLoad(ctx, idOrSlug, func(ctx context.Context) (string, error) {
			p, err := s.repo.GetBySlug(ctx, idOrSlug)
			if err != nil {
				return "", err
			}
			s.byID.Set(p.ID, p)
			return p.ID, nil
		})
		if err != nil {
			return nil, s.notFound(err, idOrSlug)
		}
		id = resolved
	}

	cached, err := s.byID.GetOrLoad(ctx, id, func(ctx context.Context) (*domain.Product, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, s.notFound(err, idOrSlug)
	}

	if !viewer.IsAdmin && cached.Status != domain.ProductStatusPublished {
		return nil, apperrors.NotFound("product", idOrSlug)
	}

	product := *cached
	return &product, nil
}

// ListProducts returns a filtered page of products. Non-admins only ever see
// published products.
func (s *ProductService) ListProducts(ctx context.Context, viewer Viewer, q ProductQuery) ([]domain.Product, int, pagination.Params, error) {
	params := pagination.Params{Page: q.Page, Limit: q.Limit}
	params.Normalize()

	if !domain.IsValidSortBy(q.SortBy) {
		return nil, 0, params, apperrors.InvalidInput(fmt.Sprintf("invalid sort %q", q.SortBy))
	}
	if q.Status != nil && !domain.IsValidStatus(*q.Status) {
		return nil, 0, params, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *q.Status))
	}
	if q.MinRating != nil && (*q.MinRating < 0 || *q.MinRating > domain.MaxRating) {
		return nil, 0, params, apperrors.InvalidInput("minRating must be between 0 and 5")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, 0, params, apperrors.InvalidInput("minPrice must not exceed maxPrice")
	}

	filter := repository.ProductFilter{
		CategoryID: q.CategoryID,
		Status:     q.Status,
		Search:     q.Search,
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		MinRating:  q.MinRating,
		SortBy:     q.SortBy,
		Page:       params.Page,
		Limit:      params.Limit,
	}
	if !viewer.IsAdmin {
		published := domain.ProductStatusPublished
		filter.Status = &published
	}

	if filter.Search != nil && s.index != nil {
		ids, err := s.index.Search(ctx, *filter.Search, maxSearchHits)
		if err != nil {
			s.logger.WarnContext(ctx, "search index query failed, using SQL match",
				slog.String("error", err.Error()),
			)
		} else {
			filter.Search = nil
			filter.IDs = ids
		}
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, params, fmt.Errorf("list products: %w", err)
	}
	return products, total, params, nil
}

// ReindexSearch pushes every product into the search index in batches and
// returns how many were indexed. It is a no-op without an index.
func (s *ProductService) ReindexSearch(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	indexed := 0
	for page := 1; ; page++ {
		products, total, err := s.repo.List(ctx, repository.ProductFilter{Page: page, Limit: reindexBatchSize})
		if err != nil {
			return indexed, fmt.Errorf("reindex: list products: %w", err)
		}
		if len(products) == 0 {
			break
		}
		if err := s.index.BulkIndex(ctx, products); err != nil {
			return indexed, fmt.Errorf("reindex: %w", err)
		}
		indexed += len(products)
		if indexed >= total {
			break
		}
	}

	s.logger.InfoContext(ctx, "search index rebuilt", slog.Int("products", indexed))
	return indexed, nil
}

// indexProduct mirrors a write into the search index. Failures are logged;
// the next reindex repairs the document.
func (s *ProductService) indexProduct(ctx context.Context, product *domain.Product) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to index product",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
}

// UpdateProduct applies partial updates to an existing product. Renaming
// regenerates the slug.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input domain.UpdateProductInput) (*domain.Product, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	oldSlug := product.Slug

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if slug.Generate(name) == "" {
			return nil, apperrors.InvalidInput("product name must contain letters or digits")
		}
		input.Name = &name
	}
	if input.Currency != nil {
		upper := strings.ToUpper(*input.Currency)
		input.Currency = &upper
	}
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	input.Apply(product)
	if input.Name != nil {
		product.Slug = slug.Generate(product.Name)
	}
	product.UpdatedAt = s.now()

	err = s.repo.Update(ctx, product)
	if errors.Is(err, apperrors.ErrAlreadyExists) && product.Slug != oldSlug {
		product.Slug = product.Slug + "-" + product.ID[:8]
		err = s.repo.Update(ctx, product)
	}
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidate(product.ID, oldSlug)
	s.indexProduct(ctx, product)

	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)

	return product, nil
}

// DeleteProduct removes a product by its ID together with its reviews. A
// failure to remove the reviews is logged; the product stays deleted.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.notFound(err, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.invalidate(id, product.Slug)

	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove product from search index",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	if n, err := s.reviews.DeleteByProduct(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete reviews of deleted product",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "reviews of deleted product removed",
			slog.String("product_id", id),
			slog.Int("reviews", n),
		)
	}

	if err := s.producer.PublishProductDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
	)

	return nil
}

// RatingUpdated drops the cached product so the next read sees the new
// aggregate. Slug entries hold only ids and stay valid.
func (s *ProductService) RatingUpdated(_ context.Context, productID string, _ domain.RatingSummary) {
	s.byID.Delete(productID)
}

func (s *ProductService) invalidate(id, productSlug string) {
	s.byID.Delete(id)
	s.slugs.Delete(productSlug)
}

func (s *ProductService) checkCategory(ctx context.Context, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, *categoryID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput(fmt.Sprintf("category %s does not exist", *categoryID))
		}
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}

func (s *ProductService) notFound(err error, ref string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("product", ref)
	}
	return fmt.Errorf("get product: %w", err)
}
