package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/event"
	"github.com/a-nagdy/anasityshop/internal/repository"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

const (
	productID  = "4b6f0c1e-2f7a-4a51-9d0e-0e1f2a3b4c5d"
	categoryID = "9a1d2c3b-4e5f-4a6b-8c7d-1e2f3a4b5c6d"
)

type productFixture struct {
	svc        *ProductService
	repo       *mockProductRepository
	categories *mockCategoryRepository
	reviews    *mockReviewRepository
	pub        *recordingPublisher
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()
	repo := new(mockProductRepository)
	categories := new(mockCategoryRepository)
	reviews := new(mockReviewRepository)
	producer, pub := newTestProducer()
	svc := NewProductService(repo, categories, reviews, producer,
		newTestCache[*domain.Product](t), newTestCache[string](t), newTestLogger())
	svc.now = fixedClock
	return &productFixture{svc: svc, repo: repo, categories: categories, reviews: reviews, pub: pub}
}

func sampleProduct(status string) *domain.Product {
	return &domain.Product{
		ID:          productID,
		Name:        "Desk Lamp",
		Slug:        "desk-lamp",
		Status:      status,
		BasePrice:   4999,
		Currency:    "USD",
		Images:      []string{},
		TotalRating: 4.5,
		ReviewCount: 2,
	}
}

func TestCreateProduct_Defaults(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Product")).Return(nil)

	p, err := f.svc.CreateProduct(ctx, domain.CreateProductInput{Name: "  Crème Lamp ", BasePrice: 1999, Currency: "eur"})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Crème Lamp", p.Name)
	assert.Equal(t, "creme-lamp", p.Slug)
	assert.Equal(t, domain.ProductStatusDraft, p.Status)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, 0.0, p.TotalRating)
	assert.Equal(t, 0, p.ReviewCount)
	assert.NotNil(t, p.Images)
	assert.NotNil(t, p.Metadata)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, []string{event.TopicProductCreated}, f.pub.Topics())
	f.repo.AssertExpectations(t)
}

func TestCreateProduct_SlugClashGetsSuffix(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Slug == "desk-lamp"
	})).Return(apperrors.AlreadyExists("product", "slug", "desk-lamp")).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Product")).Return(nil).Once()

	p, err := f.svc.CreateProduct(ctx, domain.CreateProductInput{Name: "Desk Lamp"})
	require.NoError(t, err)
	assert.Equal(t, "desk-lamp-"+p.ID[:8], p.Slug)
	f.repo.AssertExpectations(t)
}

func TestCreateProduct_Invalid(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, domain.CreateProductInput{Name: "   ", BasePrice: -1})
	var vErr *validator.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields(), "name")
	assert.Contains(t, vErr.Fields(), "basePrice")

	_, err = f.svc.CreateProduct(ctx, domain.CreateProductInput{Name: "!!!"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	catID := categoryID

	f.categories.On("GetByID", ctx, catID).Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.CreateProduct(ctx, domain.CreateProductInput{Name: "Lamp", CategoryID: &catID})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetProduct_CachesByID(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, productID).Return(sampleProduct(domain.ProductStatusPublished), nil).Once()

	first, err := f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)
	first.Name = "mutated by caller"

	second, err := f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", second.Name)
	f.repo.AssertExpectations(t)
}

func TestGetProduct_BySlug(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetBySlug", ctx, "desk-lamp").Return(sampleProduct(domain.ProductStatusPublished), nil).Once()

	p, err := f.svc.GetProduct(ctx, anon, "desk-lamp")
	require.NoError(t, err)
	assert.Equal(t, productID, p.ID)

	_, err = f.svc.GetProduct(ctx, anon, "desk-lamp")
	require.NoError(t, err)
	_, err = f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)

	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestGetProduct_UnpublishedHiddenFromShoppers(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, productID).Return(sampleProduct(domain.ProductStatusDraft), nil)

	_, err := f.svc.GetProduct(ctx, user, productID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	p, err := f.svc.GetProduct(ctx, admin, productID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusDraft, p.Status)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetBySlug", ctx, "nope").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.GetProduct(ctx, anon, "nope")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestRatingUpdated_DropsCachedProduct(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	stale := sampleProduct(domain.ProductStatusPublished)
	fresh := sampleProduct(domain.ProductStatusPublished)
	fresh.TotalRating, fresh.ReviewCount = 3.0, 3
	f.repo.On("GetByID", ctx, productID).Return(stale, nil).Once()
	f.repo.On("GetByID", ctx, productID).Return(fresh, nil).Once()

	p, err := f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, p.TotalRating)

	f.svc.RatingUpdated(ctx, productID, domain.RatingSummary{Average: 3.0, Count: 3})

	p, err = f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{Average: 3.0, Count: 3}, p.Rating())
	f.repo.AssertExpectations(t)
}

func TestListProducts_ShoppersSeePublishedOnly(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	draft := domain.ProductStatusDraft
	minRating := 4.0

	f.repo.On("List", ctx, mock.MatchedBy(func(filter repository.ProductFilter) bool {
		return filter.Status != nil && *filter.Status == domain.ProductStatusPublished &&
			filter.MinRating != nil && *filter.MinRating == 4.0 &&
			filter.SortBy == domain.SortByRating && filter.Page == 1 && filter.Limit == 10
	})).Return([]domain.Product{*sampleProduct(domain.ProductStatusPublished)}, 1, nil)

	products, total, params, err := f.svc.ListProducts(ctx, anon, ProductQuery{
		Status: &draft, MinRating: &minRating, SortBy: domain.SortByRating,
	})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, params.Page)
	f.repo.AssertExpectations(t)
}

func TestListProducts_InvalidQuery(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	lo, hi := int64(500), int64(100)
	tooHigh := 6.0

	queries := []ProductQuery{
		{SortBy: "popularity"},
		{MinPrice: &lo, MaxPrice: &hi},
		{MinRating: &tooHigh},
		{Status: strPtr("hidden")},
	}
	for _, q := range queries {
		_, _, _, err := f.svc.ListProducts(ctx, admin, q)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	}
	f.repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUpdateProduct_RenameKeepsRating(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, productID).Return(sampleProduct(domain.ProductStatusPublished), nil)
	f.repo.On("Update", ctx, mock.AnythingOfType("*domain.Product")).Return(nil)

	p, err := f.svc.UpdateProduct(ctx, productID, domain.UpdateProductInput{
		Name:     strPtr("Floor Lamp"),
		Currency: strPtr("gbp"),
	})
	require.NoError(t, err)

	assert.Equal(t, "floor-lamp", p.Slug)
	assert.Equal(t, "GBP", p.Currency)
	assert.Equal(t, 4.5, p.TotalRating)
	assert.Equal(t, 2, p.ReviewCount)
	assert.Equal(t, fixedNow, p.UpdatedAt)
	assert.Equal(t, []string{event.TopicProductUpdated}, f.pub.Topics())
}

func TestUpdateProduct_InvalidatesCache(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, productID).Return(sampleProduct(domain.ProductStatusPublished), nil).Times(3)
	f.repo.On("Update", ctx, mock.AnythingOfType("*domain.Product")).Return(nil)

	_, err := f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)
	_, err = f.svc.UpdateProduct(ctx, productID, domain.UpdateProductInput{Stock: new(int)})
	require.NoError(t, err)
	_, err = f.svc.GetProduct(ctx, anon, productID)
	require.NoError(t, err)

	f.repo.AssertExpectations(t)
}

func TestDeleteProduct(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, productID).Return(sampleProduct(domain.ProductStatusPublished), nil).Once()
	f.repo.On("Delete", ctx, productID).Return(nil)
	f.reviews.On("DeleteByProduct", ctx, productID).Return(2, nil).Once()

	require.NoError(t, f.svc.DeleteProduct(ctx, productID))
	assert.Equal(t, []string{event.TopicProductDeleted}, f.pub.Topics())
	f.reviews.AssertExpectations(t)

	f.repo.On("GetByID", ctx, "missing").Return(nil, apperrors.ErrNotFound)
	err := f.svc.DeleteProduct(ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.reviews.AssertNumberOfCalls(t, "DeleteByProduct", 1)
}

func TestDeleteProduct_ReviewCleanupFailureKeepsDelete(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, productID).Return(sampleProduct(domain.ProductStatusPublished), nil)
	f.repo.On("Delete", ctx, productID).Return(nil)
	f.reviews.On("DeleteByProduct", ctx, productID).Return(0, errors.New("server selection timeout"))

	require.NoError(t, f.svc.DeleteProduct(ctx, productID))
	assert.Equal(t, []string{event.TopicProductDeleted}, f.pub.Topics())
	f.reviews.AssertExpectations(t)
}
