package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/event"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/internal/service"
	"github.com/a-nagdy/anasityshop/pkg/cache"
	"github.com/a-nagdy/anasityshop/pkg/health"
	"github.com/a-nagdy/anasityshop/pkg/httputil"
	"github.com/a-nagdy/anasityshop/pkg/middleware"
)

// --- Mock Repositories ---

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Update(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// UpdateRating runs compute unless the expectation returns an error, so the
// stored aggregate is whatever the review repository reports.
func (m *mockProductRepo) UpdateRating(ctx context.Context, productID string, compute repository.RatingComputer) (domain.RatingSummary, error) {
	if err := m.Called(ctx, productID).Error(0); err != nil {
		return domain.RatingSummary{}, err
	}
	return compute(ctx, nil)
}

func (m *mockProductRepo) ListIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepo) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepo) Update(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReviewRepo) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) DeleteByProduct(ctx context.Context, productID string) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepo) ApprovedStats(ctx context.Context, productID string) (domain.ReviewStats, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.ReviewStats), args.Error(1)
}

func (m *mockReviewRepo) IncrementHelpful(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

type mockCategoryRepo struct {
	mock.Mock
}

func (m *mockCategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCategoryRepo) ListAll(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

type mockBannerRepo struct {
	mock.Mock
}

func (m *mockBannerRepo) Create(ctx context.Context, b *domain.Banner) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBannerRepo) GetByID(ctx context.Context, id string) (*domain.Banner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Banner), args.Error(1)
}

func (m *mockBannerRepo) Update(ctx context.Context, b *domain.Banner) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBannerRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBannerRepo) List(ctx context.Context, filter repository.BannerFilter) ([]domain.Banner, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Banner), args.Int(1), args.Error(2)
}

type mockThemeRepo struct {
	mock.Mock
}

func (m *mockThemeRepo) Get(ctx context.Context) (*domain.ThemeSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ThemeSettings), args.Error(1)
}

func (m *mockThemeRepo) Save(ctx context.Context, t *domain.ThemeSettings) error {
	return m.Called(ctx, t).Error(0)
}

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) error {
	return m.Called(ctx, cart, expected).Error(0)
}

func (m *mockCartRepo) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// --- Test Server ---

const testSecret = "handler-test-secret"

type testRepos struct {
	products   *mockProductRepo
	reviews    *mockReviewRepo
	categories *mockCategoryRepo
	banners    *mockBannerRepo
	themes     *mockThemeRepo
	carts      *mockCartRepo
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache[V any](t *testing.T) *cache.Cache[V] {
	t.Helper()
	c := cache.New[V](context.Background(), time.Minute)
	t.Cleanup(c.Close)
	return c
}

// newTestServer wires real services over mock repositories behind the full
// router. Events are dropped.
func newTestServer(t *testing.T) (http.Handler, *testRepos) {
	t.Helper()
	repos := &testRepos{
		products:   new(mockProductRepo),
		reviews:    new(mockReviewRepo),
		categories: new(mockCategoryRepo),
		banners:    new(mockBannerRepo),
		themes:     new(mockThemeRepo),
		carts:      new(mockCartRepo),
	}
	logger := newTestLogger()
	producer := event.NewProducer(nil, logger)

	ratings := service.NewRatingAggregator(repos.products, repos.reviews, producer, nil, logger)
	products := service.NewProductService(repos.products, repos.categories, repos.reviews, producer,
		newTestCache[*domain.Product](t), newTestCache[string](t), logger)
	categories := service.NewCategoryService(repos.categories, newTestCache[[]domain.Category](t), logger)
	storefront := service.NewHomepageService(repos.themes, repos.banners, repos.products, categories,
		newTestCache[*domain.Homepage](t), logger)
	ratings.AddListener(products)
	ratings.AddListener(storefront)

	svc := Services{
		Products:   products,
		Reviews:    service.NewReviewService(repos.reviews, repos.products, ratings, producer, logger),
		Categories: categories,
		Storefront: storefront,
		Cart:       service.NewCartService(repos.carts, repos.products, logger, time.Hour),
		Ratings:    ratings,
	}
	opts := RouterOptions{
		Validate:    middleware.HMACValidator(testSecret, ""),
		CacheMaxAge: 60,
	}

	return NewRouter(svc, opts, health.NewHandler(time.Second), logger), repos
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func userToken(t *testing.T) string  { return bearer(t, "user-1", "customer") }
func adminToken(t *testing.T) string { return bearer(t, "admin-1", middleware.RoleAdmin) }

// do sends a request through h. body may be nil, a string or any value to be
// JSON encoded.
func do(t *testing.T, h http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// envelope decodes the response envelope; data is decoded into dst when
// dst is non-nil.
func envelope(t *testing.T, rec *httptest.ResponseRecorder, dst any) httputil.Response {
	t.Helper()
	var raw struct {
		httputil.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(raw.Data, dst))
	}
	return raw.Response
}

func strPtr(s string) *string { return &s }
