package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/event"
	"github.com/a-nagdy/anasityshop/internal/repository"
	"github.com/a-nagdy/anasityshop/pkg/cache"
	"github.com/a-nagdy/anasityshop/pkg/database"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	pkgkafka "github.com/a-nagdy/anasityshop/pkg/kafka"
)

// --- Mock Repositories ---

type mockProductRepository struct {
	mock.Mock
	// tx is handed to compute as the locking transaction.
	tx database.DBTX
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// UpdateRating runs compute unless the expectation returns an error.
func (m *mockProductRepository) UpdateRating(ctx context.Context, productID string, compute repository.RatingComputer) (domain.RatingSummary, error) {
	if err := m.Called(ctx, productID).Error(0); err != nil {
		return domain.RatingSummary{}, err
	}
	return compute(ctx, m.tx)
}

func (m *mockProductRepository) ListIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Update(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) DeleteByProduct(ctx context.Context, productID string) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepository) ApprovedStats(ctx context.Context, productID string) (domain.ReviewStats, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.ReviewStats), args.Error(1)
}

func (m *mockReviewRepository) IncrementHelpful(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

type mockSearchIndex struct {
	mock.Mock
}

func (m *mockSearchIndex) Index(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockSearchIndex) BulkIndex(ctx context.Context, products []domain.Product) error {
	return m.Called(ctx, products).Error(0)
}

func (m *mockSearchIndex) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSearchIndex) Search(ctx context.Context, text string, limit int) ([]string, error) {
	args := m.Called(ctx, text, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

type mockBannerRepository struct {
	mock.Mock
}

func (m *mockBannerRepository) Create(ctx context.Context, b *domain.Banner) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBannerRepository) GetByID(ctx context.Context, id string) (*domain.Banner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Banner), args.Error(1)
}

func (m *mockBannerRepository) Update(ctx context.Context, b *domain.Banner) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBannerRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBannerRepository) List(ctx context.Context, filter repository.BannerFilter) ([]domain.Banner, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Banner), args.Int(1), args.Error(2)
}

type mockThemeRepository struct {
	mock.Mock
}

func (m *mockThemeRepository) Get(ctx context.Context) (*domain.ThemeSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ThemeSettings), args.Error(1)
}

func (m *mockThemeRepository) Save(ctx context.Context, t *domain.ThemeSettings) error {
	return m.Called(ctx, t).Error(0)
}

// --- In-memory stores ---

// memProducts and memReviews share one lock so UpdateRating behaves like the
// row-locked transaction of the postgres store.
type memStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	reviews  map[string]*domain.Review
	// statsErr makes ApprovedStats fail while set.
	statsErr error
}

func newMemStore(productIDs ...string) *memStore {
	s := &memStore{
		products: make(map[string]*domain.Product),
		reviews:  make(map[string]*domain.Review),
	}
	for _, id := range productIDs {
		s.products[id] = &domain.Product{ID: id, Name: id, Slug: id, Status: domain.ProductStatusPublished, Currency: "USD"}
	}
	return s
}

func (s *memStore) productRepo() *memProducts { return &memProducts{s} }
func (s *memStore) reviewRepo() *memReviews   { return &memReviews{s} }

func (s *memStore) product(id string) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.products[id]
	return &p
}

type memProducts struct{ s *memStore }

var _ repository.ProductRepository = (*memProducts)(nil)

func (m *memProducts) Create(_ context.Context, p *domain.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *p
	m.s.products[p.ID] = &cp
	return nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.products[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memProducts) List(context.Context, repository.ProductFilter) ([]domain.Product, int, error) {
	return nil, 0, nil
}

func (m *memProducts) Update(_ context.Context, p *domain.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.products[p.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	cp := *p
	cp.TotalRating, cp.ReviewCount = cur.TotalRating, cur.ReviewCount
	m.s.products[p.ID] = &cp
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.products, id)
	return nil
}

func (m *memProducts) UpdateRating(ctx context.Context, productID string, compute repository.RatingComputer) (domain.RatingSummary, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.products[productID]
	if !ok {
		return domain.RatingSummary{}, apperrors.ErrNotFound
	}
	summary, err := compute(ctx, nil)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	p.TotalRating, p.ReviewCount = summary.Average, summary.Count
	return summary, nil
}

func (m *memProducts) ListIDs(context.Context) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ids := make([]string, 0, len(m.s.products))
	for id := range m.s.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// memReviews methods other than ApprovedStats take the lock themselves;
// ApprovedStats is only called from inside UpdateRating, which holds it.
type memReviews struct{ s *memStore }

var _ repository.ReviewRepository = (*memReviews)(nil)

func (m *memReviews) Create(_ context.Context, r *domain.Review) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.reviews {
		if existing.ProductID == r.ProductID && existing.UserID == r.UserID {
			return domain.ErrDuplicateReview
		}
	}
	cp := *r
	m.s.reviews[r.ID] = &cp
	return nil
}

func (m *memReviews) GetByID(_ context.Context, id string) (*domain.Review, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reviews[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReviews) Update(_ context.Context, r *domain.Review) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.reviews[r.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *r
	m.s.reviews[r.ID] = &cp
	return nil
}

func (m *memReviews) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.reviews[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.s.reviews, id)
	return nil
}

func (m *memReviews) DeleteByProduct(_ context.Context, productID string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for id, r := range m.s.reviews {
		if r.ProductID == productID {
			delete(m.s.reviews, id)
			n++
		}
	}
	return n, nil
}

func (m *memReviews) List(_ context.Context, f domain.ReviewFilter) ([]domain.Review, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []domain.Review{}
	for _, r := range m.s.reviews {
		if f.ProductID != nil && r.ProductID != *f.ProductID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *memReviews) ApprovedStats(_ context.Context, productID string) (domain.ReviewStats, error) {
	if m.s.statsErr != nil {
		return domain.ReviewStats{}, m.s.statsErr
	}
	var ratings []int
	for _, r := range m.s.reviews {
		if r.ProductID == productID && r.IsApproved() {
			ratings = append(ratings, r.Rating)
		}
	}
	return domain.ReviewStatsFromRatings(ratings), nil
}

func (m *memReviews) IncrementHelpful(_ context.Context, id string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reviews[id]
	if !ok || !r.IsApproved() {
		return 0, apperrors.ErrNotFound
	}
	r.Helpful++
	return r.Helpful, nil
}

// --- Test Helpers ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

func newTestCache[V any](t *testing.T) *cache.Cache[V] {
	t.Helper()
	c := cache.New[V](context.Background(), time.Minute)
	t.Cleanup(c.Close)
	return c
}

var (
	anon  = Viewer{}
	user  = Viewer{UserID: "user-1"}
	admin = Viewer{UserID: "admin-1", IsAdmin: true}
)
