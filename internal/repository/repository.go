package repository

import (
	"context"
	"time"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/pkg/database"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	CategoryID *string
	Status     *string
	Search     *string
	MinPrice   *int64
	MaxPrice   *int64
	MinRating  *float64
	SortBy     string
	Page       int
	Limit      int

	// IDs restricts the listing to these products when non-nil. An empty
	// non-nil slice matches nothing.
	IDs []string
}

// ProductSearchIndex is a full-text index over the catalog. Search returns
// the ids of matching products, best match first.
type ProductSearchIndex interface {
	Index(ctx context.Context, product *domain.Product) error
	BulkIndex(ctx context.Context, products []domain.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, text string, limit int) ([]string, error)
}

// RatingComputer produces a product's rating aggregate. It is called by
// UpdateRating while the product row is locked; tx is the locking
// transaction and is the only connection compute may use on the product
// database.
type RatingComputer func(ctx context.Context, tx database.DBTX) (domain.RatingSummary, error)

// ProductRepository defines product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error

	// UpdateRating locks the product, calls compute and stores its result as
	// the product's total_rating and review_count in one transaction.
	// A missing product yields apperrors.ErrNotFound.
	UpdateRating(ctx context.Context, productID string, compute RatingComputer) (domain.RatingSummary, error)

	// ListIDs returns every product id, for full rating re-syncs.
	ListIDs(ctx context.Context) ([]string, error)
}

// ReviewRepository defines review persistence. Implementations exist for
// PostgreSQL and MongoDB.
type ReviewRepository interface {
	// Create stores a new review. A second review for the same product and
	// user yields domain.ErrDuplicateReview.
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error)

	// DeleteByProduct removes every review of the product and returns how
	// many were removed.
	DeleteByProduct(ctx context.Context, productID string) (int, error)

	// ApprovedStats reads the count, mean and per-star distribution of the
	// product's approved reviews.
	ApprovedStats(ctx context.Context, productID string) (domain.ReviewStats, error)

	// IncrementHelpful bumps the helpful counter of an approved review and
	// returns the new value.
	IncrementHelpful(ctx context.Context, id string) (int, error)
}

// TxBinder is implemented by review stores that live in the product
// database. WithTx returns a repository whose queries run on tx.
type TxBinder interface {
	WithTx(tx database.DBTX) ReviewRepository
}

// CategoryRepository defines category persistence.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error

	// ListAll returns every category, active or not, as a flat list with
	// product counts filled in.
	ListAll(ctx context.Context) ([]domain.Category, error)
}

// BannerFilter defines filter criteria for listing banners.
type BannerFilter struct {
	Position *string
	IsActive *bool
	// LiveAt keeps only banners whose schedule window contains the instant.
	LiveAt *time.Time
	Page   int
	Limit  int
}

// BannerRepository defines banner persistence.
type BannerRepository interface {
	Create(ctx context.Context, banner *domain.Banner) error
	GetByID(ctx context.Context, id string) (*domain.Banner, error)
	Update(ctx context.Context, banner *domain.Banner) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter BannerFilter) ([]domain.Banner, int, error)
}

// ThemeRepository stores the singleton theme document.
type ThemeRepository interface {
	// Get returns the saved settings or apperrors.ErrNotFound if none were
	// saved yet.
	Get(ctx context.Context) (*domain.ThemeSettings, error)
	Save(ctx context.Context, theme *domain.ThemeSettings) error
}

// CartRepository defines cart persistence.
type CartRepository interface {
	// Get returns the cart or apperrors.ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveIfVersion stores cart only if the stored version still equals
	// expected (0 meaning "no cart stored yet"), then bumps cart.Version.
	// A mismatch yields apperrors.ErrConflict.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) error

	Delete(ctx context.Context, userID string) error
}
