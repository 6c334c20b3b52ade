package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/a-nagdy/anasityshop/internal/service"
	"github.com/a-nagdy/anasityshop/pkg/health"
	"github.com/a-nagdy/anasityshop/pkg/middleware"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Products   *service.ProductService
	Reviews    *service.ReviewService
	Categories *service.CategoryService
	Storefront *service.HomepageService
	Cart       *service.CartService
	Ratings    *service.RatingAggregator
}

// RouterOptions carries the cross-cutting pieces of the router. Nil
// middleware and handlers are skipped.
type RouterOptions struct {
	Validate    middleware.TokenValidator
	CORS        middleware.CORSConfig
	HTTPMetrics *middleware.HTTPMetrics
	Metrics     http.Handler
	// WriteLimit throttles review submissions and helpful votes.
	WriteLimit  func(http.Handler) http.Handler
	PprofCIDRs  []string
	CacheMaxAge int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(svc Services, opts RouterOptions, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	if opts.HTTPMetrics != nil {
		r.Use(opts.HTTPMetrics.Handler)
	}

	// Health check and operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if len(opts.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, opts.PprofCIDRs, logger)
	}

	writeLimit := opts.WriteLimit
	if writeLimit == nil {
		writeLimit = func(next http.Handler) http.Handler { return next }
	}

	products := NewProductHandler(svc.Products, svc.Ratings, logger)
	reviews := NewReviewHandler(svc.Reviews, logger)
	categories := NewCategoryHandler(svc.Categories, logger)
	storefront := NewStorefrontHandler(svc.Storefront, logger)
	cart := NewCartHandler(svc.Cart, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		public := r.With(middleware.OptionalAuth(opts.Validate), middleware.RequestLogger(logger))
		user := r.With(middleware.Auth(opts.Validate), middleware.RequestLogger(logger))
		admin := user.With(middleware.RequireRole(middleware.RoleAdmin))

		// Storefront reads that do not depend on the caller
		cached := public.With(middleware.CacheControl(opts.CacheMaxAge))
		cached.Get("/homepage", storefront.Homepage)
		cached.Get("/theme", storefront.GetTheme)
		admin.Put("/theme", storefront.UpdateTheme)

		public.Get("/banners", storefront.ListBanners)
		admin.Post("/banners", storefront.CreateBanner)
		admin.Put("/banners/{id}", storefront.UpdateBanner)
		admin.Delete("/banners/{id}", storefront.DeleteBanner)

		public.Get("/products", products.ListProducts)
		public.Get("/products/{idOrSlug}", products.GetProduct)
		admin.Post("/products", products.CreateProduct)
		admin.Put("/products/{id}", products.UpdateProduct)
		admin.Delete("/products/{id}", products.DeleteProduct)
		admin.Post("/products/{id}/rating/recompute", products.RecomputeRating)

		public.Get("/categories", categories.ListCategories)
		public.Get("/categories/tree", categories.CategoryTree)
		public.Get("/categories/{idOrSlug}", categories.GetCategory)
		admin.Post("/categories", categories.CreateCategory)
		admin.Put("/categories/{id}", categories.UpdateCategory)
		admin.Delete("/categories/{id}", categories.DeleteCategory)

		public.Get("/reviews", reviews.ListReviews)
		user.With(writeLimit).Post("/reviews", reviews.CreateReview)
		user.With(writeLimit).Post("/reviews/{id}/helpful", reviews.MarkHelpful)
		admin.Put("/reviews/{id}", reviews.ModerateReview)
		admin.Delete("/reviews/{id}", reviews.DeleteReview)

		user.Get("/cart", cart.GetCart)
		user.Delete("/cart", cart.ClearCart)
		user.Post("/cart/items", cart.AddItem)
		user.Put("/cart/items/{productId}", cart.UpdateItemQuantity)
		user.Delete("/cart/items/{productId}", cart.RemoveItem)
	})

	return r
}
