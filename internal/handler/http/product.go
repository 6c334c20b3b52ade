package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/service"
	"github.com/a-nagdy/anasityshop/pkg/httputil"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	ratings *service.RatingAggregator
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, ratings *service.RatingAggregator, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		ratings: ratings,
		logger:  logger,
	}
}

// ListProducts handles GET /api/products
// @Summary List products
// @Description Returns a page of products. Shoppers only see published products.
// @Tags products
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(10)
// @Param categoryId query string false "Filter by category UUID"
// @Param status query string false "Filter by status (admin only)" Enums(draft,published,archived)
// @Param sort query string false "Sort order" Enums(newest,price_asc,price_desc,name_asc,rating)
// @Param search query string false "Name search"
// @Param minPrice query int false "Minimum price in cents"
// @Param maxPrice query int false "Maximum price in cents"
// @Param minRating query number false "Minimum average rating"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Router /api/products [get]
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := queryParser{r: r}
	query := service.ProductQuery{
		CategoryID: q.str("categoryId"),
		Status:     q.str("status"),
		Search:     q.str("search"),
		MinPrice:   q.int64Ptr("minPrice"),
		MaxPrice:   q.int64Ptr("maxPrice"),
		MinRating:  q.floatPtr("minRating"),
		Page:       q.positiveInt("page"),
		Limit:      q.positiveInt("limit"),
	}
	if s := q.str("sort"); s != nil {
		query.SortBy = *s
	}
	if q.err != nil {
		httputil.WriteError(w, r, q.err, h.logger)
		return
	}

	products, total, page, err := h.service.ListProducts(r.Context(), viewer(r), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "products retrieved", httputil.NewPage(products, total, page.Page, page.Limit))
}

// GetProduct handles GET /api/products/{idOrSlug}
// @Summary Get a product
// @Tags products
// @Produce json
// @Param idOrSlug path string true "Product UUID or slug"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/products/{idOrSlug} [get]
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), viewer(r), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "product retrieved", product)
}

// CreateProduct handles POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateProductInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.Created(w, "product created", product)
}

// UpdateProduct handles PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var input domain.UpdateProductInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "product updated", product)
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "product deleted", map[string]string{"id": id.String()})
}

// RecomputeRating handles POST /api/products/{id}/rating/recompute
// @Summary Recompute a product rating
// @Description Rebuilds totalRating and reviewCount from the approved reviews.
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/products/{id}/rating/recompute [post]
func (h *ProductHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	summary, err := h.ratings.Recompute(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "product rating recomputed", summary)
}
