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

// CategoryHandler handles HTTP requests for category endpoints.
type CategoryHandler struct {
	service *service.CategoryService
	logger  *slog.Logger
}

// NewCategoryHandler creates a new category HTTP handler.
func NewCategoryHandler(svc *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: svc,
		logger:  logger,
	}
}

// ListCategories handles GET /api/categories
// @Summary List categories
// @Description Returns the flat category list. Inactive branches are hidden from shoppers.
// @Tags categories
// @Produce json
// @Success 200 {object} httputil.Response
// @Router /api/categories [get]
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), viewer(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "categories retrieved", categories)
}

// CategoryTree handles GET /api/categories/tree
func (h *CategoryHandler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context(), viewer(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "category tree retrieved", tree)
}

// GetCategory handles GET /api/categories/{idOrSlug}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.GetCategory(r.Context(), viewer(r), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "category retrieved", category)
}

// CreateCategory handles POST /api/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateCategoryInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	category, err := h.service.CreateCategory(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.Created(w, "category created", category)
}

// UpdateCategory handles PUT /api/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var input domain.UpdateCategoryInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "category updated", category)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "category deleted", map[string]string{"id": id.String()})
}
