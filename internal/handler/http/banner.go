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

// StorefrontHandler serves the homepage, theme settings and banners.
type StorefrontHandler struct {
	service *service.HomepageService
	logger  *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(svc *service.HomepageService, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		service: svc,
		logger:  logger,
	}
}

// Homepage handles GET /api/homepage
// @Summary Composed homepage
// @Description Theme, enabled sections, live banners grouped by position, top rated products and the category tree.
// @Tags storefront
// @Produce json
// @Success 200 {object} httputil.Response
// @Router /api/homepage [get]
func (h *StorefrontHandler) Homepage(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Homepage(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "homepage retrieved", page)
}

// GetTheme handles GET /api/theme
func (h *StorefrontHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.service.GetTheme(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "theme retrieved", theme)
}

// UpdateTheme handles PUT /api/theme
func (h *StorefrontHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var theme domain.ThemeSettings
	if err := validator.DecodeAndValidate(w, r, &theme); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	saved, err := h.service.UpdateTheme(r.Context(), viewer(r), theme)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "theme updated", saved)
}

// ListBanners handles GET /api/banners
// @Summary List banners
// @Description Shoppers get the banners live right now. Admins may filter by position and isActive.
// @Tags storefront
// @Produce json
// @Param position query string false "Banner slot" Enums(hero_slider,mid_banner,category_banner)
// @Param isActive query bool false "Filter by active flag (admin only)"
// @Success 200 {object} httputil.Response
// @Router /api/banners [get]
func (h *StorefrontHandler) ListBanners(w http.ResponseWriter, r *http.Request) {
	q := queryParser{r: r}
	query := service.BannerQuery{
		Position: q.str("position"),
		IsActive: q.boolPtr("isActive"),
		Page:     q.positiveInt("page"),
		Limit:    q.positiveInt("limit"),
	}
	if q.err != nil {
		httputil.WriteError(w, r, q.err, h.logger)
		return
	}

	banners, total, page, err := h.service.ListBanners(r.Context(), viewer(r), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "banners retrieved", httputil.NewPage(banners, total, page.Page, page.Limit))
}

// CreateBanner handles POST /api/banners
func (h *StorefrontHandler) CreateBanner(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateBannerInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	banner, err := h.service.CreateBanner(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.Created(w, "banner created", banner)
}

// UpdateBanner handles PUT /api/banners/{id}
func (h *StorefrontHandler) UpdateBanner(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var input domain.UpdateBannerInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	banner, err := h.service.UpdateBanner(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "banner updated", banner)
}

// DeleteBanner handles DELETE /api/banners/{id}
func (h *StorefrontHandler) DeleteBanner(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteBanner(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "banner deleted", map[string]string{"id": id.String()})
}
