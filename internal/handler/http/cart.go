package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/a-nagdy/anasityshop/internal/service"
	"github.com/a-nagdy/anasityshop/pkg/httputil"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints. The cart always
// belongs to the authenticated caller.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), viewer(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "cart retrieved", cart)
}

// AddItem handles POST /api/cart/items
// @Summary Add a product to the cart
// @Description Price, name and image are taken from the catalog. Adding a product already in the cart increases its quantity.
// @Tags cart
// @Accept json
// @Produce json
// @Param request body service.AddItemInput true "Item to add"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 409 {object} httputil.Response
// @Router /api/cart/items [post]
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input service.AddItemInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	cart, err := h.service.AddItem(r.Context(), viewer(r).UserID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "item added to cart", cart)
}

// UpdateItemQuantity handles PUT /api/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateQuantityInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), viewer(r).UserID, chi.URLParam(r, "productId"), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "cart item updated", cart)
}

// RemoveItem handles DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveItem(r.Context(), viewer(r).UserID, chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "cart item removed", cart)
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), viewer(r).UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "cart cleared", nil)
}
