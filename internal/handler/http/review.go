package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/a-nagdy/anasityshop/internal/service"
	"github.com/a-nagdy/anasityshop/pkg/httputil"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// ListReviews handles GET /api/reviews
// @Summary List reviews
// @Description Shoppers only ever receive approved reviews. statsOnly=true returns the rating distribution of productId instead of a page.
// @Tags reviews
// @Produce json
// @Param productId query string false "Filter by product"
// @Param status query string false "Filter by status (admin only)" Enums(pending,approved,rejected)
// @Param statsOnly query bool false "Return statistics only"
// @Success 200 {object} httputil.Response
// @Router /api/reviews [get]
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := queryParser{r: r}
	query := service.ReviewQuery{
		ProductID: q.str("productId"),
		UserID:    q.str("userId"),
		Page:      q.positiveInt("page"),
		Limit:     q.positiveInt("limit"),
	}
	if s := q.str("status"); s != nil {
		query.Status = *s
	}
	if b := q.boolPtr("statsOnly"); b != nil {
		query.StatsOnly = *b
	}
	if q.err != nil {
		httputil.WriteError(w, r, q.err, h.logger)
		return
	}

	result, err := h.service.ListReviews(r.Context(), viewer(r), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if result.Stats != nil {
		httputil.OK(w, "review statistics retrieved", result.Stats)
		return
	}
	httputil.OK(w, "reviews retrieved", httputil.NewPage(result.Reviews, result.Total, result.Page, result.Limit))
}

// CreateReview handles POST /api/reviews
// @Summary Submit a review
// @Description Stores a pending review. A user may review each product once.
// @Tags reviews
// @Accept json
// @Produce json
// @Param request body service.CreateReviewInput true "Review to create"
// @Success 201 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var input service.CreateReviewInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	review, err := h.service.CreateReview(r.Context(), viewer(r), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.Created(w, "review submitted and awaiting moderation", review)
}

// ModerateReview handles PUT /api/reviews/{id}
func (h *ReviewHandler) ModerateReview(w http.ResponseWriter, r *http.Request) {
	var input service.ModerateReviewInput
	if err := validator.DecodeAndValidate(w, r, &input); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	review, err := h.service.ModerateReview(r.Context(), viewer(r), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "review "+string(review.Status), review)
}

// DeleteReview handles DELETE /api/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteReview(r.Context(), viewer(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "review deleted", map[string]string{"id": id})
}

// MarkHelpful handles POST /api/reviews/{id}/helpful
func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.service.MarkHelpful(r.Context(), viewer(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.OK(w, "review marked helpful", map[string]any{"id": id, "helpful": n})
}
