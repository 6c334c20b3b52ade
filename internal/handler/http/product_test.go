package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

func TestListProducts_AnonymousForcedToPublished(t *testing.T) {
	h, repos := newTestServer(t)
	published := domain.ProductStatusPublished
	minRating := 4.0
	repos.products.On("List", mock.Anything, repository.ProductFilter{
		Status:    &published,
		MinRating: &minRating,
		SortBy:    domain.SortByRating,
		Page:      1,
		Limit:     10,
	}).Return([]domain.Product{*publishedProduct()}, 1, nil)

	rec := do(t, h, http.MethodGet, "/api/products?status=draft&minRating=4&sort=rating", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Items      []domain.Product `json:"items"`
		TotalCount int              `json:"totalCount"`
	}
	envelope(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "desk-lamp", page.Items[0].Slug)
	assert.Equal(t, 1, page.TotalCount)
}

func TestListProducts_InvalidQuery(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		query string
		code  string
	}{
		{"sort=cheapest", "INVALID_INPUT"},
		{"minPrice=ten", "INVALID_PARAMETER"},
		{"minPrice=500&maxPrice=100", "INVALID_INPUT"},
		{"minRating=7", "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/products?"+tt.query, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, envelope(t, rec, nil).Code)
		})
	}
}

func TestGetProduct_BySlug(t *testing.T) {
	h, repos := newTestServer(t)
	repos.products.On("GetBySlug", mock.Anything, "desk-lamp").Return(publishedProduct(), nil).Once()

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/api/products/desk-lamp", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p domain.Product
		envelope(t, rec, &p)
		assert.Equal(t, productID, p.ID)
	}

	// The second read is served from the cache.
	repos.products.AssertNumberOfCalls(t, "GetBySlug", 1)
	repos.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestGetProduct_DraftHiddenFromShoppers(t *testing.T) {
	h, repos := newTestServer(t)
	draft := publishedProduct()
	draft.Status = domain.ProductStatusDraft
	repos.products.On("GetByID", mock.Anything, productID).Return(draft, nil)

	rec := do(t, h, http.MethodGet, "/api/products/"+productID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/products/"+productID, adminToken(t), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateProduct_AdminOnly(t *testing.T) {
	h, repos := newTestServer(t)
	body := map[string]any{"name": "Floor Lamp", "basePrice": 12900}

	rec := do(t, h, http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/products", userToken(t), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	repos.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_Defaults(t *testing.T) {
	h, repos := newTestServer(t)
	repos.products.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	rec := do(t, h, http.MethodPost, "/api/products", adminToken(t), map[string]any{
		"name": "Floor Lamp", "basePrice": 12900, "currency": "eur",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p domain.Product
	envelope(t, rec, &p)
	assert.Equal(t, "floor-lamp", p.Slug)
	assert.Equal(t, domain.ProductStatusDraft, p.Status)
	assert.Equal(t, "EUR", p.Currency)
	assert.Zero(t, p.TotalRating)
	assert.Zero(t, p.ReviewCount)
}

func TestCreateProduct_RatingFieldsRejected(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/products", adminToken(t),
		`{"name":"Floor Lamp","basePrice":12900,"totalRating":5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProduct_InvalidID(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPut, "/api/products/not-a-uuid", adminToken(t), map[string]any{"name": "x"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", envelope(t, rec, nil).Code)
}

func TestDeleteProduct(t *testing.T) {
	h, repos := newTestServer(t)
	repos.products.On("GetByID", mock.Anything, productID).Return(publishedProduct(), nil)
	repos.products.On("Delete", mock.Anything, productID).Return(nil)
	repos.reviews.On("DeleteByProduct", mock.Anything, productID).Return(3, nil)

	rec := do(t, h, http.MethodDelete, "/api/products/"+productID, adminToken(t), nil)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	repos.products.AssertExpectations(t)
	repos.reviews.AssertExpectations(t)
}

func TestRecomputeRating(t *testing.T) {
	h, repos := newTestServer(t)
	repos.products.On("UpdateRating", mock.Anything, productID).Return(nil)
	repos.reviews.On("ApprovedStats", mock.Anything, productID).
		Return(domain.ReviewStatsFromRatings([]int{5, 4, 4}), nil)

	rec := do(t, h, http.MethodPost, "/api/products/"+productID+"/rating/recompute", adminToken(t), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary domain.RatingSummary
	envelope(t, rec, &summary)
	assert.Equal(t, 4.3, summary.Average)
	assert.Equal(t, 3, summary.Count)
}

func TestRecomputeRating_UnknownProduct(t *testing.T) {
	h, repos := newTestServer(t)
	repos.products.On("UpdateRating", mock.Anything, productID).Return(apperrors.ErrNotFound)

	rec := do(t, h, http.MethodPost, "/api/products/"+productID+"/rating/recompute", adminToken(t), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
