package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newVisitorStore(0.001, 2, time.Minute)
	h := rateLimit(store, l)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)
	other.RemoteAddr = "203.0.113.8:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_RetryAfterFollowsRate(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := rateLimit(newVisitorStore(0.2, 1, time.Minute), l)(okHandler)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestRateLimit_KeysAuthenticatedRequestsByUser(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := rateLimit(newVisitorStore(0.001, 1, time.Minute), l)(okHandler)

	send := func(userID, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: userID, Role: "customer"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("user-1", "198.51.100.1"))
	// A fresh forwarded address does not buy the same user a new bucket.
	assert.Equal(t, http.StatusTooManyRequests, send("user-1", "198.51.100.2"))
	assert.Equal(t, http.StatusOK, send("user-2", "198.51.100.2"))
}

func TestVisitorStore_Cleanup(t *testing.T) {
	store := newVisitorStore(1, 1, time.Minute)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.get("1.1.1.1")
	now = now.Add(2 * time.Minute)
	store.get("2.2.2.2")
	store.cleanup()

	assert.Equal(t, 1, store.len())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.2")
	assert.Equal(t, "198.51.100.9", clientIP(req))
}
