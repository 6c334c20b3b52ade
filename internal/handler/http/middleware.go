package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/a-nagdy/anasityshop/internal/service"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/httputil"
	"github.com/a-nagdy/anasityshop/pkg/middleware"
)

// viewer builds the service-level caller from the authenticated principal.
// Requests without one are anonymous.
func viewer(r *http.Request) service.Viewer {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return service.Viewer{}
	}
	return service.Viewer{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, r, &apperrors.AppError{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
					Status:  http.StatusUnsupportedMediaType,
				}, nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// queryParser collects optional query parameters and remembers the first
// malformed one.
type queryParser struct {
	r   *http.Request
	err error
}

func (q *queryParser) str(name string) *string {
	v := strings.TrimSpace(q.r.URL.Query().Get(name))
	if v == "" {
		return nil
	}
	return &v
}

func (q *queryParser) positiveInt(name string) int {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		q.fail(name + " must be a positive integer")
		return 0
	}
	return n
}

func (q *queryParser) int64Ptr(name string) *int64 {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		q.fail(name + " must be a valid number")
		return nil
	}
	return &n
}

func (q *queryParser) floatPtr(name string) *float64 {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.fail(name + " must be a valid number")
		return nil
	}
	return &f
}

func (q *queryParser) boolPtr(name string) *bool {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name + " must be true or false")
		return nil
	}
	return &b
}

func (q *queryParser) fail(msg string) {
	if q.err == nil {
		q.err = apperrors.BadRequest("INVALID_PARAMETER", msg)
	}
}
