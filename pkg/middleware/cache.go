package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks anonymous GET responses as publicly cacheable for
// maxAge seconds. Authenticated requests are marked private so shared caches
// never serve one user's view to another.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	public := fmt.Sprintf("public, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				if r.Header.Get("Authorization") != "" {
					w.Header().Set("Cache-Control", "private, no-store")
				} else {
					w.Header().Set("Cache-Control", public)
				}
				w.Header().Add("Vary", "Authorization")
			}
			next.ServeHTTP(w, r)
		})
	}
}
