package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/httputil"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// RoleAdmin is the role allowed to moderate reviews and edit the catalog.
const RoleAdmin = "admin"

// Claims are the bearer token claims this service relies on. Tokens are
// issued by the identity service; this service only verifies them.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// TokenValidator turns a raw bearer token into claims.
type TokenValidator func(token string) (*Claims, error)

// HMACValidator verifies HS256/384/512 tokens signed with secret. When issuer
// is non-empty the iss claim must match it.
func HMACValidator(secret, issuer string) TokenValidator {
	key := []byte(secret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(raw string) (*Claims, error) {
		claims := &Claims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		if claims.UserID == "" {
			return nil, errors.New("token has no subject")
		}
		return claims, nil
	}
}

var errNoToken = errors.New("missing authorization header")

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errNoToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", errors.New("invalid authorization header format")
	}
	return token, nil
}

// Auth rejects requests without a valid bearer token and stores the caller's
// Principal in the context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
				return
			}
			claims, err := validate(token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches a Principal when a valid token is present and lets
// anonymous requests through. A malformed or invalid token is still a 401.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if errors.Is(err, errNoToken) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
				return
			}
			claims, err := validate(token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// RequireRole allows only principals holding one of roles. It must run after
// Auth; an anonymous request gets 401, a wrong role 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	return WithPrincipal(ctx, Principal{UserID: c.UserID, Email: c.Email, Role: c.Role})
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserIDFromContext returns the authenticated user ID or "".
func UserIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

// RoleFromContext returns the authenticated role or "".
func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httputil.WriteError(w, r, &apperrors.AppError{Code: code, Message: message, Status: status}, nil)
}
