package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hivedocs/hivedocs/pkg/contextkeys"
	"github.com/hivedocs/hivedocs/pkg/httputil"
)

// AuthMiddleware resolves the authenticated principal from the request.
//
// Identity verification happens upstream (API gateway); by the time a
// request reaches this service the bearer token carries the verified
// principal UUID. Anonymous requests are allowed when optional is set:
// the access decider treats a missing principal as the anonymous caller
// and public documents stay reachable without credentials.
type AuthMiddleware struct {
	optional bool
}

// NewAuthMiddleware creates an authentication middleware. With optional
// set, requests without credentials proceed as anonymous.
func NewAuthMiddleware(optional bool) *AuthMiddleware {
	return &AuthMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with principal resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		principalID, err := uuid.Parse(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid principal token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principalID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromRequest extracts the authenticated principal, or nil for
// anonymous requests
func PrincipalFromRequest(r *http.Request) *uuid.UUID {
	if id, ok := contextkeys.GetPrincipal(r.Context()); ok {
		return &id
	}
	return nil
}
