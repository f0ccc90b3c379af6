package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type orgKey struct{}

// OrgResolver resolves an organization ID from a bearer token.
type OrgResolver interface {
	ResolveOrg(ctx context.Context, token string) (string, error)
}

// OrgFromContext returns the organization ID from context, if present.
func OrgFromContext(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(orgKey{}).(string)
	return orgID, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver OrgResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			orgID, err := resolver.ResolveOrg(r.Context(), token)
			if err != nil || orgID == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), orgKey{}, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
