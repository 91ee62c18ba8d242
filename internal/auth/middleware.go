package auth

import (
	"context"
	"net/http"

	"github.com/genmedia-bff/bff/internal/httpresponse"
	"github.com/genmedia-bff/bff/internal/models"
)

// contextKey is the type for context keys to avoid collisions.
type contextKey string

// TenantContextKey is the context key for the authenticated tenant.
const TenantContextKey contextKey = "tenant"

// Authenticator is the narrow interface the middleware depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*models.Tenant, error)
}

// Middleware validates the X-API-Key header and, on success, stores the
// resolved Tenant on the request context (spec.md §4.1).
func Middleware(registry Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			tenant, err := registry.Authenticate(r.Context(), key)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			ctx := ContextWithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithTenant stores a Tenant on the context.
func ContextWithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, TenantContextKey, tenant)
}

// TenantFromContext retrieves the authenticated Tenant, or nil.
func TenantFromContext(ctx context.Context) *models.Tenant {
	tenant, _ := ctx.Value(TenantContextKey).(*models.Tenant)
	return tenant
}

func writeAuthError(w http.ResponseWriter, err error) {
	message := "Invalid or inactive API key"
	if authErr, ok := err.(*AuthError); ok {
		message = authErr.Message
	}
	httpresponse.WriteUnauthorized(w, message)
}
