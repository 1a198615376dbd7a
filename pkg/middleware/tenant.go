package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hivedocs/hivedocs/pkg/contextkeys"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// TenantContextMiddleware resolves the tenant a request operates on and
// adds it to the request context.
//
// Resolution order: the tenant_id path variable, then the tenant_id query
// parameter, then the X-Tenant-ID header. The reference may be a tenant
// UUID or a slug. Requests without any tenant reference proceed without
// tenant context; tenant-less private uploads are legitimate.
type TenantContextMiddleware struct {
	tenantService tenants.Service
}

// NewTenantContextMiddleware creates a tenant resolution middleware
func NewTenantContextMiddleware(tenantService tenants.Service) *TenantContextMiddleware {
	return &TenantContextMiddleware{tenantService: tenantService}
}

// Handler wraps an HTTP handler with tenant resolution
func (m *TenantContextMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tenantReference(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		var tenant *tenants.Tenant
		var err error

		if tenantID, parseErr := uuid.Parse(raw); parseErr == nil {
			tenant, err = m.tenantService.Get(r.Context(), tenantID)
		} else {
			tenant, err = m.tenantService.GetBySlug(r.Context(), raw)
		}
		if err != nil {
			if tenants.IsNotFound(err) {
				httputil.WriteNotFoundError(w, "tenant not found")
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := contextkeys.WithTenant(r.Context(), tenant.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantReference(r *http.Request) string {
	if v, ok := mux.Vars(r)["tenant_id"]; ok && v != "" {
		return v
	}
	if v := r.URL.Query().Get("tenant_id"); v != "" {
		return v
	}
	return r.Header.Get("X-Tenant-ID")
}
