package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/observability"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// TenantHandlers serves tenant administration and quota introspection
type TenantHandlers struct {
	tenantService tenants.Service
	roles         roleReader
	logger        *observability.Logger
}

// NewTenantHandlers creates the tenant handler group
func NewTenantHandlers(tenantService tenants.Service, roles roleReader, logger *observability.Logger) *TenantHandlers {
	return &TenantHandlers{
		tenantService: tenantService,
		roles:         roles,
		logger:        logger,
	}
}

// RegisterRoutes registers tenant routes
func (h *TenantHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/tenants", h.createTenant).Methods("POST")
	router.HandleFunc("/api/v1/tenants", h.listTenants).Methods("GET")
	router.HandleFunc("/api/v1/tenants/{id}", h.getTenant).Methods("GET")
	router.HandleFunc("/api/v1/tenants/{id}", h.updateTenant).Methods("PUT")
	router.HandleFunc("/api/v1/tenants/{id}", h.deleteTenant).Methods("DELETE")
	router.HandleFunc("/api/v1/tenants/{id}/quota", h.getQuota).Methods("GET")
}

// createTenant handles POST /api/v1/tenants. Tenant provisioning is a
// platform operation: super_admin only.
func (h *TenantHandlers) createTenant(w http.ResponseWriter, r *http.Request) {
	if err := requireAuthority(r, h.roles, nil); err != nil {
		writeServiceError(w, err)
		return
	}

	var tenant tenants.Tenant
	if !httputil.ParseJSONOrError(w, r, &tenant) {
		return
	}

	if err := h.tenantService.Create(r.Context(), &tenant); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, tenant)
}

// listTenants handles GET /api/v1/tenants. super_admin only.
func (h *TenantHandlers) listTenants(w http.ResponseWriter, r *http.Request) {
	if err := requireAuthority(r, h.roles, nil); err != nil {
		writeServiceError(w, err)
		return
	}

	list, err := h.tenantService.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"tenants": list})
}

// getTenant handles GET /api/v1/tenants/{id}. Admins of the tenant or
// super_admin.
func (h *TenantHandlers) getTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	if err := requireAuthority(r, h.roles, &id); err != nil {
		writeServiceError(w, err)
		return
	}

	tenant, err := h.tenantService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, tenant)
}

// updateTenant handles PUT /api/v1/tenants/{id}
func (h *TenantHandlers) updateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	if err := requireAuthority(r, h.roles, &id); err != nil {
		writeServiceError(w, err)
		return
	}

	var tenant tenants.Tenant
	if !httputil.ParseJSONOrError(w, r, &tenant) {
		return
	}
	tenant.ID = id

	if err := h.tenantService.Update(r.Context(), &tenant); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, tenant)
}

// deleteTenant handles DELETE /api/v1/tenants/{id}. super_admin only;
// removing a tenant is not something its own admins may do.
func (h *TenantHandlers) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	if err := requireAuthority(r, h.roles, nil); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.tenantService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// getQuota handles GET /api/v1/tenants/{id}/quota
func (h *TenantHandlers) getQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	if err := requireAuthority(r, h.roles, &id); err != nil {
		writeServiceError(w, err)
		return
	}

	status, err := h.tenantService.Quota(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, status)
}
