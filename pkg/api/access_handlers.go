package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/async"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/middleware"
	"github.com/hivedocs/hivedocs/pkg/observability"
)

// RoleStore is the role administration surface the handlers need,
// satisfied by *access.Store
type RoleStore interface {
	RolesFor(ctx context.Context, principalID uuid.UUID) ([]access.RoleAssignment, error)
	ListDirectGrants(ctx context.Context, principalID uuid.UUID) ([]access.DirectGrant, error)
	Grant(ctx context.Context, principalID uuid.UUID, tenantID *uuid.UUID, role access.Role) (access.CleanupResult, error)
	Revoke(ctx context.Context, principalID uuid.UUID, tenantID *uuid.UUID, role access.Role) error
	GrantDirectAccess(ctx context.Context, principalID, tenantID uuid.UUID) error
	RevokeDirectAccess(ctx context.Context, principalID, tenantID uuid.UUID) error
}

// AccessHandlers serves access decisions and role administration
type AccessHandlers struct {
	decider *access.Decider
	store   RoleStore
	cache   *access.DecisionCache
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewAccessHandlers creates the access handler group. cache and metrics
// may be nil.
func NewAccessHandlers(decider *access.Decider, store RoleStore, cache *access.DecisionCache, metrics *observability.Metrics, logger *observability.Logger) *AccessHandlers {
	return &AccessHandlers{
		decider: decider,
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes registers access and role routes
func (h *AccessHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/access/check", h.checkAccess).Methods("POST")
	router.HandleFunc("/api/v1/access/check-batch", h.checkAccessBatch).Methods("POST")
	router.HandleFunc("/api/v1/roles/grant", h.grantRole).Methods("POST")
	router.HandleFunc("/api/v1/roles/revoke", h.revokeRole).Methods("POST")
	router.HandleFunc("/api/v1/access/direct-grants", h.grantDirectAccess).Methods("POST")
	router.HandleFunc("/api/v1/access/direct-grants", h.revokeDirectAccess).Methods("DELETE")
	router.HandleFunc("/api/v1/principals/{id}/roles", h.listPrincipalRoles).Methods("GET")
}

type checkAccessRequest struct {
	PrincipalID *uuid.UUID `json:"principal_id,omitempty"`
	DocumentID  uuid.UUID  `json:"document_id"`
	Passcode    *string    `json:"passcode,omitempty"`
}

type checkAccessResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason"`
}

// checkAccess handles POST /api/v1/access/check.
// The principal defaults to the authenticated caller; services checking
// on behalf of another principal pass it explicitly.
func (h *AccessHandlers) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.DocumentID == uuid.Nil {
		httputil.WriteBadRequest(w, "document_id is required")
		return
	}

	principal := req.PrincipalID
	if principal == nil {
		principal = middleware.PrincipalFromRequest(r)
	}

	decision, err := h.decider.CheckAccess(r.Context(), principal, req.DocumentID, req.Passcode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, checkAccessResponse{
		DocumentID: req.DocumentID,
		Allowed:    decision.Allowed,
		Reason:     decision.Reason,
	})
}

type checkAccessBatchRequest struct {
	PrincipalID *uuid.UUID  `json:"principal_id,omitempty"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
	Passcode    *string     `json:"passcode,omitempty"`
}

// checkAccessBatch handles POST /api/v1/access/check-batch. Each document
// gets exactly the decision a single check would produce.
func (h *AccessHandlers) checkAccessBatch(w http.ResponseWriter, r *http.Request) {
	var req checkAccessBatchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.DocumentIDs) == 0 {
		httputil.WriteBadRequest(w, "document_ids is required")
		return
	}

	principal := req.PrincipalID
	if principal == nil {
		principal = middleware.PrincipalFromRequest(r)
	}

	decisions, err := h.decider.CheckAccessBatch(r.Context(), principal, req.DocumentIDs, req.Passcode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	results := make(map[string]checkAccessResponse, len(decisions))
	for id, decision := range decisions {
		results[id.String()] = checkAccessResponse{
			DocumentID: id,
			Allowed:    decision.Allowed,
			Reason:     decision.Reason,
		}
	}

	httputil.WriteSuccess(w, map[string]interface{}{"decisions": results})
}

type roleChangeRequest struct {
	PrincipalID uuid.UUID   `json:"principal_id"`
	TenantID    *uuid.UUID  `json:"tenant_id,omitempty"`
	Role        access.Role `json:"role"`
}

// grantRole handles POST /api/v1/roles/grant. Global grants require a
// super_admin caller; tenant-scoped grants a tenant_admin of that tenant
// or a super_admin.
func (h *AccessHandlers) grantRole(w http.ResponseWriter, r *http.Request) {
	var req roleChangeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PrincipalID == uuid.Nil {
		httputil.WriteBadRequest(w, "principal_id is required")
		return
	}

	if err := h.requireRoleAuthority(r, req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.store.Grant(r.Context(), req.PrincipalID, req.TenantID, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidatePrincipal(r, req.PrincipalID)
	if h.metrics != nil {
		h.metrics.GrantsTotal.WithLabelValues(string(req.Role)).Inc()
		h.metrics.GrantCleanupsTotal.WithLabelValues("direct_grant").Add(float64(result.DirectGrantsRemoved))
		h.metrics.GrantCleanupsTotal.WithLabelValues("registered_role").Add(float64(result.RegisteredRolesRemoved))
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"granted":                  true,
		"direct_grants_removed":    result.DirectGrantsRemoved,
		"registered_roles_removed": result.RegisteredRolesRemoved,
	})
}

// revokeRole handles POST /api/v1/roles/revoke under the same authority
// rules as grants
func (h *AccessHandlers) revokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleChangeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PrincipalID == uuid.Nil {
		httputil.WriteBadRequest(w, "principal_id is required")
		return
	}

	if err := h.requireRoleAuthority(r, req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.store.Revoke(r.Context(), req.PrincipalID, req.TenantID, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidatePrincipal(r, req.PrincipalID)
	if h.metrics != nil {
		h.metrics.RevokesTotal.WithLabelValues(string(req.Role)).Inc()
	}

	httputil.WriteSuccess(w, map[string]interface{}{"revoked": true})
}

type directGrantRequest struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
}

// grantDirectAccess handles POST /api/v1/access/direct-grants. Direct
// grants are the legacy per-tenant access records; role grants supersede
// and clean them up, but imports from older systems still create them.
func (h *AccessHandlers) grantDirectAccess(w http.ResponseWriter, r *http.Request) {
	var req directGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PrincipalID == uuid.Nil || req.TenantID == uuid.Nil {
		httputil.WriteBadRequest(w, "principal_id and tenant_id are required")
		return
	}

	if err := h.requireRoleAuthority(r, &req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.store.GrantDirectAccess(r.Context(), req.PrincipalID, req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidatePrincipal(r, req.PrincipalID)
	httputil.WriteCreated(w, map[string]interface{}{"granted": true})
}

// revokeDirectAccess handles DELETE /api/v1/access/direct-grants
func (h *AccessHandlers) revokeDirectAccess(w http.ResponseWriter, r *http.Request) {
	var req directGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PrincipalID == uuid.Nil || req.TenantID == uuid.Nil {
		httputil.WriteBadRequest(w, "principal_id and tenant_id are required")
		return
	}

	if err := h.requireRoleAuthority(r, &req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.store.RevokeDirectAccess(r.Context(), req.PrincipalID, req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidatePrincipal(r, req.PrincipalID)
	httputil.WriteSuccess(w, map[string]interface{}{"revoked": true})
}

type principalRolesResponse struct {
	Roles        []access.RoleAssignment `json:"roles"`
	DirectGrants []access.DirectGrant    `json:"direct_grants"`
}

// listPrincipalRoles handles GET /api/v1/principals/{id}/roles. Callers
// may read their own assignments; reading another principal's requires
// administrative authority.
func (h *AccessHandlers) listPrincipalRoles(w http.ResponseWriter, r *http.Request) {
	principalID, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	caller := middleware.PrincipalFromRequest(r)
	if caller == nil {
		httputil.WriteForbidden(w, "permission denied")
		return
	}
	if *caller != principalID {
		if err := h.requireRoleAuthority(r, nil); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	roles, err := h.store.RolesFor(r.Context(), principalID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	grants, err := h.store.ListDirectGrants(r.Context(), principalID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, principalRolesResponse{
		Roles:        roles,
		DirectGrants: grants,
	})
}

func (h *AccessHandlers) requireRoleAuthority(r *http.Request, tenantID *uuid.UUID) error {
	return requireAuthority(r, h.store, tenantID)
}

// invalidatePrincipal drops cached decisions off the request path; the
// grant is already committed and the response must not wait on Redis.
func (h *AccessHandlers) invalidatePrincipal(r *http.Request, principalID uuid.UUID) {
	if h.cache == nil {
		return
	}
	async.SafeGoNoError(context.Background(), 5*time.Second, "decision cache invalidation", func(ctx context.Context) {
		h.cache.InvalidatePrincipal(ctx, principalID)
	})
}
