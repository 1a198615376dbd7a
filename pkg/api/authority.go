package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/middleware"
)

// roleReader resolves role assignments for authority checks
type roleReader interface {
	RolesFor(ctx context.Context, principalID uuid.UUID) ([]access.RoleAssignment, error)
}

// requireAuthority checks that the caller may administer the given scope.
// A nil tenant scope means global authority: only super_admin qualifies.
// Tenant scopes accept a tenant_admin of that tenant or a super_admin.
func requireAuthority(r *http.Request, roles roleReader, tenantID *uuid.UUID) error {
	caller := middleware.PrincipalFromRequest(r)
	if caller == nil {
		return access.ErrPermissionDenied
	}

	assignments, err := roles.RolesFor(r.Context(), *caller)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		if a.Role == access.RoleSuperAdmin && a.TenantID == nil {
			return nil
		}
		if tenantID != nil && a.Role == access.RoleTenantAdmin && a.ScopedTo(*tenantID) {
			return nil
		}
	}

	return access.ErrPermissionDenied
}
