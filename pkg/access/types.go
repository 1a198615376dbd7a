package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the privilege level carried by a role assignment
type Role string

const (
	// RoleRegistered grants member-level access scoped to one tenant
	RoleRegistered Role = "registered"
	// RoleTenantAdmin grants administrative access scoped to one tenant
	RoleTenantAdmin Role = "tenant_admin"
	// RoleSuperAdmin grants unrestricted global access; never tenant-scoped
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether the role is a known value
func (r Role) Valid() bool {
	switch r {
	case RoleRegistered, RoleTenantAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ValidScope reports whether the role/scope combination is structurally
// allowed: super_admin must be global, every other role needs a tenant.
func (r Role) ValidScope(tenantID *uuid.UUID) bool {
	if r == RoleSuperAdmin {
		return tenantID == nil
	}
	return tenantID != nil
}

// RoleAssignment is a (principal, scope, role) grant. A nil TenantID means
// global scope, which is only valid for super_admin.
type RoleAssignment struct {
	ID          uuid.UUID  `json:"id"`
	PrincipalID uuid.UUID  `json:"principal_id"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	Role        Role       `json:"role"`
	GrantedAt   time.Time  `json:"granted_at"`
}

// ScopedTo reports whether the assignment is scoped to the given tenant
func (a RoleAssignment) ScopedTo(tenantID uuid.UUID) bool {
	return a.TenantID != nil && *a.TenantID == tenantID
}

// DirectGrant is registered-equivalent tenant access without a role row.
// Pruned whenever an admin-tier role is granted for the same pair.
type DirectGrant struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	GrantedAt   time.Time `json:"granted_at"`
}

// AccessLevel classifies who may read a document
type AccessLevel string

const (
	// LevelPublic allows everyone, authenticated or not
	LevelPublic AccessLevel = "public"
	// LevelPasscode allows anyone presenting the stored passcode
	LevelPasscode AccessLevel = "passcode"
	// LevelRegistered allows any authenticated principal
	LevelRegistered AccessLevel = "registered"
	// LevelOwnerRestricted allows members of the owning tenant, or only the
	// uploader for documents without a tenant
	LevelOwnerRestricted AccessLevel = "owner_restricted"
	// LevelOwnerAdminOnly allows only admins of the owning tenant
	LevelOwnerAdminOnly AccessLevel = "owner_admin_only"
)

// Valid reports whether the access level is a known value
func (l AccessLevel) Valid() bool {
	switch l {
	case LevelPublic, LevelPasscode, LevelRegistered, LevelOwnerRestricted, LevelOwnerAdminOnly:
		return true
	}
	return false
}

// Decision is the outcome of one access check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Decision reasons. Denials for missing and inactive documents share
// generic reasons so existence never leaks through the response body.
const (
	ReasonNotFound         = "document_not_available"
	ReasonInactive         = "document_not_available"
	ReasonPublic           = "public_document"
	ReasonNoPasscodeSet    = "no_passcode_set"
	ReasonPasscodeMatch    = "passcode_match"
	ReasonPasscodeMismatch = "passcode_mismatch"
	ReasonRegistered       = "registered_principal"
	ReasonAnonymous        = "authentication_required"
	ReasonSuperAdmin       = "super_admin"
	ReasonUploader         = "uploader"
	ReasonTenantMember     = "tenant_member"
	ReasonTenantAdmin      = "tenant_admin"
	ReasonDefaultDeny      = "access_denied"
)

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// ErrPermissionDenied marks a mutation rejected by an access check
var ErrPermissionDenied = errors.New("permission denied")

// ValidationError reports an invariant violation on a grant or revoke
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
