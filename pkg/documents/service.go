package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/observability"
)

// roleReader resolves role assignments for permission gating
type roleReader interface {
	RolesFor(ctx context.Context, principalID uuid.UUID) ([]access.RoleAssignment, error)
}

// decisionInvalidator drops cached access decisions after a mutation
type decisionInvalidator interface {
	InvalidateDocument(ctx context.Context, documentID uuid.UUID)
}

// Service gates document registry mutations behind role checks. Reads of
// document content go through the access decider; this service covers the
// administrative surface. Permission failures for non-admin callers collapse
// into a generic denial so existence never leaks; admins get the NotFound
// distinction.
type Service struct {
	store  *Store
	roles  roleReader
	cache  decisionInvalidator
	logger *observability.Logger
}

// NewService creates a document service. cache may be nil.
func NewService(store *Store, roles roleReader, cache decisionInvalidator, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		roles:  roles,
		cache:  cache,
		logger: logger,
	}
}

// Create adds a document. Tenant documents require tenant_admin of that
// tenant or super_admin and consume the plan quota. Documents without a
// tenant are private uploads: any authenticated principal may create one
// and becomes its uploader.
func (s *Service) Create(ctx context.Context, principalID *uuid.UUID, doc *Document) error {
	if principalID == nil {
		return access.ErrPermissionDenied
	}

	roles, err := s.roles.RolesFor(ctx, *principalID)
	if err != nil {
		return fmt.Errorf("failed to resolve roles: %w", err)
	}

	if doc.TenantID != nil {
		if !isSuperAdmin(roles) && !isTenantAdmin(roles, *doc.TenantID) {
			return access.ErrPermissionDenied
		}
	} else {
		// Private upload: stamp the uploader
		if doc.Metadata == nil {
			doc.Metadata = map[string]interface{}{}
		}
		doc.Metadata[MetadataUploaderKey] = principalID.String()
		if doc.AccessLevel == "" {
			doc.AccessLevel = access.LevelOwnerRestricted
		}
	}

	if !doc.Active {
		doc.Active = true
	}

	return s.store.Create(ctx, doc)
}

// Get retrieves a document for the administrative surface. Admins of the
// owning tenant and super_admins see inactive documents; the uploader sees
// a private document; everyone else is denied generically.
func (s *Service) Get(ctx context.Context, principalID *uuid.UUID, id uuid.UUID) (*Document, error) {
	roles, isAdmin, err := s.adminRoles(ctx, principalID)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, id, true)
	if err != nil {
		return nil, s.collapse(isAdmin, err)
	}

	if s.mayAdminister(roles, principalID, doc) {
		return doc, nil
	}
	return nil, access.ErrPermissionDenied
}

// List retrieves documents for a tenant. Requires tenant_admin of that
// tenant or super_admin; only admins may include inactive documents.
func (s *Service) List(ctx context.Context, principalID *uuid.UUID, tenantID *uuid.UUID, includeInactive bool) ([]Document, error) {
	roles, _, err := s.adminRoles(ctx, principalID)
	if err != nil {
		return nil, err
	}

	if !isSuperAdmin(roles) {
		if tenantID == nil || !isTenantAdmin(roles, *tenantID) {
			return nil, access.ErrPermissionDenied
		}
	}

	return s.store.List(ctx, tenantID, includeInactive)
}

// Update rewrites a document. Ownership changes require administrative
// rights over both the current and the new tenant.
func (s *Service) Update(ctx context.Context, principalID *uuid.UUID, doc *Document) error {
	roles, isAdmin, err := s.adminRoles(ctx, principalID)
	if err != nil {
		return err
	}

	existing, err := s.store.Get(ctx, doc.ID, true)
	if err != nil {
		return s.collapse(isAdmin, err)
	}

	if !s.mayAdminister(roles, principalID, existing) {
		return access.ErrPermissionDenied
	}

	if !sameTenant(existing.TenantID, doc.TenantID) && doc.TenantID != nil {
		if !isSuperAdmin(roles) && !isTenantAdmin(roles, *doc.TenantID) {
			return access.ErrPermissionDenied
		}
	}

	// The uploader stamp survives metadata rewrites
	if uploader := existing.UploaderID(); uploader != nil {
		if doc.Metadata == nil {
			doc.Metadata = map[string]interface{}{}
		}
		if _, ok := doc.Metadata[MetadataUploaderKey]; !ok {
			doc.Metadata[MetadataUploaderKey] = uploader.String()
		}
	}

	if err := s.store.Update(ctx, doc); err != nil {
		return err
	}

	s.invalidate(ctx, doc.ID)
	return nil
}

// Delete soft-deletes a document
func (s *Service) Delete(ctx context.Context, principalID *uuid.UUID, id uuid.UUID) error {
	roles, isAdmin, err := s.adminRoles(ctx, principalID)
	if err != nil {
		return err
	}

	existing, err := s.store.Get(ctx, id, true)
	if err != nil {
		return s.collapse(isAdmin, err)
	}

	if !s.mayAdminister(roles, principalID, existing) {
		return access.ErrPermissionDenied
	}

	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

// CreateCategory adds a category. Tenant categories require tenant_admin of
// that tenant or super_admin; system defaults require super_admin.
func (s *Service) CreateCategory(ctx context.Context, principalID *uuid.UUID, category *Category) error {
	roles, _, err := s.adminRoles(ctx, principalID)
	if err != nil {
		return err
	}

	if category.TenantID == nil {
		if !isSuperAdmin(roles) {
			return access.ErrPermissionDenied
		}
	} else if !isSuperAdmin(roles) && !isTenantAdmin(roles, *category.TenantID) {
		return access.ErrPermissionDenied
	}

	if category.TenantID != nil {
		category.IsCustom = true
	}

	return s.store.CreateCategory(ctx, category)
}

// ListCategories retrieves the categories visible to a tenant. Open to any
// authenticated principal.
func (s *Service) ListCategories(ctx context.Context, principalID *uuid.UUID, tenantID *uuid.UUID) ([]Category, error) {
	if principalID == nil {
		return nil, access.ErrPermissionDenied
	}
	return s.store.ListCategories(ctx, tenantID)
}

// DeleteCategory removes a category under the same rules as creation
func (s *Service) DeleteCategory(ctx context.Context, principalID *uuid.UUID, id uuid.UUID) error {
	roles, isAdmin, err := s.adminRoles(ctx, principalID)
	if err != nil {
		return err
	}

	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return s.collapse(isAdmin, err)
	}

	if category.TenantID == nil {
		if !isSuperAdmin(roles) {
			return access.ErrPermissionDenied
		}
	} else if !isSuperAdmin(roles) && !isTenantAdmin(roles, *category.TenantID) {
		return access.ErrPermissionDenied
	}

	return s.store.DeleteCategory(ctx, id)
}

func (s *Service) adminRoles(ctx context.Context, principalID *uuid.UUID) ([]access.RoleAssignment, bool, error) {
	if principalID == nil {
		return nil, false, access.ErrPermissionDenied
	}

	roles, err := s.roles.RolesFor(ctx, *principalID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve roles: %w", err)
	}

	isAdmin := false
	for _, a := range roles {
		if a.Role == access.RoleSuperAdmin || a.Role == access.RoleTenantAdmin {
			isAdmin = true
			break
		}
	}

	return roles, isAdmin, nil
}

// mayAdminister reports whether the principal may mutate the document:
// super_admin always, tenant_admin for the owning tenant, or the uploader
// for private documents.
func (s *Service) mayAdminister(roles []access.RoleAssignment, principalID *uuid.UUID, doc *Document) bool {
	if isSuperAdmin(roles) {
		return true
	}
	if doc.TenantID != nil {
		return isTenantAdmin(roles, *doc.TenantID)
	}
	uploader := doc.UploaderID()
	return uploader != nil && principalID != nil && *uploader == *principalID
}

// collapse hides NotFound from non-admin callers behind a generic denial
func (s *Service) collapse(isAdmin bool, err error) error {
	if isAdmin && IsNotFound(err) {
		return err
	}
	if IsNotFound(err) {
		return access.ErrPermissionDenied
	}
	return err
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateDocument(ctx, id)
	}
}

func isSuperAdmin(roles []access.RoleAssignment) bool {
	for _, a := range roles {
		if a.Role == access.RoleSuperAdmin && a.TenantID == nil {
			return true
		}
	}
	return false
}

func isTenantAdmin(roles []access.RoleAssignment, tenantID uuid.UUID) bool {
	for _, a := range roles {
		if a.Role == access.RoleTenantAdmin && a.ScopedTo(tenantID) {
			return true
		}
	}
	return false
}

func sameTenant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
