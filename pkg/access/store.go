package access

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Store persists role assignments and direct tenant access grants
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CleanupResult reports the redundant rows removed alongside a grant
type CleanupResult struct {
	DirectGrantsRemoved    int64
	RegisteredRolesRemoved int64
}

// RolesFor retrieves all role assignments held by a principal
func (s *Store) RolesFor(ctx context.Context, principalID uuid.UUID) ([]RoleAssignment, error) {
	query := `
		SELECT id, principal_id, tenant_id, role, granted_at
		FROM role_assignments
		WHERE principal_id = $1
		ORDER BY granted_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var tenantID uuid.NullUUID

		if err := rows.Scan(&a.ID, &a.PrincipalID, &tenantID, &a.Role, &a.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}

		if tenantID.Valid {
			tid := tenantID.UUID
			a.TenantID = &tid
		}

		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// HasDirectGrant reports whether a direct tenant access grant exists
func (s *Store) HasDirectGrant(ctx context.Context, principalID, tenantID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tenant_access_grants
			WHERE principal_id = $1 AND tenant_id = $2
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, principalID, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check direct grant: %w", err)
	}

	return exists, nil
}

// ListDirectGrants retrieves all direct grants held by a principal
func (s *Store) ListDirectGrants(ctx context.Context, principalID uuid.UUID) ([]DirectGrant, error) {
	query := `
		SELECT principal_id, tenant_id, granted_at
		FROM tenant_access_grants
		WHERE principal_id = $1
		ORDER BY granted_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct grants: %w", err)
	}
	defer rows.Close()

	var grants []DirectGrant
	for rows.Next() {
		var g DirectGrant
		if err := rows.Scan(&g.PrincipalID, &g.TenantID, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan direct grant: %w", err)
		}
		grants = append(grants, g)
	}

	return grants, rows.Err()
}

// Grant creates a role assignment and removes the rows it makes redundant,
// all in one transaction. Granting tenant_admin for a tenant removes that
// tenant's direct grant and registered role for the principal; granting
// super_admin removes every direct grant and registered role the principal
// holds. The insert is idempotent: re-granting an existing assignment is a
// no-op that still runs the cleanup.
func (s *Store) Grant(ctx context.Context, principalID uuid.UUID, tenantID *uuid.UUID, role Role) (CleanupResult, error) {
	var result CleanupResult

	if !role.Valid() {
		return result, &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if !role.ValidScope(tenantID) {
		if role == RoleSuperAdmin {
			return result, &ValidationError{Field: "tenant_id", Reason: "super_admin must have global scope"}
		}
		return result, &ValidationError{Field: "tenant_id", Reason: fmt.Sprintf("role %q requires a tenant scope", role)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO role_assignments (principal_id, tenant_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insertQuery, principalID, tenantID, role); err != nil {
		return result, fmt.Errorf("failed to insert role assignment: %w", err)
	}

	switch role {
	case RoleTenantAdmin:
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tenant_access_grants WHERE principal_id = $1 AND tenant_id = $2`,
			principalID, *tenantID,
		)
		if err != nil {
			return result, fmt.Errorf("failed to prune direct grant: %w", err)
		}
		result.DirectGrantsRemoved, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx,
			`DELETE FROM role_assignments WHERE principal_id = $1 AND tenant_id = $2 AND role = $3`,
			principalID, *tenantID, RoleRegistered,
		)
		if err != nil {
			return result, fmt.Errorf("failed to prune registered role: %w", err)
		}
		result.RegisteredRolesRemoved, _ = res.RowsAffected()

	case RoleSuperAdmin:
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tenant_access_grants WHERE principal_id = $1`,
			principalID,
		)
		if err != nil {
			return result, fmt.Errorf("failed to prune direct grants: %w", err)
		}
		result.DirectGrantsRemoved, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx,
			`DELETE FROM role_assignments WHERE principal_id = $1 AND role = $2`,
			principalID, RoleRegistered,
		)
		if err != nil {
			return result, fmt.Errorf("failed to prune registered roles: %w", err)
		}
		result.RegisteredRolesRemoved, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit grant: %w", err)
	}

	return result, nil
}

// Revoke deletes a role assignment. Revoking an assignment that does not
// exist is a no-op.
func (s *Store) Revoke(ctx context.Context, principalID uuid.UUID, tenantID *uuid.UUID, role Role) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if !role.ValidScope(tenantID) {
		return &ValidationError{Field: "tenant_id", Reason: "role/scope combination is invalid"}
	}

	query := `
		DELETE FROM role_assignments
		WHERE principal_id = $1
		  AND role = $2
		  AND (($3::uuid IS NULL AND tenant_id IS NULL) OR tenant_id = $3)
	`
	if _, err := s.db.ExecContext(ctx, query, principalID, role, tenantID); err != nil {
		return fmt.Errorf("failed to revoke role assignment: %w", err)
	}

	return nil
}

// GrantDirectAccess creates a direct tenant access grant. Idempotent.
func (s *Store) GrantDirectAccess(ctx context.Context, principalID, tenantID uuid.UUID) error {
	query := `
		INSERT INTO tenant_access_grants (principal_id, tenant_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, principalID, tenantID); err != nil {
		return fmt.Errorf("failed to grant direct access: %w", err)
	}

	return nil
}

// RevokeDirectAccess deletes a direct tenant access grant
func (s *Store) RevokeDirectAccess(ctx context.Context, principalID, tenantID uuid.UUID) error {
	query := `DELETE FROM tenant_access_grants WHERE principal_id = $1 AND tenant_id = $2`
	if _, err := s.db.ExecContext(ctx, query, principalID, tenantID); err != nil {
		return fmt.Errorf("failed to revoke direct access: %w", err)
	}

	return nil
}
