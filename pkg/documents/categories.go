package documents

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreateCategory inserts a category. Tenant-scoped categories must not
// collide with a system default name; name uniqueness within a scope is
// enforced by the database.
func (s *Store) CreateCategory(ctx context.Context, category *Category) error {
	if err := category.Validate(); err != nil {
		return err
	}

	if category.TenantID != nil {
		var collides bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM categories WHERE tenant_id IS NULL AND name = $1)`,
			category.Name,
		).Scan(&collides)
		if err != nil {
			return fmt.Errorf("failed to check system default collision: %w", err)
		}
		if collides {
			return &ValidationError{Field: "name", Reason: "name collides with a system default category"}
		}
	}

	query := `
		INSERT INTO categories (name, is_custom, tenant_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		category.Name,
		category.IsCustom,
		category.TenantID,
	).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "name", Reason: "category name already in use in this scope"}
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// GetCategory retrieves a category by ID
func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	query := `SELECT id, name, is_custom, tenant_id, created_at FROM categories WHERE id = $1`

	var category Category
	var tenantID uuid.NullUUID

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.IsCustom,
		&tenantID,
		&category.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "category", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	if tenantID.Valid {
		tid := tenantID.UUID
		category.TenantID = &tid
	}

	return &category, nil
}

// ListCategories retrieves the categories visible to a tenant: the system
// defaults plus that tenant's own. A nil tenantID lists only the defaults.
func (s *Store) ListCategories(ctx context.Context, tenantID *uuid.UUID) ([]Category, error) {
	query := `
		SELECT id, name, is_custom, tenant_id, created_at
		FROM categories
		WHERE tenant_id IS NULL OR tenant_id = $1
		ORDER BY is_custom ASC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var category Category
		var tid uuid.NullUUID

		if err := rows.Scan(&category.ID, &category.Name, &category.IsCustom, &tid, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}

		if tid.Valid {
			v := tid.UUID
			category.TenantID = &v
		}

		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// DeleteCategory removes a category. Documents referencing it keep existing
// with the reference cleared by the foreign key.
func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Kind: "category", ID: id}
	}

	return nil
}
