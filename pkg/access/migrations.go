package access

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all role store migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_assignments (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					principal_id UUID NOT NULL,
					tenant_id UUID REFERENCES tenants(id) ON DELETE CASCADE,
					role VARCHAR(32) NOT NULL CHECK (role IN ('registered', 'tenant_admin', 'super_admin')),
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK ((role = 'super_admin') = (tenant_id IS NULL))
				);

				CREATE UNIQUE INDEX idx_role_assignments_unique
					ON role_assignments(principal_id, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid), role);
				CREATE INDEX idx_role_assignments_principal_id ON role_assignments(principal_id);
				CREATE INDEX idx_role_assignments_tenant_id ON role_assignments(tenant_id);
			`,
		},
		{
			Version:     2,
			Description: "Create tenant_access_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_access_grants (
					principal_id UUID NOT NULL,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (principal_id, tenant_id)
				);

				CREATE INDEX idx_tenant_access_grants_tenant_id ON tenant_access_grants(tenant_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS access_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM access_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO access_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
