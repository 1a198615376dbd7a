package documents

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

// GetMigrations returns all document registry migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create categories table",
			SQL: `
				CREATE TABLE IF NOT EXISTS categories (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name VARCHAR(255) NOT NULL,
					is_custom BOOLEAN NOT NULL DEFAULT TRUE,
					tenant_id UUID REFERENCES tenants(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX idx_categories_name_scope
					ON categories(name, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid));
				CREATE INDEX idx_categories_tenant_id ON categories(tenant_id);
			`,
		},
		{
			Version:     2,
			Description: "Create documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS documents (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					slug VARCHAR(255) NOT NULL UNIQUE,
					title VARCHAR(1024) NOT NULL,
					tenant_id UUID REFERENCES tenants(id) ON DELETE SET NULL,
					access_level VARCHAR(32) NOT NULL DEFAULT 'owner_restricted'
						CHECK (access_level IN ('public', 'passcode', 'registered', 'owner_restricted', 'owner_admin_only')),
					passcode TEXT,
					chunk_limit_override INT
						CHECK (chunk_limit_override IS NULL OR chunk_limit_override BETWEEN 1 AND 200),
					forced_model VARCHAR(255),
					category_id UUID REFERENCES categories(id) ON DELETE SET NULL,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_documents_tenant_id ON documents(tenant_id);
				CREATE INDEX idx_documents_access_level ON documents(access_level);
				CREATE INDEX idx_documents_active ON documents(active);
				CREATE INDEX idx_documents_category_id ON documents(category_id);
			`,
		},
		{
			Version:     3,
			Description: "Create document_chunks table",
			SQL: `
				CREATE EXTENSION IF NOT EXISTS vector;

				CREATE TABLE IF NOT EXISTS document_chunks (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
					chunk_index INT NOT NULL,
					content TEXT NOT NULL,
					embedding vector(1536),
					search_vector tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(document_id, chunk_index)
				);

				CREATE INDEX idx_document_chunks_document_id ON document_chunks(document_id);
				CREATE INDEX idx_document_chunks_search_vector ON document_chunks USING GIN(search_vector);
				CREATE INDEX idx_document_chunks_embedding ON document_chunks
					USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS document_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM document_migrations ORDER BY version")
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
			"INSERT INTO document_migrations (version, description) VALUES ($1, $2)",
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
