package documents

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hivedocs/hivedocs/pkg/observability"
)

//go:embed default_categories.yaml
var defaultCategoriesYAML []byte

type seedFile struct {
	Categories []string `yaml:"categories"`
}

// SeedDefaultCategories inserts the system default categories once.
// Re-running is a no-op: existing names are left untouched.
func SeedDefaultCategories(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	var seed seedFile
	if err := yaml.Unmarshal(defaultCategoriesYAML, &seed); err != nil {
		return fmt.Errorf("failed to parse default categories: %w", err)
	}

	seeded := 0
	for _, name := range seed.Categories {
		result, err := db.ExecContext(ctx, `
			INSERT INTO categories (name, is_custom, tenant_id)
			VALUES ($1, FALSE, NULL)
			ON CONFLICT DO NOTHING
		`, name)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", name, err)
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			seeded++
		}
	}

	if seeded > 0 {
		logger.WithField("seeded", seeded).Info("Seeded default categories")
	}

	return nil
}
