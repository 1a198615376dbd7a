package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const tenantColumns = `
	id, slug, display_name, plan_tier, custom_domain,
	logo_url, accent_color, cover_image_url, intro_message,
	default_chunk_limit, forced_model, created_at, updated_at
`

// Service exposes tenant registry operations
type Service interface {
	Create(ctx context.Context, tenant *Tenant) error
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	Quota(ctx context.Context, id uuid.UUID) (*QuotaStatus, error)
	CanAddDocument(ctx context.Context, id uuid.UUID) (bool, error)
	CanUseVoiceTraining(ctx context.Context, id uuid.UUID) (bool, error)
}

// PostgresService implements Service on PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new tenant service
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new tenant. Slug and custom domain uniqueness are
// enforced by the database; violations surface as ValidationErrors.
func (s *PostgresService) Create(ctx context.Context, tenant *Tenant) error {
	if tenant.PlanTier == "" {
		tenant.PlanTier = DefaultTier
	}
	if tenant.DefaultChunkLimit == 0 {
		tenant.DefaultChunkLimit = DefaultChunkLimit
	}
	if err := tenant.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (slug, display_name, plan_tier, custom_domain,
			logo_url, accent_color, cover_image_url, intro_message,
			default_chunk_limit, forced_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tenant.Slug,
		tenant.DisplayName,
		tenant.PlanTier,
		tenant.CustomDomain,
		tenant.Branding.LogoURL,
		tenant.Branding.AccentColor,
		tenant.Branding.CoverImageURL,
		tenant.Branding.IntroMessage,
		tenant.DefaultChunkLimit,
		tenant.ForcedModel,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "slug", Reason: "slug or custom domain already in use"}
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

// Get retrieves a tenant by ID
func (s *PostgresService) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id), id)
}

// GetBySlug retrieves a tenant by slug
func (s *PostgresService) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE slug = $1`, tenantColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, slug), uuid.Nil)
}

// List retrieves all tenants ordered by slug
func (s *PostgresService) List(ctx context.Context) ([]Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants ORDER BY slug ASC`, tenantColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *tenant)
	}

	return tenants, rows.Err()
}

// Update rewrites a tenant's mutable fields
func (s *PostgresService) Update(ctx context.Context, tenant *Tenant) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE tenants
		SET slug = $1, display_name = $2, plan_tier = $3, custom_domain = $4,
			logo_url = $5, accent_color = $6, cover_image_url = $7,
			intro_message = $8, default_chunk_limit = $9, forced_model = $10,
			updated_at = $11
		WHERE id = $12
	`

	tenant.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		tenant.Slug,
		tenant.DisplayName,
		tenant.PlanTier,
		tenant.CustomDomain,
		tenant.Branding.LogoURL,
		tenant.Branding.AccentColor,
		tenant.Branding.CoverImageURL,
		tenant.Branding.IntroMessage,
		tenant.DefaultChunkLimit,
		tenant.ForcedModel,
		tenant.UpdatedAt,
		tenant.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "slug", Reason: "slug or custom domain already in use"}
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: tenant.ID}
	}

	return nil
}

// Delete removes a tenant. Owned documents keep existing with their tenant
// reference cleared; role assignments and direct grants cascade away. Both
// are foreign key actions, so one statement covers the whole teardown.
func (s *PostgresService) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id}
	}

	return nil
}

func (s *PostgresService) scanOne(row *sql.Row, id uuid.UUID) (*Tenant, error) {
	tenant, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row scanner) (*Tenant, error) {
	var tenant Tenant
	var customDomain, logoURL, accentColor, coverImageURL, introMessage, forcedModel sql.NullString

	err := row.Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.DisplayName,
		&tenant.PlanTier,
		&customDomain,
		&logoURL,
		&accentColor,
		&coverImageURL,
		&introMessage,
		&tenant.DefaultChunkLimit,
		&forcedModel,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	if customDomain.Valid {
		tenant.CustomDomain = &customDomain.String
	}
	if logoURL.Valid {
		tenant.Branding.LogoURL = &logoURL.String
	}
	if accentColor.Valid {
		tenant.Branding.AccentColor = &accentColor.String
	}
	if coverImageURL.Valid {
		tenant.Branding.CoverImageURL = &coverImageURL.String
	}
	if introMessage.Valid {
		tenant.Branding.IntroMessage = &introMessage.String
	}
	if forcedModel.Valid {
		tenant.ForcedModel = &forcedModel.String
	}

	return &tenant, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
