package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hivedocs/hivedocs/pkg/access"
)

const documentColumns = `
	id, slug, title, tenant_id, access_level, passcode,
	chunk_limit_override, forced_model, category_id, active,
	metadata, created_at, updated_at
`

// QuotaChecker gates document creation inside the insert transaction
type QuotaChecker interface {
	CheckDocumentQuotaTx(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) error
}

// Store persists documents and categories
type Store struct {
	db     *sql.DB
	quotas QuotaChecker
}

// NewStore creates a new document store. quotas may be nil to disable the
// creation-time quota gate (tests only).
func NewStore(db *sql.DB, quotas QuotaChecker) *Store {
	return &Store{db: db, quotas: quotas}
}

// Create inserts a document. For tenant-owned documents the plan quota is
// checked inside the same transaction against a locked tenant row, so
// concurrent creates for one tenant serialize and cannot both pass on a
// stale count.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if doc.TenantID != nil && s.quotas != nil {
		if err := s.quotas.CheckDocumentQuotaTx(ctx, tx, *doc.TenantID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO documents (slug, title, tenant_id, access_level, passcode,
			chunk_limit_override, forced_model, category_id, active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRowContext(ctx, query,
		doc.Slug,
		doc.Title,
		doc.TenantID,
		doc.AccessLevel,
		doc.Passcode,
		doc.ChunkLimitOverride,
		doc.ForcedModel,
		doc.CategoryID,
		doc.Active,
		string(metadataJSON),
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "slug", Reason: "slug already in use"}
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document creation: %w", err)
	}

	return nil
}

// Get retrieves a document by ID. Inactive documents are only returned when
// includeInactive is set (admin reads).
func (s *Store) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	if !includeInactive {
		query += ` AND active = TRUE`
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "document", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetBySlug retrieves an active document by slug
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE slug = $1 AND active = TRUE`, documentColumns)

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "document"}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List retrieves documents, optionally filtered to one tenant
func (s *Store) List(ctx context.Context, tenantID *uuid.UUID, includeInactive bool) ([]Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE 1=1`, documentColumns)
	var args []interface{}

	if tenantID != nil {
		args = append(args, *tenantID)
		query += fmt.Sprintf(` AND tenant_id = $%d`, len(args))
	}
	if !includeInactive {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

// Update rewrites a document's mutable fields
func (s *Store) Update(ctx context.Context, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE documents
		SET slug = $1, title = $2, tenant_id = $3, access_level = $4,
			passcode = $5, chunk_limit_override = $6, forced_model = $7,
			category_id = $8, active = $9, metadata = $10, updated_at = $11
		WHERE id = $12
	`

	doc.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		doc.Slug,
		doc.Title,
		doc.TenantID,
		doc.AccessLevel,
		doc.Passcode,
		doc.ChunkLimitOverride,
		doc.ForcedModel,
		doc.CategoryID,
		doc.Active,
		string(metadataJSON),
		doc.UpdatedAt,
		doc.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "slug", Reason: "slug already in use"}
		}
		return fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Kind: "document", ID: doc.ID}
	}

	return nil
}

// SoftDelete hides a document from normal access checks. The row survives
// so admins can still read and restore it.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET active = FALSE, updated_at = NOW() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Kind: "document", ID: id}
	}

	return nil
}

// AccessInfo resolves the minimal document view for an access check.
// Returns (nil, nil) for unknown documents; the decider denies those.
func (s *Store) AccessInfo(ctx context.Context, documentID uuid.UUID) (*access.DocumentInfo, error) {
	query := `
		SELECT id, tenant_id, access_level, passcode, active, metadata
		FROM documents
		WHERE id = $1
	`

	info, err := scanAccessInfo(s.db.QueryRowContext(ctx, query, documentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

// AccessInfoBatch resolves access views for a set of documents in one
// query. Unknown IDs are simply absent from the result.
func (s *Store) AccessInfoBatch(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]*access.DocumentInfo, error) {
	result := make(map[uuid.UUID]*access.DocumentInfo, len(documentIDs))
	if len(documentIDs) == 0 {
		return result, nil
	}

	ids := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT id, tenant_id, access_level, passcode, active, metadata
		FROM documents
		WHERE id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to batch resolve documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		info, err := scanAccessInfo(rows)
		if err != nil {
			return nil, err
		}
		result[info.ID] = info
	}

	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var tenantID, categoryID uuid.NullUUID
	var passcode, forcedModel sql.NullString
	var chunkLimit sql.NullInt64
	var metadataJSON []byte

	err := row.Scan(
		&doc.ID,
		&doc.Slug,
		&doc.Title,
		&tenantID,
		&doc.AccessLevel,
		&passcode,
		&chunkLimit,
		&forcedModel,
		&categoryID,
		&doc.Active,
		&metadataJSON,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	if tenantID.Valid {
		tid := tenantID.UUID
		doc.TenantID = &tid
	}
	if categoryID.Valid {
		cid := categoryID.UUID
		doc.CategoryID = &cid
	}
	if passcode.Valid {
		doc.Passcode = &passcode.String
	}
	if forcedModel.Valid {
		doc.ForcedModel = &forcedModel.String
	}
	if chunkLimit.Valid {
		limit := int(chunkLimit.Int64)
		doc.ChunkLimitOverride = &limit
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &doc, nil
}

func scanAccessInfo(row scanner) (*access.DocumentInfo, error) {
	var info access.DocumentInfo
	var tenantID uuid.NullUUID
	var passcode sql.NullString
	var metadataJSON []byte

	err := row.Scan(&info.ID, &tenantID, &info.AccessLevel, &passcode, &info.Active, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document access info: %w", err)
	}

	if tenantID.Valid {
		tid := tenantID.UUID
		info.TenantID = &tid
	}
	if passcode.Valid {
		info.Passcode = &passcode.String
	}
	if len(metadataJSON) > 0 {
		var metadata map[string]interface{}
		if err := json.Unmarshal(metadataJSON, &metadata); err == nil {
			doc := Document{Metadata: metadata}
			info.UploaderID = doc.UploaderID()
		}
	}

	return &info, nil
}

func metadataOrEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
