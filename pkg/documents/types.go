package documents

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// MetadataUploaderKey carries the uploading principal for documents without
// a tenant. Such a document with access level owner_restricted is private
// to its uploader.
const MetadataUploaderKey = "user_id"

// Document is a hosted document and its access classification
type Document struct {
	ID                 uuid.UUID              `json:"id"`
	Slug               string                 `json:"slug"`
	Title              string                 `json:"title"`
	TenantID           *uuid.UUID             `json:"tenant_id,omitempty"`
	AccessLevel        access.AccessLevel     `json:"access_level"`
	Passcode           *string                `json:"passcode,omitempty"`
	ChunkLimitOverride *int                   `json:"chunk_limit_override,omitempty"`
	ForcedModel        *string                `json:"forced_model,omitempty"`
	CategoryID         *uuid.UUID             `json:"category_id,omitempty"`
	Active             bool                   `json:"active"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate checks the document's field invariants before any write
func (d *Document) Validate() error {
	if d.Slug == "" {
		return &ValidationError{Field: "slug", Reason: "slug is required"}
	}
	if !slugPattern.MatchString(d.Slug) {
		return &ValidationError{Field: "slug", Reason: "slug must be lowercase letters, digits, and hyphens"}
	}
	if d.Title == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if !d.AccessLevel.Valid() {
		return &ValidationError{Field: "access_level", Reason: fmt.Sprintf("unknown access level %q", d.AccessLevel)}
	}
	if d.ChunkLimitOverride != nil {
		if *d.ChunkLimitOverride < tenants.MinChunkLimit || *d.ChunkLimitOverride > tenants.MaxChunkLimit {
			return &ValidationError{
				Field:  "chunk_limit_override",
				Reason: fmt.Sprintf("must be between %d and %d", tenants.MinChunkLimit, tenants.MaxChunkLimit),
			}
		}
	}
	if d.Passcode != nil && *d.Passcode == "" {
		return &ValidationError{Field: "passcode", Reason: "passcode cannot be empty when set"}
	}
	return nil
}

// UploaderID extracts the uploading principal from metadata, if present
func (d *Document) UploaderID() *uuid.UUID {
	raw, ok := d.Metadata[MetadataUploaderKey]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// EffectiveChunkLimit resolves the chunk limit for a document: the
// per-document override wins, then the tenant default, then the global
// default.
func EffectiveChunkLimit(doc *Document, tenant *tenants.Tenant) int {
	if doc.ChunkLimitOverride != nil {
		return *doc.ChunkLimitOverride
	}
	if tenant != nil && tenant.DefaultChunkLimit > 0 {
		return tenant.DefaultChunkLimit
	}
	return tenants.DefaultChunkLimit
}

// EffectiveModel resolves the forced model for a document: the per-document
// override wins, then the tenant override, then none.
func EffectiveModel(doc *Document, tenant *tenants.Tenant) *string {
	if doc.ForcedModel != nil {
		return doc.ForcedModel
	}
	if tenant != nil {
		return tenant.ForcedModel
	}
	return nil
}

// Category groups documents. A nil TenantID marks a system-wide default
// visible to every tenant.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	IsCustom  bool       `json:"is_custom"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks the category's field invariants
func (c *Category) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if len(c.Name) > 255 {
		return &ValidationError{Field: "name", Reason: "name too long"}
	}
	return nil
}

// NotFoundError indicates the referenced document or category does not exist
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError reports an invariant violation on a write
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
