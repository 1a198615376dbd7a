package tenants

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// PlanTier is a tenant's subscription level
type PlanTier string

const (
	TierFree       PlanTier = "free"
	TierPro        PlanTier = "pro"
	TierEnterprise PlanTier = "enterprise"
	TierUnlimited  PlanTier = "unlimited"
)

// DefaultTier is applied when a tenant's tier is missing or unknown
const DefaultTier = TierPro

// Valid reports whether the tier is a known value
func (t PlanTier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise, TierUnlimited:
		return true
	}
	return false
}

// Normalize maps unknown or empty tiers to the default
func (t PlanTier) Normalize() PlanTier {
	if !t.Valid() {
		return DefaultTier
	}
	return t
}

// DocumentCeiling returns the active-document cap for the tier. The second
// return is false for unlimited.
func (t PlanTier) DocumentCeiling() (int, bool) {
	switch t.Normalize() {
	case TierFree:
		return 1, true
	case TierPro:
		return 5, true
	case TierEnterprise:
		return 10, true
	default:
		return 0, false
	}
}

// AllowsVoiceTraining reports whether the tier includes voice training
func (t PlanTier) AllowsVoiceTraining() bool {
	switch t.Normalize() {
	case TierEnterprise, TierUnlimited:
		return true
	}
	return false
}

// Branding holds a tenant's presentation overrides
type Branding struct {
	LogoURL       *string `json:"logo_url,omitempty"`
	AccentColor   *string `json:"accent_color,omitempty"`
	CoverImageURL *string `json:"cover_image_url,omitempty"`
	IntroMessage  *string `json:"intro_message,omitempty"`
}

// Tenant is an isolated customer group owning documents and branding
type Tenant struct {
	ID                uuid.UUID `json:"id"`
	Slug              string    `json:"slug"`
	DisplayName       string    `json:"display_name"`
	PlanTier          PlanTier  `json:"plan_tier"`
	CustomDomain      *string   `json:"custom_domain,omitempty"`
	Branding          Branding  `json:"branding"`
	DefaultChunkLimit int       `json:"default_chunk_limit"`
	ForcedModel       *string   `json:"forced_model,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Chunk limits are clamped to this range everywhere they appear
const (
	MinChunkLimit     = 1
	MaxChunkLimit     = 200
	DefaultChunkLimit = 20
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate checks the tenant's field invariants before any write
func (t *Tenant) Validate() error {
	if t.Slug == "" {
		return &ValidationError{Field: "slug", Reason: "slug is required"}
	}
	if !slugPattern.MatchString(t.Slug) {
		return &ValidationError{Field: "slug", Reason: "slug must be lowercase letters, digits, and hyphens"}
	}
	if t.DisplayName == "" {
		return &ValidationError{Field: "display_name", Reason: "display name is required"}
	}
	if t.PlanTier != "" && !t.PlanTier.Valid() {
		return &ValidationError{Field: "plan_tier", Reason: fmt.Sprintf("unknown plan tier %q", t.PlanTier)}
	}
	if t.DefaultChunkLimit < MinChunkLimit || t.DefaultChunkLimit > MaxChunkLimit {
		return &ValidationError{
			Field:  "default_chunk_limit",
			Reason: fmt.Sprintf("must be between %d and %d", MinChunkLimit, MaxChunkLimit),
		}
	}
	if t.CustomDomain != nil && *t.CustomDomain == "" {
		return &ValidationError{Field: "custom_domain", Reason: "custom domain cannot be empty when set"}
	}
	return nil
}

// QuotaStatus reports a tenant's quota position for the quota endpoint
type QuotaStatus struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	PlanTier           PlanTier  `json:"plan_tier"`
	ActiveDocuments    int       `json:"active_documents"`
	DocumentCeiling    *int      `json:"document_ceiling,omitempty"` // nil for unlimited
	CanAddDocument     bool      `json:"can_add_document"`
	VoiceTrainingAvail bool      `json:"voice_training_available"`
}

// QuotaExceededError indicates a plan-tier ceiling was hit
type QuotaExceededError struct {
	Resource string
	Current  int64
	Ceiling  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d", e.Resource, e.Current, e.Ceiling)
}

// IsQuotaExceeded checks if an error is a quota exceeded error
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// NotFoundError indicates the referenced tenant does not exist
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tenant not found: %s", e.ID)
}

// IsNotFound checks if an error is a tenant not found error
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError reports an invariant violation on a tenant write
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
