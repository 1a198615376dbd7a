package tenants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentCeiling(t *testing.T) {
	tests := []struct {
		tier    PlanTier
		ceiling int
		capped  bool
	}{
		{TierFree, 1, true},
		{TierPro, 5, true},
		{TierEnterprise, 10, true},
		{TierUnlimited, 0, false},
		// Unknown and empty tiers fall back to pro
		{PlanTier("gold"), 5, true},
		{PlanTier(""), 5, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			ceiling, capped := tt.tier.DocumentCeiling()
			assert.Equal(t, tt.capped, capped)
			if capped {
				assert.Equal(t, tt.ceiling, ceiling)
			}
		})
	}
}

func TestAllowsVoiceTraining(t *testing.T) {
	assert.False(t, TierFree.AllowsVoiceTraining())
	assert.False(t, TierPro.AllowsVoiceTraining())
	assert.True(t, TierEnterprise.AllowsVoiceTraining())
	assert.True(t, TierUnlimited.AllowsVoiceTraining())
	// Unknown tier defaults to pro
	assert.False(t, PlanTier("gold").AllowsVoiceTraining())
}

func TestTenantValidate(t *testing.T) {
	valid := Tenant{
		Slug:              "acme-corp",
		DisplayName:       "Acme Corp",
		PlanTier:          TierPro,
		DefaultChunkLimit: 20,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Tenant)
		field  string
	}{
		{"empty slug", func(tn *Tenant) { tn.Slug = "" }, "slug"},
		{"uppercase slug", func(tn *Tenant) { tn.Slug = "Acme" }, "slug"},
		{"slug with spaces", func(tn *Tenant) { tn.Slug = "acme corp" }, "slug"},
		{"leading hyphen", func(tn *Tenant) { tn.Slug = "-acme" }, "slug"},
		{"empty display name", func(tn *Tenant) { tn.DisplayName = "" }, "display_name"},
		{"unknown tier", func(tn *Tenant) { tn.PlanTier = "gold" }, "plan_tier"},
		{"chunk limit too low", func(tn *Tenant) { tn.DefaultChunkLimit = 0 }, "default_chunk_limit"},
		{"chunk limit too high", func(tn *Tenant) { tn.DefaultChunkLimit = 201 }, "default_chunk_limit"},
		{"empty custom domain", func(tn *Tenant) { s := ""; tn.CustomDomain = &s }, "custom_domain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := valid
			tt.mutate(&tenant)

			err := tenant.Validate()
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestQuotaExceededError(t *testing.T) {
	err := &QuotaExceededError{Resource: "documents", Current: 5, Ceiling: 5}
	assert.True(t, IsQuotaExceeded(err))
	assert.False(t, IsQuotaExceeded(assert.AnError))
	assert.Contains(t, err.Error(), "documents")
	assert.Contains(t, err.Error(), "5/5")
}
