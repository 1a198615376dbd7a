package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedocs/hivedocs/pkg/contextkeys"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// fakeTenantService serves a fixed set of tenants and quota positions
type fakeTenantService struct {
	tenants map[uuid.UUID]*tenants.Tenant
	quotas  map[uuid.UUID]*tenants.QuotaStatus
}

func newFakeTenantService() *fakeTenantService {
	return &fakeTenantService{
		tenants: make(map[uuid.UUID]*tenants.Tenant),
		quotas:  make(map[uuid.UUID]*tenants.QuotaStatus),
	}
}

func (f *fakeTenantService) Create(ctx context.Context, t *tenants.Tenant) error { return nil }

func (f *fakeTenantService) Get(ctx context.Context, id uuid.UUID) (*tenants.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, &tenants.NotFoundError{ID: id}
}

func (f *fakeTenantService) GetBySlug(ctx context.Context, slug string) (*tenants.Tenant, error) {
	for _, t := range f.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, &tenants.NotFoundError{}
}

func (f *fakeTenantService) List(ctx context.Context) ([]tenants.Tenant, error) { return nil, nil }
func (f *fakeTenantService) Update(ctx context.Context, t *tenants.Tenant) error {
	return nil
}
func (f *fakeTenantService) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeTenantService) Quota(ctx context.Context, id uuid.UUID) (*tenants.QuotaStatus, error) {
	if q, ok := f.quotas[id]; ok {
		return q, nil
	}
	return nil, &tenants.NotFoundError{ID: id}
}

func (f *fakeTenantService) CanAddDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	q, err := f.Quota(ctx, id)
	if err != nil {
		return false, err
	}
	return q.CanAddDocument, nil
}

func (f *fakeTenantService) CanUseVoiceTraining(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func echoPrincipal(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := contextkeys.GetPrincipal(r.Context()); ok {
			w.Write([]byte(id.String()))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestAuthMiddlewareResolvesPrincipal(t *testing.T) {
	principal := uuid.New()

	handler := NewAuthMiddleware(false).Handler(echoPrincipal(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+principal.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, principal.String(), rec.Body.String())
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := NewAuthMiddleware(false).Handler(echoPrincipal(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareOptionalAllowsAnonymous(t *testing.T) {
	handler := NewAuthMiddleware(true).Handler(echoPrincipal(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestAuthMiddlewareRejectsMalformedToken(t *testing.T) {
	handler := NewAuthMiddleware(true).Handler(echoPrincipal(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantContextMiddlewareResolvesPathVariable(t *testing.T) {
	svc := newFakeTenantService()
	tenantID := uuid.New()
	svc.tenants[tenantID] = &tenants.Tenant{ID: tenantID, Slug: "acme"}

	var resolved *uuid.UUID
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := contextkeys.GetTenant(r.Context()); ok {
			resolved = &id
		}
	})

	router := mux.NewRouter()
	router.Handle("/tenants/{tenant_id}/documents",
		NewTenantContextMiddleware(svc).Handler(inner))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenants/"+tenantID.String()+"/documents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolved)
	assert.Equal(t, tenantID, *resolved)
}

func TestTenantContextMiddlewareResolvesSlug(t *testing.T) {
	svc := newFakeTenantService()
	tenantID := uuid.New()
	svc.tenants[tenantID] = &tenants.Tenant{ID: tenantID, Slug: "acme"}

	var resolved *uuid.UUID
	handler := NewTenantContextMiddleware(svc).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := contextkeys.GetTenant(r.Context()); ok {
			resolved = &id
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolved)
	assert.Equal(t, tenantID, *resolved)
}

func TestTenantContextMiddlewareUnknownTenant(t *testing.T) {
	svc := newFakeTenantService()

	handler := NewTenantContextMiddleware(svc).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for unknown tenants")
	}))

	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	req.Header.Set("X-Tenant-ID", uuid.New().String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantContextMiddlewareSkipsWhenAbsent(t *testing.T) {
	svc := newFakeTenantService()

	called := false
	handler := NewTenantContextMiddleware(svc).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := contextkeys.GetTenant(r.Context())
		assert.False(t, ok)
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestEnforceDocumentQuotaDeniesAtCeiling(t *testing.T) {
	svc := newFakeTenantService()
	tenantID := uuid.New()
	ceiling := 1
	svc.quotas[tenantID] = &tenants.QuotaStatus{
		TenantID:        tenantID,
		PlanTier:        tenants.TierFree,
		ActiveDocuments: 1,
		DocumentCeiling: &ceiling,
		CanAddDocument:  false,
	}

	handler := NewQuotaMiddleware(svc, nil, nil).EnforceDocumentQuota(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run past an exhausted quota")
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	req = req.WithContext(contextkeys.WithTenant(req.Context(), tenantID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "quota_exceeded", body["error"])
	assert.EqualValues(t, 1, body["ceiling"])
	assert.EqualValues(t, 1, body["current"])
}

func TestEnforceDocumentQuotaAllowsUnderCeiling(t *testing.T) {
	svc := newFakeTenantService()
	tenantID := uuid.New()
	ceiling := 5
	svc.quotas[tenantID] = &tenants.QuotaStatus{
		TenantID:        tenantID,
		PlanTier:        tenants.TierPro,
		ActiveDocuments: 2,
		DocumentCeiling: &ceiling,
		CanAddDocument:  true,
	}

	called := false
	handler := NewQuotaMiddleware(svc, nil, nil).EnforceDocumentQuota(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }),
	)

	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	req = req.WithContext(contextkeys.WithTenant(req.Context(), tenantID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestEnforceDocumentQuotaSkipsWithoutTenant(t *testing.T) {
	called := false
	handler := NewQuotaMiddleware(newFakeTenantService(), nil, nil).EnforceDocumentQuota(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents", nil))

	assert.True(t, called, "tenant-less uploads are not quota gated")
}
