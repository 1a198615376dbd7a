package middleware

import (
	"net/http"

	"github.com/hivedocs/hivedocs/pkg/contextkeys"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/observability"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// QuotaMiddleware enforces plan-tier quotas on quota-gated requests.
//
// IMPORTANT: see the package documentation for ordering requirements.
// TenantContextMiddleware must run before this middleware; without a
// tenant in context the check is skipped.
type QuotaMiddleware struct {
	tenantService tenants.Service
	metrics       *observability.Metrics
	logger        *observability.Logger
}

// NewQuotaMiddleware creates a quota enforcement middleware. metrics may
// be nil.
func NewQuotaMiddleware(tenantService tenants.Service, metrics *observability.Metrics, logger *observability.Logger) *QuotaMiddleware {
	return &QuotaMiddleware{
		tenantService: tenantService,
		metrics:       metrics,
		logger:        logger,
	}
}

// EnforceDocumentQuota rejects document creation for tenants at their
// plan ceiling. Advisory: the authoritative gate runs inside the creation
// transaction, this middleware just fails fast with the full quota
// position instead of burning a transaction.
//
// Returns 403 with the ceiling and current count when the quota is
// exhausted.
func (m *QuotaMiddleware) EnforceDocumentQuota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		tenantID, ok := contextkeys.GetTenant(r.Context())
		if !ok {
			// Tenant-less private uploads are not quota gated
			next.ServeHTTP(w, r)
			return
		}

		status, err := m.tenantService.Quota(r.Context(), tenantID)
		if err != nil {
			if tenants.IsNotFound(err) {
				httputil.WriteNotFoundError(w, "tenant not found")
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		m.observe(status)

		if !status.CanAddDocument {
			writeQuotaExceeded(w, &tenants.QuotaExceededError{
				Resource: "documents",
				Current:  int64(status.ActiveDocuments),
				Ceiling:  int64(*status.DocumentCeiling),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeQuotaExceeded reports the full quota position so callers can
// surface an upgrade prompt
func writeQuotaExceeded(w http.ResponseWriter, qe *tenants.QuotaExceededError) {
	httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
		"error":    "quota_exceeded",
		"resource": qe.Resource,
		"current":  qe.Current,
		"ceiling":  qe.Ceiling,
	})
}

func (m *QuotaMiddleware) observe(status *tenants.QuotaStatus) {
	if m.metrics == nil {
		return
	}
	outcome := "allowed"
	if !status.CanAddDocument {
		outcome = "denied"
		m.metrics.QuotaDenialsTotal.WithLabelValues(string(status.PlanTier)).Inc()
	}
	m.metrics.QuotaChecksTotal.WithLabelValues(string(status.PlanTier), outcome).Inc()
}
