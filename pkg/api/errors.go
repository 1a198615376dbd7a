package api

import (
	"errors"
	"net/http"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/documents"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/search"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// writeServiceError maps service-layer errors onto HTTP statuses.
//
// NotFound only reaches this function for administrative callers; the
// service layer collapses it into a permission denial for everyone else,
// so the 403/404 distinction is decided before the transport layer sees
// the error.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case access.IsValidationError(err),
		tenants.IsValidationError(err),
		documents.IsValidationError(err),
		search.IsValidationError(err):
		httputil.WriteBadRequest(w, err.Error())

	case errors.Is(err, access.ErrPermissionDenied):
		httputil.WriteForbidden(w, "permission denied")

	case tenants.IsNotFound(err), documents.IsNotFound(err):
		httputil.WriteNotFoundError(w, err.Error())

	case tenants.IsQuotaExceeded(err):
		var qe *tenants.QuotaExceededError
		errors.As(err, &qe)
		httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":    "quota_exceeded",
			"resource": qe.Resource,
			"current":  qe.Current,
			"ceiling":  qe.Ceiling,
		})

	default:
		httputil.WriteInternalError(w, err)
	}
}
