// Package middleware provides HTTP middleware for authentication, tenant
// resolution, and quota enforcement.
//
// # Middleware Ordering Requirements
//
// The middlewares have strict ordering dependencies. Incorrect order will
// cause quota checks to silently skip (no tenant in context) or tenant
// resolution to fail.
//
// REQUIRED ORDERING (outer to inner):
//  1. AuthMiddleware - resolves the principal UUID from the bearer token
//  2. TenantContextMiddleware - resolves the tenant for the request
//  3. EnforceDocumentQuota - advisory quota check on document creation
//
// Example (correct):
//
//	router.Use(authMiddleware.Handler)
//	router.Use(tenantMiddleware.Handler)
//	router.Handle("/api/v1/documents", quotaMiddleware.EnforceDocumentQuota(createHandler)).
//	    Methods("POST")
//
// If EnforceDocumentQuota runs without a tenant in context the check is
// skipped; tenant-less private uploads are not quota gated. The check here
// is advisory and exists to fail fast with a clear error; the
// authoritative check runs inside the document-creation transaction
// against a locked tenant row.
package middleware
