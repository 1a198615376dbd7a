// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/hivedocs/hivedocs/pkg/contextkeys"
//	ctx = contextkeys.WithPrincipal(ctx, principalID)
//	id, ok := contextkeys.GetPrincipal(ctx)
package contextkeys

import (
	"context"

	"github.com/google/uuid"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated principal's UUID.
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: access checks, document/tenant mutations
	// Type: uuid.UUID
	PrincipalKey Key = "principal_id"

	// TenantKey contains the tenant UUID resolved for the request.
	// Set by: middleware.TenantContextMiddleware (pkg/middleware/tenant.go)
	// Required by: quota middleware, tenant-scoped handlers
	// Type: uuid.UUID
	TenantKey Key = "tenant_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.LoggingMiddleware
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, PrincipalKey, id)
}

// GetPrincipal retrieves the authenticated principal from context
func GetPrincipal(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(PrincipalKey).(uuid.UUID)
	return id, ok
}

// WithTenant adds the resolved tenant to the context
func WithTenant(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, TenantKey, id)
}

// GetTenant retrieves the resolved tenant from context
func GetTenant(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(TenantKey).(uuid.UUID)
	return id, ok
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
