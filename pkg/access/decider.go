package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hivedocs/hivedocs/pkg/observability"
)

// RoleReader provides the role lookups the decider needs
type RoleReader interface {
	RolesFor(ctx context.Context, principalID uuid.UUID) ([]RoleAssignment, error)
	HasDirectGrant(ctx context.Context, principalID, tenantID uuid.UUID) (bool, error)
}

// DocumentInfo is the minimal document view the decider evaluates against
type DocumentInfo struct {
	ID          uuid.UUID
	TenantID    *uuid.UUID
	AccessLevel AccessLevel
	Passcode    *string
	UploaderID  *uuid.UUID
	Active      bool
}

// DocumentReader resolves documents for access checks. AccessInfo returns
// (nil, nil) for an unknown document; the decider turns that into a deny.
type DocumentReader interface {
	AccessInfo(ctx context.Context, documentID uuid.UUID) (*DocumentInfo, error)
	AccessInfoBatch(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]*DocumentInfo, error)
}

// Decider evaluates document access. It is a pure read over the role and
// document stores and is safe for unlimited concurrent use.
type Decider struct {
	roles     RoleReader
	documents DocumentReader
	cache     *DecisionCache
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewDecider creates a new access decider. cache and metrics may be nil.
func NewDecider(roles RoleReader, documents DocumentReader, cache *DecisionCache, metrics *observability.Metrics, logger *observability.Logger) *Decider {
	return &Decider{
		roles:     roles,
		documents: documents,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// CheckAccess decides whether a principal may access a document. principalID
// is nil for anonymous callers. Rules are evaluated in a fixed order and the
// first match decides; unknown and inactive documents deny rather than error
// so existence does not leak. Passcode-gated documents are never served from
// the cache.
func (d *Decider) CheckAccess(ctx context.Context, principalID *uuid.UUID, documentID uuid.UUID, suppliedPasscode *string) (Decision, error) {
	start := time.Now()

	if d.cache != nil && suppliedPasscode == nil {
		if decision, ok := d.cache.Get(ctx, principalID, documentID); ok {
			d.observe("cached", decision, start, "single")
			return decision, nil
		}
	}

	doc, err := d.documents.AccessInfo(ctx, documentID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve document: %w", err)
	}

	var roles []RoleAssignment
	if principalID != nil {
		roles, err = d.roles.RolesFor(ctx, *principalID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to resolve roles: %w", err)
		}
	}

	decision, err := d.evaluate(ctx, doc, principalID, roles, suppliedPasscode, d.directGrantLookup(principalID))
	if err != nil {
		return Decision{}, err
	}

	if d.cacheable(doc, suppliedPasscode) {
		d.cache.Set(ctx, principalID, documentID, decision)
	}

	d.observe(levelLabel(doc), decision, start, "single")
	return decision, nil
}

// CheckAccessBatch evaluates the same predicate for each document and returns
// a map keyed by document id. Results are identical to calling CheckAccess
// once per document; the batch exists only to collapse round trips.
func (d *Decider) CheckAccessBatch(ctx context.Context, principalID *uuid.UUID, documentIDs []uuid.UUID, suppliedPasscode *string) (map[uuid.UUID]Decision, error) {
	start := time.Now()
	decisions := make(map[uuid.UUID]Decision, len(documentIDs))
	if len(documentIDs) == 0 {
		return decisions, nil
	}

	// Deduplicate before hitting the stores
	unique := make([]uuid.UUID, 0, len(documentIDs))
	seen := make(map[uuid.UUID]bool, len(documentIDs))
	for _, id := range documentIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	missing := unique
	if d.cache != nil && suppliedPasscode == nil {
		missing = missing[:0]
		for _, id := range unique {
			if decision, ok := d.cache.Get(ctx, principalID, id); ok {
				decisions[id] = decision
			} else {
				missing = append(missing, id)
			}
		}
	}

	var docs map[uuid.UUID]*DocumentInfo
	var roles []RoleAssignment

	g, gctx := errgroup.WithContext(ctx)
	if len(missing) > 0 {
		g.Go(func() error {
			var err error
			docs, err = d.documents.AccessInfoBatch(gctx, missing)
			if err != nil {
				return fmt.Errorf("failed to resolve documents: %w", err)
			}
			return nil
		})
	}
	if principalID != nil {
		g.Go(func() error {
			var err error
			roles, err = d.roles.RolesFor(gctx, *principalID)
			if err != nil {
				return fmt.Errorf("failed to resolve roles: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Direct grant lookups repeat per tenant within one batch; memoize them
	grantLookup := memoizeGrants(d.directGrantLookup(principalID))

	for _, id := range missing {
		doc := docs[id]
		decision, err := d.evaluate(ctx, doc, principalID, roles, suppliedPasscode, grantLookup)
		if err != nil {
			return nil, err
		}
		decisions[id] = decision

		if d.cacheable(doc, suppliedPasscode) {
			d.cache.Set(ctx, principalID, id, decision)
		}
	}

	if d.metrics != nil {
		d.metrics.AccessBatchSizes.Observe(float64(len(unique)))
		d.metrics.AccessCheckDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	}

	return decisions, nil
}

// grantLookupFunc checks a direct grant for one tenant
type grantLookupFunc func(ctx context.Context, tenantID uuid.UUID) (bool, error)

func (d *Decider) directGrantLookup(principalID *uuid.UUID) grantLookupFunc {
	return func(ctx context.Context, tenantID uuid.UUID) (bool, error) {
		if principalID == nil {
			return false, nil
		}
		return d.roles.HasDirectGrant(ctx, *principalID, tenantID)
	}
}

func memoizeGrants(lookup grantLookupFunc) grantLookupFunc {
	cache := make(map[uuid.UUID]bool)
	return func(ctx context.Context, tenantID uuid.UUID) (bool, error) {
		if has, ok := cache[tenantID]; ok {
			return has, nil
		}
		has, err := lookup(ctx, tenantID)
		if err != nil {
			return false, err
		}
		cache[tenantID] = has
		return has, nil
	}
}

// evaluate applies the access rules in fixed order. First match decides.
func (d *Decider) evaluate(ctx context.Context, doc *DocumentInfo, principalID *uuid.UUID, roles []RoleAssignment, suppliedPasscode *string, hasGrant grantLookupFunc) (Decision, error) {
	if doc == nil {
		return deny(ReasonNotFound), nil
	}

	if !doc.Active && !isAdminContext(doc, roles) {
		return deny(ReasonInactive), nil
	}

	switch doc.AccessLevel {
	case LevelPublic:
		return allow(ReasonPublic), nil

	case LevelPasscode:
		if doc.Passcode == nil {
			return allow(ReasonNoPasscodeSet), nil
		}
		// Exact, case-sensitive comparison
		if suppliedPasscode != nil && *suppliedPasscode == *doc.Passcode {
			return allow(ReasonPasscodeMatch), nil
		}
		return deny(ReasonPasscodeMismatch), nil

	case LevelRegistered:
		if principalID != nil {
			return allow(ReasonRegistered), nil
		}
		return deny(ReasonAnonymous), nil
	}

	// Everything past here requires an authenticated principal
	if principalID == nil {
		return deny(ReasonAnonymous), nil
	}

	if hasRole(roles, RoleSuperAdmin, nil) {
		return allow(ReasonSuperAdmin), nil
	}

	switch doc.AccessLevel {
	case LevelOwnerRestricted:
		if doc.TenantID == nil {
			// Private upload: only the uploading principal
			if doc.UploaderID != nil && *doc.UploaderID == *principalID {
				return allow(ReasonUploader), nil
			}
			return deny(ReasonDefaultDeny), nil
		}

		if hasRole(roles, RoleTenantAdmin, doc.TenantID) {
			return allow(ReasonTenantAdmin), nil
		}
		if hasRole(roles, RoleRegistered, doc.TenantID) {
			return allow(ReasonTenantMember), nil
		}
		granted, err := hasGrant(ctx, *doc.TenantID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check direct grant: %w", err)
		}
		if granted {
			return allow(ReasonTenantMember), nil
		}
		return deny(ReasonDefaultDeny), nil

	case LevelOwnerAdminOnly:
		if doc.TenantID != nil && hasRole(roles, RoleTenantAdmin, doc.TenantID) {
			return allow(ReasonTenantAdmin), nil
		}
		return deny(ReasonDefaultDeny), nil
	}

	return deny(ReasonDefaultDeny), nil
}

// isAdminContext reports whether the roles include super_admin or
// tenant_admin for the document's tenant. Admin contexts may see inactive
// documents.
func isAdminContext(doc *DocumentInfo, roles []RoleAssignment) bool {
	if hasRole(roles, RoleSuperAdmin, nil) {
		return true
	}
	return doc.TenantID != nil && hasRole(roles, RoleTenantAdmin, doc.TenantID)
}

func hasRole(roles []RoleAssignment, role Role, tenantID *uuid.UUID) bool {
	for _, a := range roles {
		if a.Role != role {
			continue
		}
		if tenantID == nil {
			if a.TenantID == nil {
				return true
			}
			continue
		}
		if a.ScopedTo(*tenantID) {
			return true
		}
	}
	return false
}

func (d *Decider) cacheable(doc *DocumentInfo, suppliedPasscode *string) bool {
	return d.cache != nil &&
		suppliedPasscode == nil &&
		doc != nil &&
		doc.AccessLevel != LevelPasscode
}

func (d *Decider) observe(level string, decision Decision, start time.Time, kind string) {
	if d.metrics == nil {
		return
	}
	outcome := "deny"
	if decision.Allowed {
		outcome = "allow"
	}
	d.metrics.AccessChecksTotal.WithLabelValues(level, outcome).Inc()
	d.metrics.AccessCheckDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func levelLabel(doc *DocumentInfo) string {
	if doc == nil {
		return "unknown"
	}
	return string(doc.AccessLevel)
}
