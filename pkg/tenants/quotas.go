package tenants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CanAddDocument reports whether the tenant may create another document
// right now. The count is read at call time, never cached. This advisory
// read can still race a concurrent create; the authoritative check is
// CheckDocumentQuotaTx inside the creation transaction.
func (s *PostgresService) CanAddDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	status, err := s.Quota(ctx, id)
	if err != nil {
		return false, err
	}
	return status.CanAddDocument, nil
}

// CanUseVoiceTraining reports whether the tenant's tier includes voice
// training.
func (s *PostgresService) CanUseVoiceTraining(ctx context.Context, id uuid.UUID) (bool, error) {
	tier, err := s.planTier(ctx, id)
	if err != nil {
		return false, err
	}
	return tier.AllowsVoiceTraining(), nil
}

// Quota returns the tenant's full quota position
func (s *PostgresService) Quota(ctx context.Context, id uuid.UUID) (*QuotaStatus, error) {
	tier, err := s.planTier(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := s.countActiveDocuments(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	status := &QuotaStatus{
		TenantID:           id,
		PlanTier:           tier,
		ActiveDocuments:    count,
		CanAddDocument:     true,
		VoiceTrainingAvail: tier.AllowsVoiceTraining(),
	}

	if ceiling, capped := tier.DocumentCeiling(); capped {
		status.DocumentCeiling = &ceiling
		status.CanAddDocument = count < ceiling
	}

	return status, nil
}

// CheckDocumentQuotaTx is the authoritative quota gate for document
// creation. It must run inside the transaction that inserts the document:
// the tenant row lock serializes concurrent creates for the same tenant so
// two uploads cannot both pass on the same stale count. Returns
// QuotaExceededError when the ceiling is hit.
func (s *PostgresService) CheckDocumentQuotaTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var tierStr string
	err := tx.QueryRowContext(ctx,
		`SELECT plan_tier FROM tenants WHERE id = $1 FOR UPDATE`, id,
	).Scan(&tierStr)
	if err == sql.ErrNoRows {
		return &NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to lock tenant row: %w", err)
	}

	tier := PlanTier(tierStr).Normalize()
	ceiling, capped := tier.DocumentCeiling()
	if !capped {
		return nil
	}

	count, err := s.countActiveDocuments(ctx, tx, id)
	if err != nil {
		return err
	}

	if count >= ceiling {
		return &QuotaExceededError{
			Resource: "documents",
			Current:  int64(count),
			Ceiling:  int64(ceiling),
		}
	}

	return nil
}

func (s *PostgresService) planTier(ctx context.Context, id uuid.UUID) (PlanTier, error) {
	var tier sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_tier FROM tenants WHERE id = $1`, id,
	).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", &NotFoundError{ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("failed to get plan tier: %w", err)
	}

	return PlanTier(tier.String).Normalize(), nil
}

// querier covers *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *PostgresService) countActiveDocuments(ctx context.Context, q querier, id uuid.UUID) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant_id = $1 AND active = TRUE`, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active documents: %w", err)
	}
	return count, nil
}
