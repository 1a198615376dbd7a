package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hivedocs/hivedocs/pkg/observability"
)

// Reconciler periodically corrects quota drift. The transactional gate in
// CheckDocumentQuotaTx stops same-tenant races on the create path, but
// writes that bypass it (tier downgrades, bulk imports, manual rows) can
// leave a tenant over its ceiling. Each sweep deactivates the newest
// documents beyond the ceiling, keeping the oldest uploads live.
type Reconciler struct {
	db      *sql.DB
	cron    *cron.Cron
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewReconciler creates a quota reconciler. metrics may be nil.
func NewReconciler(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		db:      db,
		cron:    cron.New(),
		logger:  logger,
		metrics: metrics,
	}
}

// Start schedules the sweep with the given cron spec and begins running
func (r *Reconciler) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		deactivated, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.WithError(err).Error("Quota reconciler sweep failed")
			return
		}
		if deactivated > 0 {
			r.logger.WithField("deactivated", deactivated).Warn("Quota reconciler deactivated over-quota documents")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciler: %w", err)
	}

	r.cron.Start()
	r.logger.WithField("schedule", schedule).Info("Quota reconciler started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs a single sweep and returns how many documents were
// deactivated across all tenants.
func (r *Reconciler) RunOnce(ctx context.Context) (int64, error) {
	overages, err := r.findOverages(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, o := range overages {
		deactivated, err := r.deactivateExcess(ctx, o)
		if err != nil {
			// Keep sweeping the remaining tenants
			r.logger.WithError(err).WithField("tenant_id", o.tenantID).Error("Failed to reconcile tenant quota")
			continue
		}
		total += deactivated
	}

	if r.metrics != nil {
		r.metrics.ReconcilerRunsTotal.Inc()
		r.metrics.ReconcilerDeactivationsTotal.Add(float64(total))
	}

	return total, nil
}

type overage struct {
	tenantID string
	excess   int
}

func (r *Reconciler) findOverages(ctx context.Context) ([]overage, error) {
	query := `
		SELECT t.id, t.plan_tier, COUNT(d.id) AS active_count
		FROM tenants t
		JOIN documents d ON d.tenant_id = t.id AND d.active = TRUE
		GROUP BY t.id, t.plan_tier
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant usage: %w", err)
	}
	defer rows.Close()

	var overages []overage
	for rows.Next() {
		var tenantID, tierStr string
		var count int
		if err := rows.Scan(&tenantID, &tierStr, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tenant usage: %w", err)
		}

		ceiling, capped := PlanTier(tierStr).DocumentCeiling()
		if capped && count > ceiling {
			overages = append(overages, overage{tenantID: tenantID, excess: count - ceiling})
		}
	}

	return overages, rows.Err()
}

func (r *Reconciler) deactivateExcess(ctx context.Context, o overage) (int64, error) {
	query := `
		UPDATE documents
		SET active = FALSE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM documents
			WHERE tenant_id = $1 AND active = TRUE
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`

	result, err := r.db.ExecContext(ctx, query, o.tenantID, o.excess)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate excess documents: %w", err)
	}

	return result.RowsAffected()
}
