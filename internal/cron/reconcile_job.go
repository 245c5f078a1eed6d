package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type stockAuditor interface {
	ListItemIDs(ctx context.Context, scope repo.Scope) ([]uuid.UUID, error)
	ReconcileItem(ctx context.Context, scope repo.Scope, itemID uuid.UUID) (*stock.Reconciliation, error)
}

type ReconcileJobParams struct {
	Logger *logger.Logger
	DB     *gorm.DB
	Stock  stockAuditor
}

// NewReconcileJob builds the job that replays every stock item's ledger against
// its stored balance.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &reconcileJob{logg: params.Logger, db: params.DB, stock: params.Stock}, nil
}

type reconcileJob struct {
	logg  *logger.Logger
	db    *gorm.DB
	stock stockAuditor
}

func (j *reconcileJob) Name() string { return "stock-reconcile" }

// Run checks every item of every active tenant. A mismatch never stops the sweep;
// all of them come back combined.
func (j *reconcileJob) Run(ctx context.Context) error {
	tenantIDs, err := activeTenantIDs(ctx, j.db)
	if err != nil {
		return err
	}

	var (
		errs       error
		checked    int
		mismatches int
	)
	for _, tenantID := range tenantIDs {
		scope := repo.AllTenants(j.db).Scope(tenantID)
		itemIDs, err := j.stock.ListItemIDs(ctx, scope)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		for _, itemID := range itemIDs {
			checked++
			if _, err := j.stock.ReconcileItem(ctx, scope, itemID); err != nil {
				if pkgerrors.Is(err, pkgerrors.CodeReconciliationMismatch) {
					mismatches++
				}
				errs = multierr.Append(errs, fmt.Errorf("tenant %s item %s: %w", tenantID, itemID, err))
			}
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tenants":    len(tenantIDs),
		"items":      checked,
		"mismatches": mismatches,
	})
	j.logg.Info(logCtx, "stock reconciliation complete")
	return errs
}
