package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type lowStockScanner interface {
	ScanLowStock(ctx context.Context, scope repo.Scope) (int, error)
}

type LowStockJobParams struct {
	Logger *logger.Logger
	DB     *gorm.DB
	Stock  lowStockScanner
}

func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &lowStockJob{logg: params.Logger, db: params.DB, stock: params.Stock}, nil
}

type lowStockJob struct {
	logg  *logger.Logger
	db    *gorm.DB
	stock lowStockScanner
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) error {
	tenantIDs, err := activeTenantIDs(ctx, j.db)
	if err != nil {
		return err
	}
	var (
		errs   error
		opened int
	)
	for _, tenantID := range tenantIDs {
		n, err := j.stock.ScanLowStock(ctx, repo.AllTenants(j.db).Scope(tenantID))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		opened += n
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tenants":       len(tenantIDs),
		"alerts_opened": opened,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}
