package cron

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// activeTenantIDs is the only cross-tenant read a job performs; the rest of
// the sweep runs one tenant scope at a time.
func activeTenantIDs(ctx context.Context, db *gorm.DB) ([]uuid.UUID, error) {
	return repo.AllTenants(db).ActiveTenantIDs(ctx)
}
