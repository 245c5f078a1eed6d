package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
)

// Unscoped reads and writes across every tenant. Only admin handlers and the
// cron sweep hold one; request code goes through Scope.
type Unscoped struct {
	db *gorm.DB
}

func AllTenants(db *gorm.DB) Unscoped {
	return Unscoped{db: db}
}

// DB binds ctx when non-nil.
func (u Unscoped) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return u.db
	}
	return u.db.WithContext(ctx)
}

// ActiveTenantIDs lists active tenants in id order so sweeps are repeatable.
func (u Unscoped) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := u.DB(ctx).
		Model(&models.Tenant{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return ids, nil
}

// Scope narrows the handle to one tenant.
func (u Unscoped) Scope(tenantID uuid.UUID) Scope {
	return NewScope(u.db, tenantID)
}
