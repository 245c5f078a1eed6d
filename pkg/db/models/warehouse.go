package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a stock location. At most one per tenant is the default.
type Warehouse struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_warehouses_tenant_code,priority:1"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:uq_warehouses_tenant_code,priority:2"`
	Name      string    `gorm:"column:name;not null"`
	Address   *string   `gorm:"column:address"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
