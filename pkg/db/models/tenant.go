package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation boundary every other row belongs to.
type Tenant struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Slug      string         `gorm:"column:slug;not null;uniqueIndex:uq_tenants_slug"`
	IsActive  bool           `gorm:"column:is_active;not null"`
	Currency  string         `gorm:"column:currency;not null;default:'USD'"`
	Timezone  string         `gorm:"column:timezone;not null;default:'UTC'"`
	Domains   []TenantDomain `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TenantDomain maps a custom host onto a tenant.
type TenantDomain struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Domain     string    `gorm:"column:domain;not null;uniqueIndex:uq_tenant_domains_domain"`
	IsPrimary  bool      `gorm:"column:is_primary;not null;default:false"`
	IsVerified bool      `gorm:"column:is_verified;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
