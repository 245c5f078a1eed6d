package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products in a per-tenant tree.
type Category struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_categories_tenant_name,priority:1"`
	Name        string     `gorm:"column:name;not null;uniqueIndex:uq_categories_tenant_name,priority:2"`
	Description *string    `gorm:"column:description"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid;index"`
	IsActive    bool       `gorm:"column:is_active;not null"`
	SortOrder   int        `gorm:"column:sort_order;not null;default:0"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Supplier is a vendor that products are bought from.
type Supplier struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_suppliers_tenant_name,priority:1"`
	Name          string    `gorm:"column:name;not null;uniqueIndex:uq_suppliers_tenant_name,priority:2"`
	ContactPerson *string   `gorm:"column:contact_person"`
	Email         *string   `gorm:"column:email"`
	Phone         *string   `gorm:"column:phone"`
	Address       *string   `gorm:"column:address"`
	Website       *string   `gorm:"column:website"`
	PaymentTerms  *string   `gorm:"column:payment_terms"`
	Notes         *string   `gorm:"column:notes"`
	IsActive      bool      `gorm:"column:is_active;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
