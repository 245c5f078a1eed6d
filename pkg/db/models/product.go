package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry owned by a tenant.
type Product struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_products_tenant_sku,priority:1"`
	SKU             string           `gorm:"column:sku;not null;uniqueIndex:uq_products_tenant_sku,priority:2"`
	Name            string           `gorm:"column:name;not null"`
	Description     *string          `gorm:"column:description"`
	Barcode         *string          `gorm:"column:barcode"`
	Unit            string           `gorm:"column:unit;not null;default:'each'"`
	CostPrice       decimal.Decimal  `gorm:"column:cost_price;type:numeric(12,2);not null;default:0"`
	SellingPrice    decimal.Decimal  `gorm:"column:selling_price;type:numeric(12,2);not null;default:0"`
	ReorderPoint    int              `gorm:"column:reorder_point;not null"`
	ReorderQuantity int              `gorm:"column:reorder_quantity;not null"`
	IsActive        bool             `gorm:"column:is_active;not null"`
	IsTracked       bool             `gorm:"column:is_tracked;not null"`
	CategoryID      *uuid.UUID       `gorm:"column:category_id;type:uuid;index"`
	SupplierID      *uuid.UUID       `gorm:"column:supplier_id;type:uuid;index"`
	Variants        []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant refines a product for a single SKU. Nil overrides inherit from the product.
type ProductVariant struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_product_variants_tenant_sku,priority:1"`
	ProductID       uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	SKU             string           `gorm:"column:sku;not null;uniqueIndex:uq_product_variants_tenant_sku,priority:2"`
	Name            string           `gorm:"column:name;not null"`
	CostPrice       *decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2)"`
	SellingPrice    *decimal.Decimal `gorm:"column:selling_price;type:numeric(12,2)"`
	ReorderPoint    *int             `gorm:"column:reorder_point"`
	ReorderQuantity *int             `gorm:"column:reorder_quantity"`
	IsActive        bool             `gorm:"column:is_active;not null"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
