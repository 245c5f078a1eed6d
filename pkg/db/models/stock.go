package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// StockItem is the running balance for one stocked unit at one warehouse.
type StockItem struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID         uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_stock_items_unit,priority:1"`
	WarehouseID      uuid.UUID  `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:uq_stock_items_unit,priority:2"`
	UnitKey          uuid.UUID  `gorm:"column:unit_key;type:uuid;not null;uniqueIndex:uq_stock_items_unit,priority:3"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID        *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity         int        `gorm:"column:quantity;not null;default:0"`
	ReservedQuantity int        `gorm:"column:reserved_quantity;not null;default:0"`
	LastCountedAt    *time.Time `gorm:"column:last_counted_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// StockTransaction is an immutable ledger row. Rows are only ever inserted.
type StockTransaction struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID                  `gorm:"column:tenant_id;type:uuid;not null;index"`
	StockItemID     uuid.UUID                  `gorm:"column:stock_item_id;type:uuid;not null;index"`
	ProductID       uuid.UUID                  `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID                 `gorm:"column:variant_id;type:uuid"`
	WarehouseID     uuid.UUID                  `gorm:"column:warehouse_id;type:uuid;not null"`
	TransactionType enums.StockTransactionType `gorm:"column:transaction_type;type:text;not null"`
	Reason          enums.StockReason          `gorm:"column:reason;type:text;not null"`
	QuantityDelta   int                        `gorm:"column:quantity_delta;not null"`
	ReservedDelta   int                        `gorm:"column:reserved_delta;not null;default:0"`
	QuantityAfter   int                        `gorm:"column:quantity_after;not null"`
	ReservedAfter   int                        `gorm:"column:reserved_after;not null"`
	ReferenceType   *string                    `gorm:"column:reference_type"`
	ReferenceID     *uuid.UUID                 `gorm:"column:reference_id;type:uuid"`
	Notes           *string                    `gorm:"column:notes"`
	ActorID         *uuid.UUID                 `gorm:"column:actor_id;type:uuid"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

// StockAdjustment is a requested correction awaiting approval. AdjustmentQuantity
// holds the requested delta until approval, then the delta written to the ledger.
type StockAdjustment struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	TenantID           uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	ProductID          uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	VariantID          *uuid.UUID             `gorm:"column:variant_id;type:uuid"`
	WarehouseID        uuid.UUID              `gorm:"column:warehouse_id;type:uuid;not null"`
	QuantityBefore     int                    `gorm:"column:quantity_before;not null"`
	QuantityAfter      int                    `gorm:"column:quantity_after;not null"`
	AdjustmentQuantity int                    `gorm:"column:adjustment_quantity;not null"`
	Reason             enums.StockReason      `gorm:"column:reason;type:text;not null"`
	Notes              *string                `gorm:"column:notes"`
	Status             enums.AdjustmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RequestedBy        uuid.UUID              `gorm:"column:requested_by;type:uuid;not null"`
	ApprovedBy         *uuid.UUID             `gorm:"column:approved_by;type:uuid"`
	ApprovedAt         *time.Time             `gorm:"column:approved_at"`
	RejectedBy         *uuid.UUID             `gorm:"column:rejected_by;type:uuid"`
	RejectedAt         *time.Time             `gorm:"column:rejected_at"`
	RejectionReason    *string                `gorm:"column:rejection_reason"`
	TransactionID      *uuid.UUID             `gorm:"column:transaction_id;type:uuid"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// StockAlert flags a unit whose balance fell to or below its reorder point.
type StockAlert struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	StockItemID     uuid.UUID              `gorm:"column:stock_item_id;type:uuid;not null;index"`
	ProductID       uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID             `gorm:"column:variant_id;type:uuid"`
	WarehouseID     uuid.UUID              `gorm:"column:warehouse_id;type:uuid;not null"`
	AlertType       enums.StockAlertType   `gorm:"column:alert_type;type:text;not null"`
	Status          enums.StockAlertStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Threshold       int                    `gorm:"column:threshold;not null"`
	CurrentQuantity int                    `gorm:"column:current_quantity;not null"`
	AcknowledgedBy  *uuid.UUID             `gorm:"column:acknowledged_by;type:uuid"`
	AcknowledgedAt  *time.Time             `gorm:"column:acknowledged_at"`
	ResolvedAt      *time.Time             `gorm:"column:resolved_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
