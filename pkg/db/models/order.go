package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// Order is the aggregate root for sale, purchase, return and transfer flows.
type Order struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID               uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_orders_tenant_number,priority:1"`
	OrderType              enums.OrderType     `gorm:"column:order_type;type:text;not null;uniqueIndex:uq_orders_tenant_number,priority:2"`
	OrderNumber            string              `gorm:"column:order_number;not null;uniqueIndex:uq_orders_tenant_number,priority:3"`
	Status                 enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'draft'"`
	PaymentStatus          enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	WarehouseID            uuid.UUID           `gorm:"column:warehouse_id;type:uuid;not null"`
	DestinationWarehouseID *uuid.UUID          `gorm:"column:destination_warehouse_id;type:uuid"`
	CustomerName           *string             `gorm:"column:customer_name"`
	CustomerEmail          *string             `gorm:"column:customer_email"`
	CustomerPhone          *string             `gorm:"column:customer_phone"`
	SupplierID             *uuid.UUID          `gorm:"column:supplier_id;type:uuid"`
	SupplierName           *string             `gorm:"column:supplier_name"`
	ShippingAddress        *string             `gorm:"column:shipping_address"`
	Subtotal               decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TaxAmount              decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	DiscountAmount         decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	ShippingAmount         decimal.Decimal     `gorm:"column:shipping_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount            decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	ShippingMethod         *string             `gorm:"column:shipping_method"`
	TrackingNumber         *string             `gorm:"column:tracking_number"`
	Notes                  *string             `gorm:"column:notes"`
	InternalNotes          *string             `gorm:"column:internal_notes"`
	OrderDate              time.Time           `gorm:"column:order_date;not null"`
	RequiredDate           *time.Time          `gorm:"column:required_date"`
	ShippedDate            *time.Time          `gorm:"column:shipped_date"`
	DeliveredDate          *time.Time          `gorm:"column:delivered_date"`
	CreatedBy              *uuid.UUID          `gorm:"column:created_by;type:uuid"`
	UpdatedBy              *uuid.UUID          `gorm:"column:updated_by;type:uuid"`
	Lines                  []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLine is one product line on an order.
type OrderLine struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID           uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID          *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	SKU                string          `gorm:"column:sku;not null"`
	Name               string          `gorm:"column:name;not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	DiscountAmount     decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	LineTotal          decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	QuantityReserved   int             `gorm:"column:quantity_reserved;not null;default:0"`
	QuantityFulfilled  int             `gorm:"column:quantity_fulfilled;not null;default:0"`
	QuantityShipped    int             `gorm:"column:quantity_shipped;not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderStatusHistory is appended for every status change.
type OrderStatusHistory struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:text"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:text;not null"`
	Notes      *string            `gorm:"column:notes"`
	ChangedBy  *uuid.UUID         `gorm:"column:changed_by;type:uuid"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the history table name.
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

// OrderFulfillment is a single pick/pack/ship event against an order.
type OrderFulfillment struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TenantID          uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	FulfillmentNumber string                  `gorm:"column:fulfillment_number;not null"`
	WarehouseID       uuid.UUID               `gorm:"column:warehouse_id;type:uuid;not null"`
	Status            enums.FulfillmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Carrier           *string                 `gorm:"column:carrier"`
	TrackingNumber    *string                 `gorm:"column:tracking_number"`
	ShippingCost      decimal.Decimal         `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	CreatedBy         *uuid.UUID              `gorm:"column:created_by;type:uuid"`
	Lines             []OrderFulfillmentLine  `gorm:"foreignKey:FulfillmentID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderFulfillmentLine records how much of a line one fulfillment covered.
type OrderFulfillmentLine struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	FulfillmentID uuid.UUID `gorm:"column:fulfillment_id;type:uuid;not null;uniqueIndex:uq_fulfillment_lines_line,priority:1"`
	OrderLineID   uuid.UUID `gorm:"column:order_line_id;type:uuid;not null;uniqueIndex:uq_fulfillment_lines_line,priority:2"`
	Quantity      int       `gorm:"column:quantity;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderSequence is the per-tenant, per-type order number counter.
type OrderSequence struct {
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;primaryKey"`
	OrderType enums.OrderType `gorm:"column:order_type;type:text;primaryKey"`
	LastValue int64           `gorm:"column:last_value;not null;default:0"`
}
