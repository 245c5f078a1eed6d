package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
)

// Balance is the derived view of one stocked unit at one warehouse.
type Balance struct {
	StockItemID   *uuid.UUID `json:"stock_item_id,omitempty"`
	ProductID     uuid.UUID  `json:"product_id"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	WarehouseID   uuid.UUID  `json:"warehouse_id"`
	Quantity      int        `json:"quantity"`
	Reserved      int        `json:"reserved"`
	Available     int        `json:"available"`
	ReorderPoint  int        `json:"reorder_point"`
	IsLowStock    bool       `json:"is_low_stock"`
	LastCountedAt *time.Time `json:"last_counted_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Available is quantity minus reserved, never below zero.
func Available(quantity, reserved int) int {
	if available := quantity - reserved; available > 0 {
		return available
	}
	return 0
}

// EffectiveReorderPoint prefers the variant override over the product value.
func EffectiveReorderPoint(productPoint int, variantPoint *int) int {
	if variantPoint != nil {
		return *variantPoint
	}
	return productPoint
}

// IsLowStock reports whether quantity has fallen to the reorder point.
func IsLowStock(quantity, reorderPoint int) bool {
	return quantity <= reorderPoint
}

// NewBalance derives a balance from a stock item. A nil item reads as zero stock.
func NewBalance(item *models.StockItem, productID uuid.UUID, variantID *uuid.UUID, warehouseID uuid.UUID, reorderPoint int) Balance {
	b := Balance{
		ProductID:    productID,
		VariantID:    variantID,
		WarehouseID:  warehouseID,
		ReorderPoint: reorderPoint,
	}
	if item != nil {
		id := item.ID
		updated := item.UpdatedAt
		b.StockItemID = &id
		b.Quantity = item.Quantity
		b.Reserved = item.ReservedQuantity
		b.LastCountedAt = item.LastCountedAt
		b.UpdatedAt = &updated
	}
	b.Available = Available(b.Quantity, b.Reserved)
	b.IsLowStock = IsLowStock(b.Quantity, reorderPoint)
	return b
}
