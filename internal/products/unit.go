package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unit identifies a stocked unit: a product, optionally refined by one variant.
type Unit struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
}

// Key is the canonical stock key: the variant id when present, else the product id.
func (u Unit) Key() uuid.UUID {
	if u.VariantID != nil && *u.VariantID != uuid.Nil {
		return *u.VariantID
	}
	return u.ProductID
}

// HasVariant reports whether the unit names a variant.
func (u Unit) HasVariant() bool {
	return u.VariantID != nil && *u.VariantID != uuid.Nil
}

// UnitInfo is the catalog view of a stocked unit. Price and reorder quantity have
// variant overrides applied; the reorder point is kept raw for the ledger to resolve.
type UnitInfo struct {
	Unit
	SKU                 string
	Name                string
	ProductReorderPoint int
	VariantReorderPoint *int
	ReorderQuantity     int
	CostPrice           decimal.Decimal
	SellingPrice        decimal.Decimal
	IsTracked           bool
}
