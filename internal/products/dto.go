package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
)

// ProductDTO is the product payload returned to clients.
type ProductDTO struct {
	ID              uuid.UUID       `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Description     *string         `json:"description,omitempty"`
	Barcode         *string         `json:"barcode,omitempty"`
	Unit            string          `json:"unit"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	ReorderPoint    int             `json:"reorder_point"`
	ReorderQuantity int             `json:"reorder_quantity"`
	IsActive        bool            `json:"is_active"`
	IsTracked       bool            `json:"is_tracked"`
	CategoryID      *uuid.UUID      `json:"category_id,omitempty"`
	SupplierID      *uuid.UUID      `json:"supplier_id,omitempty"`
	Variants        []VariantDTO    `json:"variants,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// VariantDTO exposes a variant with its raw overrides.
type VariantDTO struct {
	ID              uuid.UUID        `json:"id"`
	ProductID       uuid.UUID        `json:"product_id"`
	SKU             string           `json:"sku"`
	Name            string           `json:"name"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice    *decimal.Decimal `json:"selling_price,omitempty"`
	ReorderPoint    *int             `json:"reorder_point,omitempty"`
	ReorderQuantity *int             `json:"reorder_quantity,omitempty"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ProductList is one page of products.
type ProductList struct {
	Items  []ProductDTO `json:"items"`
	Cursor string       `json:"cursor,omitempty"`
}

func NewProductDTO(product *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:              product.ID,
		SKU:             product.SKU,
		Name:            product.Name,
		Description:     product.Description,
		Barcode:         product.Barcode,
		Unit:            product.Unit,
		CostPrice:       product.CostPrice,
		SellingPrice:    product.SellingPrice,
		ReorderPoint:    product.ReorderPoint,
		ReorderQuantity: product.ReorderQuantity,
		IsActive:        product.IsActive,
		IsTracked:       product.IsTracked,
		CategoryID:      product.CategoryID,
		SupplierID:      product.SupplierID,
		CreatedAt:       product.CreatedAt,
		UpdatedAt:       product.UpdatedAt,
	}
	if len(product.Variants) > 0 {
		dto.Variants = make([]VariantDTO, len(product.Variants))
		for i := range product.Variants {
			dto.Variants[i] = NewVariantDTO(&product.Variants[i])
		}
	}
	return dto
}

func NewVariantDTO(variant *models.ProductVariant) VariantDTO {
	return VariantDTO{
		ID:              variant.ID,
		ProductID:       variant.ProductID,
		SKU:             variant.SKU,
		Name:            variant.Name,
		CostPrice:       variant.CostPrice,
		SellingPrice:    variant.SellingPrice,
		ReorderPoint:    variant.ReorderPoint,
		ReorderQuantity: variant.ReorderQuantity,
		IsActive:        variant.IsActive,
		CreatedAt:       variant.CreatedAt,
	}
}

type CategoryDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Path        string     `json:"path,omitempty"`
	SortOrder   int        `json:"sort_order"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewCategoryDTO(category *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		ParentID:    category.ParentID,
		SortOrder:   category.SortOrder,
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt,
	}
}

type SupplierDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ContactPerson *string   `json:"contact_person,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Address       *string   `json:"address,omitempty"`
	Website       *string   `json:"website,omitempty"`
	PaymentTerms  *string   `json:"payment_terms,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewSupplierDTO(supplier *models.Supplier) SupplierDTO {
	return SupplierDTO{
		ID:            supplier.ID,
		Name:          supplier.Name,
		ContactPerson: supplier.ContactPerson,
		Email:         supplier.Email,
		Phone:         supplier.Phone,
		Address:       supplier.Address,
		Website:       supplier.Website,
		PaymentTerms:  supplier.PaymentTerms,
		Notes:         supplier.Notes,
		IsActive:      supplier.IsActive,
		CreatedAt:     supplier.CreatedAt,
	}
}
