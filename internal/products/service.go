package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

const (
	DefaultReorderPoint    = 10
	DefaultReorderQuantity = 50
	defaultUnit            = "each"
)

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU             string
	Name            string
	Description     *string
	Barcode         *string
	Unit            string
	CostPrice       decimal.Decimal
	SellingPrice    decimal.Decimal
	ReorderPoint    *int
	ReorderQuantity *int
	IsTracked       *bool
	CategoryID      *uuid.UUID
	SupplierID      *uuid.UUID
}

// CreateVariantInput holds a variant and its optional overrides.
type CreateVariantInput struct {
	SKU             string
	Name            string
	CostPrice       *decimal.Decimal
	SellingPrice    *decimal.Decimal
	ReorderPoint    *int
	ReorderQuantity *int
}

// ListProductsInput filters and paginates the catalog.
type ListProductsInput struct {
	Query           string
	CategoryID      *uuid.UUID
	SupplierID      *uuid.UUID
	IncludeInactive bool
	Pagination      pagination.Params
}

// Service manages the tenant catalog.
type Service struct {
	logg *logger.Logger
}

func NewService(logg *logger.Logger) (*Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{logg: logg}, nil
}

func (s *Service) CreateProduct(ctx context.Context, scope repo.Scope, input CreateProductInput) (*models.Product, error) {
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices cannot be negative")
	}
	reorderPoint := intOr(input.ReorderPoint, DefaultReorderPoint)
	reorderQuantity := intOr(input.ReorderQuantity, DefaultReorderQuantity)
	if reorderPoint < 0 || reorderQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder values cannot be negative")
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = defaultUnit
	}
	tracked := true
	if input.IsTracked != nil {
		tracked = *input.IsTracked
	}
	if err := s.checkClassification(ctx, scope, input.CategoryID, input.SupplierID); err != nil {
		return nil, err
	}

	product := &models.Product{
		SKU:             sku,
		Name:            name,
		Description:     input.Description,
		Barcode:         input.Barcode,
		Unit:            unit,
		CostPrice:       input.CostPrice.Round(2),
		SellingPrice:    input.SellingPrice.Round(2),
		ReorderPoint:    reorderPoint,
		ReorderQuantity: reorderQuantity,
		IsActive:        true,
		IsTracked:       tracked,
		CategoryID:      input.CategoryID,
		SupplierID:      input.SupplierID,
	}
	if err := repo.For[models.Product](scope).Create(ctx, product); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_products_tenant_sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, wrapDB(err, "product", "create product")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":  scope.TenantID().String(),
		"product_id": product.ID.String(),
		"sku":        sku,
	}), "product created")
	return product, nil
}

func (s *Service) CreateVariant(ctx context.Context, scope repo.Scope, productID uuid.UUID, input CreateVariantInput) (*models.ProductVariant, error) {
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if (input.ReorderPoint != nil && *input.ReorderPoint < 0) || (input.ReorderQuantity != nil && *input.ReorderQuantity < 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder values cannot be negative")
	}
	if _, err := repo.For[models.Product](scope).Get(ctx, productID); err != nil {
		return nil, wrapDB(err, "product", "load product")
	}

	variant := &models.ProductVariant{
		ProductID:       productID,
		SKU:             sku,
		Name:            name,
		CostPrice:       roundPtr(input.CostPrice),
		SellingPrice:    roundPtr(input.SellingPrice),
		ReorderPoint:    input.ReorderPoint,
		ReorderQuantity: input.ReorderQuantity,
		IsActive:        true,
	}
	if err := repo.For[models.ProductVariant](scope).Create(ctx, variant); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_product_variants_tenant_sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists")
		}
		return nil, wrapDB(err, "variant", "create variant")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":  scope.TenantID().String(),
		"product_id": productID.String(),
		"variant_id": variant.ID.String(),
	}), "variant created")
	return variant, nil
}

// GetProduct loads a product with its variants.
func (s *Service) GetProduct(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Product, error) {
	product, err := repo.For[models.Product](scope).Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "product", "load product")
	}
	variants, err := repo.For[models.ProductVariant](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("product_id = ?", id).Order("sku ASC")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	product.Variants = variants
	return product, nil
}

func (s *Service) GetVariant(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.ProductVariant, error) {
	variant, err := repo.For[models.ProductVariant](scope).Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "variant", "load variant")
	}
	return variant, nil
}

func (s *Service) ListProducts(ctx context.Context, scope repo.Scope, input ListProductsInput) (*ProductList, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	term := strings.ToLower(strings.TrimSpace(input.Query))

	rows, err := repo.For[models.Product](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if !input.IncludeInactive {
			q = q.Where("is_active = ?", true)
		}
		if input.CategoryID != nil {
			q = q.Where("category_id = ?", *input.CategoryID)
		}
		if input.SupplierID != nil {
			q = q.Where("supplier_id = ?", *input.SupplierID)
		}
		if term != "" {
			like := "%" + term + "%"
			q = q.Where("(LOWER(sku) LIKE ? OR LOWER(name) LIKE ?)", like, like)
		}
		return pagination.Keyset(q, "", cursor, input.Pagination.Limit)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	rows, next := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	items := make([]ProductDTO, len(rows))
	for i := range rows {
		items[i] = NewProductDTO(&rows[i])
	}
	return &ProductList{Items: items, Cursor: next}, nil
}

// ResolveUnit loads the catalog data for a stocked unit. The variant must belong to
// the product and both must belong to the scope's tenant.
func (s *Service) ResolveUnit(ctx context.Context, scope repo.Scope, unit Unit) (*UnitInfo, error) {
	if unit.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	product, err := repo.For[models.Product](scope).Get(ctx, unit.ProductID)
	if err != nil {
		return nil, wrapDB(err, "product", "load product")
	}

	info := &UnitInfo{
		Unit:                Unit{ProductID: product.ID},
		SKU:                 product.SKU,
		Name:                product.Name,
		ProductReorderPoint: product.ReorderPoint,
		ReorderQuantity:     product.ReorderQuantity,
		CostPrice:           product.CostPrice,
		SellingPrice:        product.SellingPrice,
		IsTracked:           product.IsTracked,
	}
	if !unit.HasVariant() {
		return info, nil
	}

	variant, err := repo.For[models.ProductVariant](scope).Get(ctx, *unit.VariantID)
	if err != nil {
		return nil, wrapDB(err, "variant", "load variant")
	}
	if variant.ProductID != product.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product").
			WithDetails(map[string]any{"product_id": product.ID.String(), "variant_id": variant.ID.String()})
	}
	variantID := variant.ID
	info.VariantID = &variantID
	info.SKU = variant.SKU
	info.Name = product.Name + " / " + variant.Name
	info.VariantReorderPoint = variant.ReorderPoint
	if variant.ReorderQuantity != nil {
		info.ReorderQuantity = *variant.ReorderQuantity
	}
	if variant.CostPrice != nil {
		info.CostPrice = *variant.CostPrice
	}
	if variant.SellingPrice != nil {
		info.SellingPrice = *variant.SellingPrice
	}
	return info, nil
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func roundPtr(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	rounded := v.Round(2)
	return &rounded
}

func wrapDB(err error, entity, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
