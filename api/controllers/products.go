package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	productsvc "github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type ProductService interface {
	CreateProduct(ctx context.Context, scope repo.Scope, input productsvc.CreateProductInput) (*models.Product, error)
	CreateVariant(ctx context.Context, scope repo.Scope, productID uuid.UUID, input productsvc.CreateVariantInput) (*models.ProductVariant, error)
	GetProduct(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, scope repo.Scope, input productsvc.ListProductsInput) (*productsvc.ProductList, error)
	CreateCategory(ctx context.Context, scope repo.Scope, input productsvc.CreateCategoryInput) (*models.Category, error)
	ListCategories(ctx context.Context, scope repo.Scope, includeInactive bool) ([]models.Category, error)
	GetCategory(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Category, error)
	CategoryPath(ctx context.Context, scope repo.Scope, id uuid.UUID) (string, error)
	CreateSupplier(ctx context.Context, scope repo.Scope, input productsvc.CreateSupplierInput) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, scope repo.Scope, includeInactive bool) ([]models.Supplier, error)
}

type createProductRequest struct {
	SKU             string          `json:"sku" validate:"required,max=64"`
	Name            string          `json:"name" validate:"required,max=255"`
	Description     *string         `json:"description,omitempty"`
	Barcode         *string         `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Unit            string          `json:"unit" validate:"omitempty,max=32"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	ReorderPoint    *int            `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	ReorderQuantity *int            `json:"reorder_quantity,omitempty" validate:"omitempty,gte=0"`
	IsTracked       *bool           `json:"is_tracked,omitempty"`
	CategoryID      *uuid.UUID      `json:"category_id,omitempty"`
	SupplierID      *uuid.UUID      `json:"supplier_id,omitempty"`
}

type createVariantRequest struct {
	SKU             string           `json:"sku" validate:"required,max=64"`
	Name            string           `json:"name" validate:"required,max=255"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice    *decimal.Decimal `json:"selling_price,omitempty"`
	ReorderPoint    *int             `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	ReorderQuantity *int             `json:"reorder_quantity,omitempty" validate:"omitempty,gte=0"`
}

// CreateProduct adds a product to the tenant catalog.
func CreateProduct(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), scope, productsvc.CreateProductInput{
			SKU:             strings.TrimSpace(payload.SKU),
			Name:            strings.TrimSpace(payload.Name),
			Description:     validators.SanitizeOptional(payload.Description, 4096),
			Barcode:         validators.SanitizeOptional(payload.Barcode, 64),
			Unit:            strings.TrimSpace(payload.Unit),
			CostPrice:       payload.CostPrice,
			SellingPrice:    payload.SellingPrice,
			ReorderPoint:    payload.ReorderPoint,
			ReorderQuantity: payload.ReorderQuantity,
			IsTracked:       payload.IsTracked,
			CategoryID:      payload.CategoryID,
			SupplierID:      payload.SupplierID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, productsvc.NewProductDTO(product))
	}
}

func CreateVariant(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createVariantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.CreateVariant(r.Context(), scope, productID, productsvc.CreateVariantInput{
			SKU:             strings.TrimSpace(payload.SKU),
			Name:            strings.TrimSpace(payload.Name),
			CostPrice:       payload.CostPrice,
			SellingPrice:    payload.SellingPrice,
			ReorderPoint:    payload.ReorderPoint,
			ReorderQuantity: payload.ReorderQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, productsvc.NewVariantDTO(variant))
	}
}

func GetProduct(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, productsvc.NewProductDTO(product))
	}
}

// ListProducts pages through the catalog. q matches SKU or name.
func ListProducts(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := validators.ParseQueryUUID(r, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplierID, err := validators.ParseQueryUUID(r, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListProducts(r.Context(), scope, productsvc.ListProductsInput{
			Query:           strings.TrimSpace(r.URL.Query().Get("q")),
			CategoryID:      categoryID,
			SupplierID:      supplierID,
			IncludeInactive: includeInactive,
			Pagination:      params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type createCategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=255"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	SortOrder   int        `json:"sort_order" validate:"gte=0"`
}

type createSupplierRequest struct {
	Name          string  `json:"name" validate:"required,max=255"`
	ContactPerson *string `json:"contact_person,omitempty" validate:"omitempty,max=255"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address       *string `json:"address,omitempty"`
	Website       *string `json:"website,omitempty" validate:"omitempty,url"`
	PaymentTerms  *string `json:"payment_terms,omitempty" validate:"omitempty,max=100"`
	Notes         *string `json:"notes,omitempty"`
}

func CreateCategory(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.CreateCategory(r.Context(), scope, productsvc.CreateCategoryInput{
			Name:        strings.TrimSpace(payload.Name),
			Description: validators.SanitizeOptional(payload.Description, 4096),
			ParentID:    payload.ParentID,
			SortOrder:   payload.SortOrder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto := productsvc.NewCategoryDTO(category)
		if dto.Path, err = svc.CategoryPath(r.Context(), scope, category.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto)
	}
}

func GetCategory(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "categoryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.GetCategory(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto := productsvc.NewCategoryDTO(category)
		if dto.Path, err = svc.CategoryPath(r.Context(), scope, category.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ListCategories(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListCategories(r.Context(), scope, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]productsvc.CategoryDTO, len(rows))
		for i := range rows {
			items[i] = productsvc.NewCategoryDTO(&rows[i])
		}
		responses.WriteSuccess(w, items)
	}
}

func CreateSupplier(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.CreateSupplier(r.Context(), scope, productsvc.CreateSupplierInput{
			Name:          strings.TrimSpace(payload.Name),
			ContactPerson: validators.SanitizeOptional(payload.ContactPerson, 255),
			Email:         validators.SanitizeOptional(payload.Email, 255),
			Phone:         validators.SanitizeOptional(payload.Phone, 20),
			Address:       validators.SanitizeOptional(payload.Address, 1024),
			Website:       validators.SanitizeOptional(payload.Website, 255),
			PaymentTerms:  validators.SanitizeOptional(payload.PaymentTerms, 100),
			Notes:         validators.SanitizeOptional(payload.Notes, 4096),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, productsvc.NewSupplierDTO(supplier))
	}
}

func ListSuppliers(svc ProductService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListSuppliers(r.Context(), scope, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]productsvc.SupplierDTO, len(rows))
		for i := range rows {
			items[i] = productsvc.NewSupplierDTO(&rows[i])
		}
		responses.WriteSuccess(w, items)
	}
}
