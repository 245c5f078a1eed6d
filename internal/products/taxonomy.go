package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

// maxCategoryDepth bounds parent walks so a corrupted tree cannot loop forever.
const maxCategoryDepth = 32

const categoryPathSeparator = " > "

type CreateCategoryInput struct {
	Name        string
	Description *string
	ParentID    *uuid.UUID
	SortOrder   int
}

type CreateSupplierInput struct {
	Name          string
	ContactPerson *string
	Email         *string
	Phone         *string
	Address       *string
	Website       *string
	PaymentTerms  *string
	Notes         *string
}

// CreateCategory stores a category, optionally under an active parent of the same tenant.
func (s *Service) CreateCategory(ctx context.Context, scope repo.Scope, input CreateCategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.SortOrder < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sort_order cannot be negative")
	}
	if input.ParentID != nil {
		parent, err := repo.For[models.Category](scope).Get(ctx, *input.ParentID)
		if err != nil {
			return nil, wrapDB(err, "parent category", "load parent category")
		}
		if !parent.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent category is inactive")
		}
	}

	category := &models.Category{
		Name:        name,
		Description: input.Description,
		ParentID:    input.ParentID,
		IsActive:    true,
		SortOrder:   input.SortOrder,
	}
	if err := repo.For[models.Category](scope).Create(ctx, category); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_categories_tenant_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		return nil, wrapDB(err, "category", "create category")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":   scope.TenantID().String(),
		"category_id": category.ID.String(),
	}), "category created")
	return category, nil
}

// ListCategories returns the tenant's categories in display order.
func (s *Service) ListCategories(ctx context.Context, scope repo.Scope, includeInactive bool) ([]models.Category, error) {
	rows, err := repo.For[models.Category](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if !includeInactive {
			q = q.Where("is_active = ?", true)
		}
		return q.Order("sort_order ASC").Order("name ASC")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

func (s *Service) GetCategory(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Category, error) {
	category, err := repo.For[models.Category](scope).Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "category", "load category")
	}
	return category, nil
}

// CategoryPath renders the category's ancestry root first, e.g. "Drinks > Coffee".
func (s *Service) CategoryPath(ctx context.Context, scope repo.Scope, id uuid.UUID) (string, error) {
	categories := repo.For[models.Category](scope)
	var names []string
	next := &id
	for depth := 0; next != nil; depth++ {
		if depth == maxCategoryDepth {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "category tree too deep").
				WithDetails(map[string]any{"category_id": id.String()})
		}
		category, err := categories.Get(ctx, *next)
		if err != nil {
			return "", wrapDB(err, "category", "load category")
		}
		names = append(names, category.Name)
		next = category.ParentID
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, categoryPathSeparator), nil
}

func (s *Service) CreateSupplier(ctx context.Context, scope repo.Scope, input CreateSupplierInput) (*models.Supplier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	supplier := &models.Supplier{
		Name:          name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		Website:       input.Website,
		PaymentTerms:  input.PaymentTerms,
		Notes:         input.Notes,
		IsActive:      true,
	}
	if err := repo.For[models.Supplier](scope).Create(ctx, supplier); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_suppliers_tenant_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "supplier name already exists")
		}
		return nil, wrapDB(err, "supplier", "create supplier")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":   scope.TenantID().String(),
		"supplier_id": supplier.ID.String(),
	}), "supplier created")
	return supplier, nil
}

func (s *Service) GetSupplier(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Supplier, error) {
	supplier, err := repo.For[models.Supplier](scope).Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "supplier", "load supplier")
	}
	return supplier, nil
}

// ActiveSupplier loads a supplier that can still be ordered from.
func (s *Service) ActiveSupplier(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Supplier, error) {
	supplier, err := s.GetSupplier(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !supplier.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier is inactive").
			WithDetails(map[string]any{"supplier_id": id.String()})
	}
	return supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context, scope repo.Scope, includeInactive bool) ([]models.Supplier, error) {
	rows, err := repo.For[models.Supplier](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if !includeInactive {
			q = q.Where("is_active = ?", true)
		}
		return q.Order("name ASC")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	return rows, nil
}

// checkClassification verifies that the category and supplier a product points at
// exist in the scope's tenant.
func (s *Service) checkClassification(ctx context.Context, scope repo.Scope, categoryID, supplierID *uuid.UUID) error {
	if categoryID != nil {
		category, err := repo.For[models.Category](scope).Get(ctx, *categoryID)
		if err != nil {
			return wrapDB(err, "category", "load category")
		}
		if !category.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "category is inactive")
		}
	}
	if supplierID != nil {
		if _, err := s.ActiveSupplier(ctx, scope, *supplierID); err != nil {
			return err
		}
	}
	return nil
}
