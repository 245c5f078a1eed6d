package warehouses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries the fields for a new warehouse.
type CreateInput struct {
	Code      string
	Name      string
	Address   *string
	IsDefault bool
}

// Service manages the stock locations of a tenant.
type Service struct {
	tx   txRunner
	logg *logger.Logger
}

func NewService(tx txRunner, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{tx: tx, logg: logg}, nil
}

// Create inserts a warehouse. A default warehouse takes the flag from the previous
// default in the same transaction.
func (s *Service) Create(ctx context.Context, scope repo.Scope, input CreateInput) (*models.Warehouse, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	warehouse := &models.Warehouse{
		Code:     code,
		Name:     name,
		Address:  input.Address,
		IsActive: true,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		if err := repo.For[models.Warehouse](txScope).Create(ctx, warehouse); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_warehouses_tenant_code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "warehouse code already exists")
			}
			return wrapDB(err, "create warehouse")
		}
		if !input.IsDefault {
			return nil
		}
		if err := markDefault(ctx, txScope, warehouse.ID); err != nil {
			return err
		}
		warehouse.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    scope.TenantID().String(),
		"warehouse_id": warehouse.ID.String(),
		"code":         code,
		"is_default":   warehouse.IsDefault,
	}), "warehouse created")
	return warehouse, nil
}

func (s *Service) Get(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
	warehouse, err := repo.For[models.Warehouse](scope).Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "load warehouse")
	}
	return warehouse, nil
}

// GetActive loads a warehouse that can take stock movements.
func (s *Service) GetActive(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
	warehouse, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !warehouse.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse is inactive").
			WithDetails(map[string]any{"warehouse_id": id.String()})
	}
	return warehouse, nil
}

func (s *Service) List(ctx context.Context, scope repo.Scope, includeInactive bool) ([]models.Warehouse, error) {
	rows, err := repo.For[models.Warehouse](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if !includeInactive {
			q = q.Where("is_active = ?", true)
		}
		return q.Order("is_default DESC").Order("code ASC")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	return rows, nil
}

// Default returns the tenant's default warehouse.
func (s *Service) Default(ctx context.Context, scope repo.Scope) (*models.Warehouse, error) {
	warehouse, err := repo.For[models.Warehouse](scope).First(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("is_default = ?", true)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant has no default warehouse")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default warehouse")
	}
	return warehouse, nil
}

// SetDefault flags id as the default and clears every other warehouse of the tenant
// in one statement.
func (s *Service) SetDefault(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse *models.Warehouse
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		current, err := repo.For[models.Warehouse](txScope).Get(ctx, id)
		if err != nil {
			return wrapDB(err, "load warehouse")
		}
		if !current.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "inactive warehouse cannot be the default")
		}
		if err := markDefault(ctx, txScope, id); err != nil {
			return err
		}
		current.IsDefault = true
		warehouse = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    scope.TenantID().String(),
		"warehouse_id": id.String(),
	}), "default warehouse changed")
	return warehouse, nil
}

// Deactivate hides a warehouse from new movements. The default cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
	warehouses := repo.For[models.Warehouse](scope)
	current, err := warehouses.Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "load warehouse")
	}
	if current.IsDefault {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "default warehouse cannot be deactivated")
	}
	affected, err := warehouses.Update(ctx, id, map[string]any{"is_active": false, "updated_at": nowFunc()},
		func(q *gorm.DB) *gorm.DB { return q.Where("is_default = ?", false) })
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate warehouse")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "default warehouse cannot be deactivated")
	}
	current.IsActive = false

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    scope.TenantID().String(),
		"warehouse_id": id.String(),
	}), "warehouse deactivated")
	return current, nil
}

func markDefault(ctx context.Context, scope repo.Scope, id uuid.UUID) error {
	conn, err := scope.Raw(ctx)
	if err != nil {
		return err
	}
	err = conn.Exec(
		"UPDATE warehouses SET is_default = (id = ?), updated_at = ? WHERE tenant_id = ? AND (is_default OR id = ?)",
		id, nowFunc(), scope.TenantID(), id,
	).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default warehouse")
	}
	return nil
}

func wrapDB(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
