package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type unitResolver interface {
	ResolveUnit(ctx context.Context, scope repo.Scope, unit products.Unit) (*products.UnitInfo, error)
}

type warehouseLoader interface {
	Get(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error)
	GetActive(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerMetrics interface {
	IncMovement(reason string)
	IncRejection(operation, code string)
	AddReserved(qty int)
	IncReconcileMismatch()
}

// Reference ties a ledger row to the document that caused it.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// MovementInput describes a quantity change for one unit at one warehouse.
type MovementInput struct {
	Unit        products.Unit
	WarehouseID uuid.UUID
	Delta       int
	Reason      enums.StockReason
	Reference   *Reference
	ActorID     *uuid.UUID
	Notes       *string
}

// SetQuantityInput forces a unit's quantity to Target.
type SetQuantityInput struct {
	Unit        products.Unit
	WarehouseID uuid.UUID
	Target      int
	Reason      enums.StockReason
	Reference   *Reference
	ActorID     *uuid.UUID
	Notes       *string
}

// ReservationInput holds or frees Quantity units of available stock.
type ReservationInput struct {
	Unit        products.Unit
	WarehouseID uuid.UUID
	Quantity    int
	Reference   *Reference
	ActorID     *uuid.UUID
	Notes       *string
}

// TransferInput moves Quantity units between two warehouses.
type TransferInput struct {
	Unit            products.Unit
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Quantity        int
	Reference       *Reference
	ActorID         *uuid.UUID
	Notes           *string
}

// TransferResult holds the paired ledger rows of a transfer.
type TransferResult struct {
	Out *models.StockTransaction `json:"out"`
	In  *models.StockTransaction `json:"in"`
}

type ServiceParams struct {
	DB         txRunner
	Catalog    unitResolver
	Warehouses warehouseLoader
	Outbox     outboxPublisher
	Metrics    ledgerMetrics
	Logger     *logger.Logger
}

// Service is the stock ledger. Every balance change goes through it and leaves a
// transaction row behind.
type Service struct {
	db         txRunner
	catalog    unitResolver
	warehouses warehouseLoader
	outbox     outboxPublisher
	metrics    ledgerMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Warehouses == nil {
		return nil, fmt.Errorf("warehouse loader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("metrics required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		db:         params.DB,
		catalog:    params.Catalog,
		warehouses: params.Warehouses,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *Service) observeRejection(operation string, err error) {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeInsufficientStock, pkgerrors.CodeConflict, pkgerrors.CodeValidation:
			s.metrics.IncRejection(operation, string(typed.Code()))
		}
	}
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, scope repo.Scope, actorID *uuid.UUID, eventType enums.OutboxEventType, aggregateID uuid.UUID, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:    scope.TenantID(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Actor:       outbox.Actor(actorID, ""),
		Data:        data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(eventType))
	}
	return nil
}

func referenceFields(ref *Reference) (*string, *uuid.UUID) {
	if ref == nil || ref.Type == "" {
		return nil, nil
	}
	refType := ref.Type
	refID := ref.ID
	return &refType, &refID
}

func wrapDB(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
