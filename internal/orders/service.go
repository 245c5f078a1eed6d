package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

// Service exposes the order engine.
type Service interface {
	CreateOrder(ctx context.Context, scope repo.Scope, input CreateOrderInput) (*OrderDTO, error)
	AddLine(ctx context.Context, scope repo.Scope, input AddLineInput) (*OrderDTO, error)
	RemoveLine(ctx context.Context, scope repo.Scope, input RemoveLineInput) (*OrderDTO, error)
	UpdateCharges(ctx context.Context, scope repo.Scope, input UpdateChargesInput) (*OrderDTO, error)
	Transition(ctx context.Context, scope repo.Scope, input TransitionInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, scope repo.Scope, input CancelInput) (*OrderDTO, error)
	FulfillLine(ctx context.Context, scope repo.Scope, input FulfillLineInput) (*FulfillmentDTO, error)
	Fulfill(ctx context.Context, scope repo.Scope, input FulfillInput) (*FulfillmentDTO, error)
	GetOrder(ctx context.Context, scope repo.Scope, id uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, scope repo.Scope, filter ListFilter, params pagination.Params) (*OrderList, error)
	History(ctx context.Context, scope repo.Scope, orderID uuid.UUID) ([]HistoryDTO, error)
	Fulfillments(ctx context.Context, scope repo.Scope, orderID uuid.UUID) ([]FulfillmentDTO, error)
	FulfillmentState(ctx context.Context, scope repo.Scope, orderID uuid.UUID) (enums.OrderFulfillmentState, error)
}

// LineInput describes one requested order line. UnitPrice defaults from the
// catalog: cost price for purchases and transfers, selling price otherwise.
type LineInput struct {
	Unit               products.Unit
	Quantity           int
	UnitPrice          *decimal.Decimal
	DiscountPercentage decimal.Decimal
	DiscountAmount     *decimal.Decimal
}

type CreateOrderInput struct {
	Type                   enums.OrderType
	WarehouseID            *uuid.UUID
	DestinationWarehouseID *uuid.UUID
	Lines                  []LineInput
	CustomerName           *string
	CustomerEmail          *string
	CustomerPhone          *string
	SupplierID             *uuid.UUID
	SupplierName           *string
	ShippingAddress        *string
	ShippingMethod         *string
	TaxAmount              decimal.Decimal
	ShippingAmount         decimal.Decimal
	DiscountAmount         decimal.Decimal
	Notes                  *string
	InternalNotes          *string
	RequiredDate           *time.Time
	ActorID                *uuid.UUID
}

type AddLineInput struct {
	OrderID uuid.UUID
	Line    LineInput
	ActorID *uuid.UUID
}

type RemoveLineInput struct {
	OrderID uuid.UUID
	LineID  uuid.UUID
	ActorID *uuid.UUID
}

// UpdateChargesInput replaces the order-level charges that are set.
type UpdateChargesInput struct {
	OrderID        uuid.UUID
	TaxAmount      *decimal.Decimal
	ShippingAmount *decimal.Decimal
	DiscountAmount *decimal.Decimal
	ActorID        *uuid.UUID
}

type TransitionInput struct {
	OrderID        uuid.UUID
	To             enums.OrderStatus
	ActorID        *uuid.UUID
	Notes          *string
	TrackingNumber *string
}

type CancelInput struct {
	OrderID uuid.UUID
	ActorID *uuid.UUID
	Notes   *string
}

type FulfillLineInput struct {
	OrderID        uuid.UUID
	LineID         uuid.UUID
	Quantity       int
	WarehouseID    *uuid.UUID
	Carrier        *string
	TrackingNumber *string
	ActorID        *uuid.UUID
}

// FulfillInput fulfills several lines as one fulfillment.
type FulfillInput struct {
	OrderID        uuid.UUID
	Lines          []FulfillQuantity
	WarehouseID    *uuid.UUID
	Carrier        *string
	TrackingNumber *string
	ShippingCost   decimal.Decimal
	ActorID        *uuid.UUID
}

type FulfillQuantity struct {
	LineID   uuid.UUID
	Quantity int
}

type ServiceParams struct {
	DB            txRunner
	Catalog       catalogReader
	Warehouses    warehouseResolver
	Ledger        StockLedger
	Outbox        outboxPublisher
	Metrics       orderMetrics
	NumberRetries int
	Logger        *logger.Logger
	Repository    func(scope repo.Scope) Repository
}

type service struct {
	db            txRunner
	catalog       catalogReader
	warehouses    warehouseResolver
	ledger        StockLedger
	outbox        outboxPublisher
	metrics       orderMetrics
	numberRetries int
	logg          *logger.Logger
	repoFor       func(scope repo.Scope) Repository
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Warehouses == nil {
		return nil, fmt.Errorf("warehouse resolver required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
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
	retries := params.NumberRetries
	if retries <= 0 {
		retries = 1
	}
	repoFor := params.Repository
	if repoFor == nil {
		repoFor = NewRepository
	}
	return &service{
		db:            params.DB,
		catalog:       params.Catalog,
		warehouses:    params.Warehouses,
		ledger:        params.Ledger,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		numberRetries: retries,
		logg:          params.Logger,
		repoFor:       repoFor,
	}, nil
}

// changeStatus performs one guarded status move, appends its history row and
// queues the status event. Callers hold the order lock.
func (s *service) changeStatus(ctx context.Context, tx *gorm.DB, scope repo.Scope, order *models.Order, to enums.OrderStatus, actorID *uuid.UUID, notes *string, extra map[string]any) error {
	if !CanTransition(order.OrderType, order.Status, to) {
		return invalidTransition(order, to)
	}
	from := order.Status
	updates := map[string]any{"updated_by": actorID}
	for k, v := range extra {
		updates[k] = v
	}
	r := s.repoFor(scope)
	ok, err := r.UpdateStatus(ctx, order.ID, from, to, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return invalidTransition(order, to)
	}
	if err := r.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: &from,
		ToStatus:   to,
		Notes:      notes,
		ChangedBy:  actorID,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	order.Status = to

	if err := s.emit(ctx, tx, scope, actorID, enums.EventOrderStatusChanged, order.ID, payloads.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderType:   order.OrderType,
		FromStatus:  from,
		ToStatus:    to,
	}); err != nil {
		return err
	}
	s.metrics.IncTransition(order.OrderType.String(), to.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    scope.TenantID().String(),
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"from":         from.String(),
		"to":           to.String(),
	}), "order status changed")
	return nil
}

// recomputeTotals rewrites the money columns from the current lines.
func (s *service) recomputeTotals(ctx context.Context, scope repo.Scope, order *models.Order, charges Charges, actorID *uuid.UUID) error {
	if err := charges.validate(); err != nil {
		return err
	}
	lines, err := s.repoFor(scope).FindLines(ctx, order.ID)
	if err != nil {
		return wrapDB(err, "load order lines")
	}
	lineTotals := make([]decimal.Decimal, len(lines))
	for i := range lines {
		lineTotals[i] = lines[i].LineTotal
	}
	totals := ComputeTotals(lineTotals, charges)
	if totals.Total.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "order discount exceeds order amount")
	}
	err = s.repoFor(scope).UpdateOrder(ctx, order.ID, map[string]any{
		"subtotal":        totals.Subtotal,
		"tax_amount":      charges.Tax,
		"shipping_amount": charges.Shipping,
		"discount_amount": charges.Discount,
		"total_amount":    totals.Total,
		"updated_by":      actorID,
	})
	if err != nil {
		return wrapDB(err, "update order totals")
	}
	return nil
}

// lockEditable locks an order that must still accept line and charge changes.
func (s *service) lockEditable(ctx context.Context, scope repo.Scope, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repoFor(scope).LockOrder(ctx, orderID)
	if err != nil {
		return nil, wrapDB(err, "lock order")
	}
	if !order.Status.IsEditable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order lines are locked once confirmed").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	return order, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, scope repo.Scope, actorID *uuid.UUID, eventType enums.OutboxEventType, orderID uuid.UUID, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      scope.TenantID(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         outbox.Actor(actorID, ""),
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(eventType))
	}
	return nil
}

func (s *service) load(ctx context.Context, scope repo.Scope, orderID uuid.UUID) (*OrderDTO, error) {
	r := s.repoFor(scope)
	order, err := r.FindOrder(ctx, orderID)
	if err != nil {
		return nil, wrapDB(err, "load order")
	}
	lines, err := r.FindLines(ctx, orderID)
	if err != nil {
		return nil, wrapDB(err, "load order lines")
	}
	dto := NewOrderDTO(order, lines)
	return &dto, nil
}

func invalidTransition(order *models.Order, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition not allowed").
		WithDetails(map[string]any{
			"order_type": order.OrderType.String(),
			"from":       order.Status.String(),
			"to":         to.String(),
		})
}

func wrapDB(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
