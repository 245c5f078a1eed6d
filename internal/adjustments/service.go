package adjustments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledger interface {
	GetBalance(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*stock.Balance, error)
	SetQuantity(ctx context.Context, tx *gorm.DB, scope repo.Scope, input stock.SetQuantityInput) (*models.StockTransaction, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RequestInput asks for a unit's quantity to be corrected to QuantityAfter.
type RequestInput struct {
	Unit          products.Unit
	WarehouseID   uuid.UUID
	QuantityAfter int
	Reason        enums.StockReason
	Notes         *string
	ActorID       uuid.UUID
}

// ListInput filters and paginates adjustments.
type ListInput struct {
	Status      *enums.AdjustmentStatus
	WarehouseID *uuid.UUID
	Pagination  pagination.Params
}

// List is one page of adjustments.
type List struct {
	Items  []AdjustmentDTO `json:"items"`
	Cursor string          `json:"cursor"`
}

// Service runs the request, approve and reject workflow for stock corrections.
type Service struct {
	db     txRunner
	ledger ledger
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(db txRunner, ledger ledger, publisher outboxPublisher, logg *logger.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{db: db, ledger: ledger, outbox: publisher, logg: logg}, nil
}

// Request snapshots the current balance and stores a pending adjustment.
func (s *Service) Request(ctx context.Context, scope repo.Scope, input RequestInput) (*models.StockAdjustment, error) {
	if input.Reason == "" {
		input.Reason = enums.StockReasonAdjustment
	}
	if !input.Reason.IsForced() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason must be adjustment or audit")
	}
	if input.QuantityAfter < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity_after cannot be negative")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requesting actor is required")
	}

	var adj *models.StockAdjustment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		balance, err := s.ledger.GetBalance(ctx, txScope, input.Unit, input.WarehouseID)
		if err != nil {
			return err
		}
		adj = &models.StockAdjustment{
			ProductID:          balance.ProductID,
			VariantID:          balance.VariantID,
			WarehouseID:        input.WarehouseID,
			QuantityBefore:     balance.Quantity,
			QuantityAfter:      input.QuantityAfter,
			AdjustmentQuantity: input.QuantityAfter - balance.Quantity,
			Reason:             input.Reason,
			Notes:              trimmed(input.Notes),
			Status:             enums.AdjustmentStatusPending,
			RequestedBy:        input.ActorID,
		}
		if err := repo.For[models.StockAdjustment](txScope).Create(ctx, adj); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock adjustment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":     scope.TenantID().String(),
		"adjustment_id": adj.ID.String(),
		"before":        adj.QuantityBefore,
		"after":         adj.QuantityAfter,
	}), "stock adjustment requested")
	return adj, nil
}

// Approve applies a pending adjustment to the ledger. The status flip, the ledger
// write and the event commit together.
func (s *Service) Approve(ctx context.Context, scope repo.Scope, id, actorID uuid.UUID) (*models.StockAdjustment, error) {
	var adj *models.StockAdjustment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		adjustments := repo.For[models.StockAdjustment](txScope)
		current, err := adjustments.GetForUpdate(ctx, id)
		if err != nil {
			return wrapDB(err, "lock stock adjustment")
		}
		if current.Status != enums.AdjustmentStatusPending {
			return invalidTransition(current.Status, enums.AdjustmentStatusApproved)
		}

		now := nowFunc()
		affected, err := adjustments.Update(ctx, id, map[string]any{
			"status":      enums.AdjustmentStatusApproved,
			"approved_by": actorID,
			"approved_at": now,
			"updated_at":  now,
		}, pendingOnly)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve stock adjustment")
		}
		if affected == 0 {
			return invalidTransition(current.Status, enums.AdjustmentStatusApproved)
		}

		actor := actorID
		txn, err := s.ledger.SetQuantity(ctx, tx, txScope, stock.SetQuantityInput{
			Unit:        products.Unit{ProductID: current.ProductID, VariantID: current.VariantID},
			WarehouseID: current.WarehouseID,
			Target:      current.QuantityAfter,
			Reason:      current.Reason,
			Reference:   &stock.Reference{Type: "stock_adjustment", ID: current.ID},
			ActorID:     &actor,
			Notes:       current.Notes,
		})
		if err != nil {
			return err
		}
		// The balance may have moved since the request; the applied delta wins.
		if _, err := adjustments.Update(ctx, id, map[string]any{
			"transaction_id":      txn.ID,
			"adjustment_quantity": txn.QuantityDelta,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link adjustment transaction")
		}

		adj, err = adjustments.Get(ctx, id)
		if err != nil {
			return wrapDB(err, "reload stock adjustment")
		}
		return s.emit(ctx, tx, txScope, actorID, enums.EventAdjustmentApproved, adj)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":      scope.TenantID().String(),
		"adjustment_id":  adj.ID.String(),
		"approved_by":    actorID.String(),
		"quantity_after": adj.QuantityAfter,
	}), "stock adjustment approved")
	return adj, nil
}

// Reject closes a pending adjustment without touching stock.
func (s *Service) Reject(ctx context.Context, scope repo.Scope, id, actorID uuid.UUID, reason string) (*models.StockAdjustment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	var adj *models.StockAdjustment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		adjustments := repo.For[models.StockAdjustment](txScope)
		current, err := adjustments.Get(ctx, id)
		if err != nil {
			return wrapDB(err, "load stock adjustment")
		}

		now := nowFunc()
		affected, err := adjustments.Update(ctx, id, map[string]any{
			"status":           enums.AdjustmentStatusRejected,
			"rejected_by":      actorID,
			"rejected_at":      now,
			"rejection_reason": reason,
			"updated_at":       now,
		}, pendingOnly)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject stock adjustment")
		}
		if affected == 0 {
			return invalidTransition(current.Status, enums.AdjustmentStatusRejected)
		}

		adj, err = adjustments.Get(ctx, id)
		if err != nil {
			return wrapDB(err, "reload stock adjustment")
		}
		return s.emit(ctx, tx, txScope, actorID, enums.EventAdjustmentRejected, adj)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":     scope.TenantID().String(),
		"adjustment_id": adj.ID.String(),
		"rejected_by":   actorID.String(),
	}), "stock adjustment rejected")
	return adj, nil
}

func (s *Service) Get(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.StockAdjustment, error) {
	adj, err := repo.For[models.StockAdjustment](scope).Get(ctx, id)
	if err != nil {
		return nil, wrapDB(err, "load stock adjustment")
	}
	return adj, nil
}

// List pages through adjustments newest first.
func (s *Service) List(ctx context.Context, scope repo.Scope, input ListInput) (*List, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := repo.For[models.StockAdjustment](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if input.Status != nil {
			q = q.Where("status = ?", *input.Status)
		}
		if input.WarehouseID != nil {
			q = q.Where("warehouse_id = ?", *input.WarehouseID)
		}
		return pagination.Keyset(q, "", cursor, input.Pagination.Limit)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock adjustments")
	}
	rows, next := pagination.Trim(rows, input.Pagination.Limit, func(a models.StockAdjustment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	items := make([]AdjustmentDTO, len(rows))
	for i := range rows {
		items[i] = NewAdjustmentDTO(&rows[i])
	}
	return &List{Items: items, Cursor: next}, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, scope repo.Scope, actorID uuid.UUID, eventType enums.OutboxEventType, adj *models.StockAdjustment) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      scope.TenantID(),
		EventType:     eventType,
		AggregateType: enums.AggregateStockAdjustment,
		AggregateID:   adj.ID,
		Actor:         outbox.Actor(&actorID, ""),
		Data: payloads.AdjustmentDecisionEvent{
			AdjustmentID:   adj.ID,
			Status:         adj.Status,
			ProductID:      adj.ProductID,
			VariantID:      adj.VariantID,
			WarehouseID:    adj.WarehouseID,
			QuantityBefore: adj.QuantityBefore,
			QuantityAfter:  adj.QuantityAfter,
			TransactionID:  adj.TransactionID,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(eventType))
	}
	return nil
}

func pendingOnly(q *gorm.DB) *gorm.DB {
	return q.Where("status = ?", enums.AdjustmentStatusPending)
}

func invalidTransition(from, to enums.AdjustmentStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "adjustment is no longer pending").
		WithDetails(map[string]any{"status": string(from), "to": string(to)})
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func wrapDB(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock adjustment not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
