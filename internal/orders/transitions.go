package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

const orderReference = "order"

// Transition moves an order along its status graph. Confirming a sale or transfer
// reserves every tracked line at the source warehouse; cancelling is routed
// through CancelOrder.
func (s *service) Transition(ctx context.Context, scope repo.Scope, input TransitionInput) (*OrderDTO, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.To == enums.OrderStatusCancelled {
		return s.CancelOrder(ctx, scope, CancelInput{OrderID: input.OrderID, ActorID: input.ActorID, Notes: input.Notes})
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		r := s.repoFor(txScope)
		order, err := r.LockOrder(ctx, input.OrderID)
		if err != nil {
			return wrapDB(err, "lock order")
		}
		if !CanTransition(order.OrderType, order.Status, input.To) {
			return invalidTransition(order, input.To)
		}
		lines, err := r.FindLines(ctx, order.ID)
		if err != nil {
			return wrapDB(err, "load order lines")
		}

		extra := map[string]any{}
		switch input.To {
		case enums.OrderStatusPending:
			if len(lines) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
			}
		case enums.OrderStatusConfirmed:
			if len(lines) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
			}
			if order.OrderType.Reserves() {
				if err := s.reserveLines(ctx, tx, txScope, order, lines, input.ActorID); err != nil {
					return err
				}
			}
		case enums.OrderStatusShipped, enums.OrderStatusCompleted:
			if order.Status == enums.OrderStatusProcessing && FulfillmentState(progressOf(lines)) != enums.OrderFulfilled {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not fully fulfilled").
					WithDetails(map[string]any{"order_id": order.ID.String(), "to": input.To.String()})
			}
			if input.To == enums.OrderStatusShipped {
				extra["shipped_date"] = nowFunc()
				if input.TrackingNumber != nil {
					extra["tracking_number"] = *input.TrackingNumber
				}
				if err := r.MarkShipped(ctx, order.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark lines shipped")
				}
			}
		case enums.OrderStatusDelivered:
			extra["delivered_date"] = nowFunc()
		}
		return s.changeStatus(ctx, tx, txScope, order, input.To, input.ActorID, input.Notes, extra)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, input.OrderID)
}

// CancelOrder cancels an order that has not been fulfilled and releases whatever
// its lines still hold.
func (s *service) CancelOrder(ctx context.Context, scope repo.Scope, input CancelInput) (*OrderDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		r := s.repoFor(txScope)
		order, err := r.LockOrder(ctx, input.OrderID)
		if err != nil {
			return wrapDB(err, "lock order")
		}
		if !CanTransition(order.OrderType, order.Status, enums.OrderStatusCancelled) {
			return invalidTransition(order, enums.OrderStatusCancelled)
		}
		lines, err := r.FindLines(ctx, order.ID)
		if err != nil {
			return wrapDB(err, "load order lines")
		}
		for i := range lines {
			if lines[i].QuantityFulfilled > 0 {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order with fulfilled lines cannot be cancelled").
					WithDetails(map[string]any{"order_id": order.ID.String(), "line_id": lines[i].ID.String()})
			}
		}
		for i := range lines {
			line := &lines[i]
			if line.QuantityReserved == 0 {
				continue
			}
			if _, err := s.ledger.ReleaseTx(ctx, tx, txScope, stock.ReservationInput{
				Unit:        unitOf(line),
				WarehouseID: order.WarehouseID,
				Quantity:    line.QuantityReserved,
				Reference:   &stock.Reference{Type: orderReference, ID: order.ID},
				ActorID:     input.ActorID,
			}); err != nil {
				return err
			}
			if err := s.setReserved(ctx, txScope, line, 0); err != nil {
				return err
			}
		}
		return s.changeStatus(ctx, tx, txScope, order, enums.OrderStatusCancelled, input.ActorID, input.Notes, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, input.OrderID)
}

// reserveLines reserves the unreserved remainder of every tracked line. Any
// shortfall aborts the whole confirmation.
func (s *service) reserveLines(ctx context.Context, tx *gorm.DB, scope repo.Scope, order *models.Order, lines []models.OrderLine, actorID *uuid.UUID) error {
	for i := range lines {
		line := &lines[i]
		need := line.Quantity - line.QuantityReserved
		if need <= 0 {
			continue
		}
		tracked, err := s.tracked(ctx, scope, line)
		if err != nil {
			return err
		}
		if !tracked {
			continue
		}
		if _, err := s.ledger.ReserveTx(ctx, tx, scope, stock.ReservationInput{
			Unit:        unitOf(line),
			WarehouseID: order.WarehouseID,
			Quantity:    need,
			Reference:   &stock.Reference{Type: orderReference, ID: order.ID},
			ActorID:     actorID,
		}); err != nil {
			return err
		}
		if err := s.setReserved(ctx, scope, line, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) setReserved(ctx context.Context, scope repo.Scope, line *models.OrderLine, reserved int) error {
	ok, err := s.repoFor(scope).UpdateLine(ctx, line.ID, map[string]any{"quantity_reserved": reserved}, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line reservation")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found")
	}
	line.QuantityReserved = reserved
	return nil
}

func (s *service) tracked(ctx context.Context, scope repo.Scope, line *models.OrderLine) (bool, error) {
	info, err := s.catalog.ResolveUnit(ctx, scope, unitOf(line))
	if err != nil {
		return false, err
	}
	return info.IsTracked, nil
}

func unitOf(line *models.OrderLine) products.Unit {
	return products.Unit{ProductID: line.ProductID, VariantID: line.VariantID}
}

func progressOf(lines []models.OrderLine) []LineProgress {
	out := make([]LineProgress, len(lines))
	for i := range lines {
		out[i] = LineProgress{Quantity: lines[i].Quantity, Fulfilled: lines[i].QuantityFulfilled}
	}
	return out
}
