package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
)

// FulfillLine fulfills a single line.
func (s *service) FulfillLine(ctx context.Context, scope repo.Scope, input FulfillLineInput) (*FulfillmentDTO, error) {
	return s.Fulfill(ctx, scope, FulfillInput{
		OrderID:        input.OrderID,
		Lines:          []FulfillQuantity{{LineID: input.LineID, Quantity: input.Quantity}},
		WarehouseID:    input.WarehouseID,
		Carrier:        input.Carrier,
		TrackingNumber: input.TrackingNumber,
		ActorID:        input.ActorID,
	})
}

// Fulfill records one fulfillment. Each line consumes its reservation and moves
// stock in the direction of the order type, all in one transaction. A confirmed
// order moves to processing first; a fully fulfilled order advances to shipped or
// completed.
func (s *service) Fulfill(ctx context.Context, scope repo.Scope, input FulfillInput) (*FulfillmentDTO, error) {
	if err := validateFulfillLines(input.Lines); err != nil {
		return nil, err
	}
	if input.ShippingCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost must not be negative")
	}

	var (
		fulfillment *models.OrderFulfillment
		order       *models.Order
		state       enums.OrderFulfillmentState
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		r := s.repoFor(txScope)
		var err error
		order, err = r.LockOrder(ctx, input.OrderID)
		if err != nil {
			return wrapDB(err, "lock order")
		}
		if order.Status != enums.OrderStatusConfirmed && order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not open for fulfillment").
				WithDetails(map[string]any{"order_id": order.ID.String(), "status": order.Status.String()})
		}

		warehouseID := order.WarehouseID
		if input.WarehouseID != nil && *input.WarehouseID != order.WarehouseID {
			wh, err := s.warehouses.GetActive(ctx, txScope, *input.WarehouseID)
			if err != nil {
				return err
			}
			warehouseID = wh.ID
		}
		if order.DestinationWarehouseID != nil && *order.DestinationWarehouseID == warehouseID {
			return pkgerrors.New(pkgerrors.CodeValidation, "transfer cannot be fulfilled from its destination warehouse")
		}

		if order.Status == enums.OrderStatusConfirmed {
			if err := s.changeStatus(ctx, tx, txScope, order, enums.OrderStatusProcessing, input.ActorID, nil, nil); err != nil {
				return err
			}
		}

		fulfilledLines := make([]*models.OrderFulfillmentLine, 0, len(input.Lines))
		for _, req := range input.Lines {
			line, err := r.FindLine(ctx, order.ID, req.LineID)
			if err != nil {
				return lineNotFound(err)
			}
			if err := s.fulfillLine(ctx, tx, txScope, order, line, warehouseID, req.Quantity, input.ActorID); err != nil {
				return err
			}
			fulfilledLines = append(fulfilledLines, &models.OrderFulfillmentLine{OrderLineID: line.ID, Quantity: req.Quantity})
		}

		count, err := r.CountFulfillments(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count fulfillments")
		}
		fulfillment = &models.OrderFulfillment{
			OrderID:           order.ID,
			FulfillmentNumber: fmt.Sprintf("%s-F%d", order.OrderNumber, count+1),
			WarehouseID:       warehouseID,
			Status:            enums.FulfillmentStatusPending,
			Carrier:           input.Carrier,
			TrackingNumber:    input.TrackingNumber,
			ShippingCost:      input.ShippingCost.Round(2),
			CreatedBy:         input.ActorID,
		}
		if err := r.CreateFulfillment(ctx, fulfillment, fulfilledLines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fulfillment")
		}
		fulfillment.Lines = make([]models.OrderFulfillmentLine, len(fulfilledLines))
		for i, l := range fulfilledLines {
			fulfillment.Lines[i] = *l
		}

		lines, err := r.FindLines(ctx, order.ID)
		if err != nil {
			return wrapDB(err, "load order lines")
		}
		state = FulfillmentState(progressOf(lines))

		event := payloads.OrderFulfilledEvent{
			OrderID:           order.ID,
			FulfillmentID:     fulfillment.ID,
			FulfillmentNumber: fulfillment.FulfillmentNumber,
			WarehouseID:       warehouseID,
			State:             state,
			Lines:             make([]payloads.FulfilledLine, len(fulfilledLines)),
		}
		for i, l := range fulfilledLines {
			event.Lines[i] = payloads.FulfilledLine{OrderLineID: l.OrderLineID, Quantity: l.Quantity}
		}
		if err := s.emit(ctx, tx, txScope, input.ActorID, enums.EventOrderFulfilled, order.ID, event); err != nil {
			return err
		}

		if state != enums.OrderFulfilled {
			return nil
		}
		to := completionStatus(order.OrderType)
		var extra map[string]any
		if to == enums.OrderStatusShipped {
			extra = map[string]any{"shipped_date": nowFunc()}
			if input.TrackingNumber != nil {
				extra["tracking_number"] = *input.TrackingNumber
			}
			if err := r.MarkShipped(ctx, order.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark lines shipped")
			}
		}
		return s.changeStatus(ctx, tx, txScope, order, to, input.ActorID, nil, extra)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":          scope.TenantID().String(),
		"order_id":           order.ID.String(),
		"fulfillment_number": fulfillment.FulfillmentNumber,
		"state":              state.String(),
	}), "order fulfilled")
	dto := NewFulfillmentDTO(fulfillment)
	return &dto, nil
}

// fulfillLine consumes the line's reservation, moves the stock and bumps the
// fulfilled quantity.
func (s *service) fulfillLine(ctx context.Context, tx *gorm.DB, scope repo.Scope, order *models.Order, line *models.OrderLine, warehouseID uuid.UUID, qty int, actorID *uuid.UUID) error {
	remaining := line.Quantity - line.QuantityFulfilled
	if qty > remaining {
		return pkgerrors.New(pkgerrors.CodeOverFulfillment, "fulfillment exceeds the remaining line quantity").
			WithDetails(map[string]any{
				"line_id":            line.ID.String(),
				"quantity":           line.Quantity,
				"quantity_fulfilled": line.QuantityFulfilled,
				"requested":          qty,
			})
	}

	tracked, err := s.tracked(ctx, scope, line)
	if err != nil {
		return err
	}
	ref := &stock.Reference{Type: orderReference, ID: order.ID}
	released := 0
	if tracked {
		if line.QuantityReserved > 0 {
			released = min(qty, line.QuantityReserved)
			if _, err := s.ledger.ReleaseTx(ctx, tx, scope, stock.ReservationInput{
				Unit:        unitOf(line),
				WarehouseID: order.WarehouseID,
				Quantity:    released,
				Reference:   ref,
				ActorID:     actorID,
			}); err != nil {
				return err
			}
		}
		if err := s.moveStock(ctx, tx, scope, order, line, warehouseID, qty, ref, actorID); err != nil {
			return err
		}
	}

	ok, err := s.repoFor(scope).UpdateLine(ctx, line.ID, map[string]any{
		"quantity_fulfilled": gorm.Expr("quantity_fulfilled + ?", qty),
		"quantity_reserved":  line.QuantityReserved - released,
	}, func(q *gorm.DB) *gorm.DB {
		return q.Where("quantity - quantity_fulfilled >= ?", qty)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order line")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order line changed concurrently").
			WithDetails(map[string]any{"line_id": line.ID.String()})
	}
	return nil
}

func (s *service) moveStock(ctx context.Context, tx *gorm.DB, scope repo.Scope, order *models.Order, line *models.OrderLine, warehouseID uuid.UUID, qty int, ref *stock.Reference, actorID *uuid.UUID) error {
	var err error
	switch order.OrderType {
	case enums.OrderTypeSale:
		_, err = s.ledger.Apply(ctx, tx, scope, stock.MovementInput{
			Unit: unitOf(line), WarehouseID: warehouseID, Delta: -qty,
			Reason: enums.StockReasonSale, Reference: ref, ActorID: actorID,
		})
	case enums.OrderTypePurchase:
		_, err = s.ledger.Apply(ctx, tx, scope, stock.MovementInput{
			Unit: unitOf(line), WarehouseID: warehouseID, Delta: qty,
			Reason: enums.StockReasonPurchase, Reference: ref, ActorID: actorID,
		})
	case enums.OrderTypeReturn:
		_, err = s.ledger.Apply(ctx, tx, scope, stock.MovementInput{
			Unit: unitOf(line), WarehouseID: warehouseID, Delta: qty,
			Reason: enums.StockReasonReturn, Reference: ref, ActorID: actorID,
		})
	case enums.OrderTypeTransfer:
		if order.DestinationWarehouseID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "transfer order has no destination warehouse")
		}
		_, _, err = s.ledger.TransferTx(ctx, tx, scope, stock.TransferInput{
			Unit:            unitOf(line),
			FromWarehouseID: warehouseID,
			ToWarehouseID:   *order.DestinationWarehouseID,
			Quantity:        qty,
			Reference:       ref,
			ActorID:         actorID,
		})
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported order type")
	}
	return err
}

func validateFulfillLines(lines []FulfillQuantity) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "fulfillment requires at least one line")
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "fulfillment quantity must be positive").
				WithDetails(map[string]any{"line_id": l.LineID.String()})
		}
		if _, dup := seen[l.LineID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "line listed twice in one fulfillment").
				WithDetails(map[string]any{"line_id": l.LineID.String()})
		}
		seen[l.LineID] = struct{}{}
	}
	return nil
}

func lineNotFound(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line")
}
