package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
)

const orderNumberSavepoint = "order_number"

// FormatOrderNumber renders a counter value with the type prefix, e.g. SO-000042.
func FormatOrderNumber(orderType enums.OrderType, n int64) string {
	return fmt.Sprintf("%s-%06d", orderType.NumberPrefix(), n)
}

// CreateOrder stores a draft order. A colliding order number is re-allocated up to
// the configured number of attempts inside the same transaction.
func (s *service) CreateOrder(ctx context.Context, scope repo.Scope, input CreateOrderInput) (*OrderDTO, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	charges := Charges{Tax: input.TaxAmount.Round(2), Shipping: input.ShippingAmount.Round(2), Discount: input.DiscountAmount.Round(2)}
	if err := charges.validate(); err != nil {
		return nil, err
	}
	orderID, err := s.createOrder(ctx, scope, input, charges)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, orderID)
}

// resolveSupplier checks a linked supplier and returns the name to store. An
// explicit supplier_name wins over the catalog name.
func (s *service) resolveSupplier(ctx context.Context, scope repo.Scope, input CreateOrderInput) (*string, error) {
	if input.SupplierID == nil {
		return input.SupplierName, nil
	}
	if input.Type != enums.OrderTypePurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only purchase orders reference a supplier").
			WithDetails(map[string]any{"field": "supplier_id"})
	}
	supplier, err := s.catalog.ActiveSupplier(ctx, scope, *input.SupplierID)
	if err != nil {
		return nil, err
	}
	if input.SupplierName != nil {
		return input.SupplierName, nil
	}
	name := supplier.Name
	return &name, nil
}

func (s *service) createOrder(ctx context.Context, scope repo.Scope, input CreateOrderInput, charges Charges) (uuid.UUID, error) {
	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		r := s.repoFor(txScope)

		source, destination, err := s.resolveWarehouses(ctx, txScope, input)
		if err != nil {
			return err
		}
		supplierName, err := s.resolveSupplier(ctx, txScope, input)
		if err != nil {
			return err
		}
		lines := make([]*models.OrderLine, 0, len(input.Lines))
		for _, li := range input.Lines {
			line, err := s.buildLine(ctx, txScope, input.Type, li)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}

		now := nowFunc()
		order = &models.Order{
			OrderType:              input.Type,
			Status:                 enums.OrderStatusDraft,
			PaymentStatus:          enums.PaymentStatusPending,
			WarehouseID:            source,
			DestinationWarehouseID: destination,
			CustomerName:           input.CustomerName,
			CustomerEmail:          input.CustomerEmail,
			CustomerPhone:          input.CustomerPhone,
			SupplierID:             input.SupplierID,
			SupplierName:           supplierName,
			ShippingAddress:        input.ShippingAddress,
			ShippingMethod:         input.ShippingMethod,
			TaxAmount:              charges.Tax,
			ShippingAmount:         charges.Shipping,
			DiscountAmount:         charges.Discount,
			Notes:                  input.Notes,
			InternalNotes:          input.InternalNotes,
			OrderDate:              now,
			RequiredDate:           input.RequiredDate,
			CreatedBy:              input.ActorID,
			UpdatedBy:              input.ActorID,
		}
		if err := s.insertNumbered(ctx, tx, r, order); err != nil {
			return err
		}
		for _, line := range lines {
			line.OrderID = order.ID
		}
		if err := r.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
		}
		if err := s.recomputeTotals(ctx, txScope, order, charges, input.ActorID); err != nil {
			return err
		}
		if err := r.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  enums.OrderStatusDraft,
			ChangedBy: input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
		}

		stored, err := r.FindOrder(ctx, order.ID)
		if err != nil {
			return wrapDB(err, "reload order")
		}
		return s.emit(ctx, tx, txScope, input.ActorID, enums.EventOrderCreated, order.ID, payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OrderType:   order.OrderType,
			WarehouseID: order.WarehouseID,
			TotalAmount: stored.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.metrics.IncTransition(order.OrderType.String(), enums.OrderStatusDraft.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    scope.TenantID().String(),
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"order_type":   order.OrderType.String(),
		"lines":        len(input.Lines),
	}), "order created")
	return order.ID, nil
}

// insertNumbered allocates the next order number and inserts the order. A unique
// violation rolls back to a savepoint and draws the next number.
func (s *service) insertNumbered(ctx context.Context, tx *gorm.DB, r Repository, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		n, err := r.NextNumber(ctx, order.OrderType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}
		order.OrderNumber = FormatOrderNumber(order.OrderType, n)
		if err := tx.SavePoint(orderNumberSavepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open savepoint")
		}
		err = r.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !dbpkg.IsUniqueViolation(err, "uq_orders_tenant_number") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if attempt >= s.numberRetries {
			return pkgerrors.Wrap(pkgerrors.CodeDuplicateOrderNumber, err, "order number already taken").
				WithDetails(map[string]any{"order_number": order.OrderNumber, "attempts": attempt})
		}
		if err := tx.RollbackTo(orderNumberSavepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rollback to savepoint")
		}
		s.metrics.IncNumberRetry(order.OrderType.String())
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_type":   order.OrderType.String(),
			"order_number": order.OrderNumber,
			"attempt":      attempt,
		}), "order number collision")
	}
}

// resolveWarehouses picks the source warehouse, falling back to the tenant
// default, and validates the transfer destination.
func (s *service) resolveWarehouses(ctx context.Context, scope repo.Scope, input CreateOrderInput) (uuid.UUID, *uuid.UUID, error) {
	var source uuid.UUID
	if input.WarehouseID != nil {
		wh, err := s.warehouses.GetActive(ctx, scope, *input.WarehouseID)
		if err != nil {
			return uuid.Nil, nil, err
		}
		source = wh.ID
	} else {
		wh, err := s.warehouses.Default(ctx, scope)
		if err != nil {
			return uuid.Nil, nil, err
		}
		source = wh.ID
	}

	if input.Type != enums.OrderTypeTransfer {
		if input.DestinationWarehouseID != nil {
			return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "only transfer orders take a destination warehouse")
		}
		return source, nil, nil
	}
	if input.DestinationWarehouseID == nil {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer orders require a destination warehouse")
	}
	if *input.DestinationWarehouseID == source {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses must differ")
	}
	dest, err := s.warehouses.GetActive(ctx, scope, *input.DestinationWarehouseID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := dest.ID
	return source, &id, nil
}

// buildLine prices a line from the catalog. The stored SKU and name are snapshots.
func (s *service) buildLine(ctx context.Context, scope repo.Scope, orderType enums.OrderType, input LineInput) (*models.OrderLine, error) {
	info, err := s.catalog.ResolveUnit(ctx, scope, input.Unit)
	if err != nil {
		return nil, err
	}
	price := info.SellingPrice
	if orderType == enums.OrderTypePurchase || orderType == enums.OrderTypeTransfer {
		price = info.CostPrice
	}
	if input.UnitPrice != nil {
		price = input.UnitPrice.Round(2)
	}
	amounts, err := PriceLine(input.Quantity, price, input.DiscountPercentage, input.DiscountAmount)
	if err != nil {
		return nil, err
	}
	return &models.OrderLine{
		ProductID:          info.ProductID,
		VariantID:          info.VariantID,
		SKU:                info.SKU,
		Name:               info.Name,
		Quantity:           input.Quantity,
		UnitPrice:          price,
		DiscountPercentage: input.DiscountPercentage,
		DiscountAmount:     amounts.DiscountAmount,
		LineTotal:          amounts.LineTotal,
	}, nil
}

// AddLine appends a line to a draft or pending order.
func (s *service) AddLine(ctx context.Context, scope repo.Scope, input AddLineInput) (*OrderDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		order, err := s.lockEditable(ctx, txScope, input.OrderID)
		if err != nil {
			return err
		}
		line, err := s.buildLine(ctx, txScope, order.OrderType, input.Line)
		if err != nil {
			return err
		}
		line.OrderID = order.ID
		if err := s.repoFor(txScope).CreateLines(ctx, []*models.OrderLine{line}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line")
		}
		return s.recomputeTotals(ctx, txScope, order, chargesOf(order), input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, input.OrderID)
}

// RemoveLine deletes a line from a draft or pending order.
func (s *service) RemoveLine(ctx context.Context, scope repo.Scope, input RemoveLineInput) (*OrderDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		order, err := s.lockEditable(ctx, txScope, input.OrderID)
		if err != nil {
			return err
		}
		removed, err := s.repoFor(txScope).DeleteLine(ctx, order.ID, input.LineID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order line")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found")
		}
		return s.recomputeTotals(ctx, txScope, order, chargesOf(order), input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, input.OrderID)
}

// UpdateCharges replaces tax, shipping or discount on a draft or pending order.
func (s *service) UpdateCharges(ctx context.Context, scope repo.Scope, input UpdateChargesInput) (*OrderDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		order, err := s.lockEditable(ctx, txScope, input.OrderID)
		if err != nil {
			return err
		}
		charges := chargesOf(order)
		if input.TaxAmount != nil {
			charges.Tax = input.TaxAmount.Round(2)
		}
		if input.ShippingAmount != nil {
			charges.Shipping = input.ShippingAmount.Round(2)
		}
		if input.DiscountAmount != nil {
			charges.Discount = input.DiscountAmount.Round(2)
		}
		return s.recomputeTotals(ctx, txScope, order, charges, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, input.OrderID)
}

func chargesOf(order *models.Order) Charges {
	return Charges{Tax: order.TaxAmount, Shipping: order.ShippingAmount, Discount: order.DiscountAmount}
}
