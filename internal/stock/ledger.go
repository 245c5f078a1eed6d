package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
)

// ApplyMovement changes the quantity of one unit at one warehouse in its own
// transaction.
func (s *Service) ApplyMovement(ctx context.Context, scope repo.Scope, input MovementInput) (*models.StockTransaction, error) {
	var txn *models.StockTransaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.Apply(ctx, tx, scope, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Apply is ApplyMovement inside the caller's transaction.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, scope repo.Scope, input MovementInput) (*models.StockTransaction, error) {
	txn, err := s.apply(ctx, scope.WithTx(tx), tx, input)
	if err != nil {
		s.observeRejection("movement", err)
		return nil, err
	}
	return txn, nil
}

func (s *Service) apply(ctx context.Context, scope repo.Scope, tx *gorm.DB, input MovementInput) (*models.StockTransaction, error) {
	if err := validateMovement(input.Reason, input.Delta); err != nil {
		return nil, err
	}
	info, err := s.resolve(ctx, scope, input.Unit, input.WarehouseID)
	if err != nil {
		return nil, err
	}
	item, err := lockItem(ctx, scope, info, input.WarehouseID, true)
	if err != nil {
		return nil, err
	}

	next := item.Quantity + input.Delta
	if !input.Reason.IsForced() && (next < 0 || (input.Delta < 0 && next < item.ReservedQuantity)) {
		return nil, insufficient(item, -input.Delta)
	}
	if next < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot go below zero")
	}

	return s.writeMovement(ctx, scope, tx, info, item, input.Delta, input.Reason, input.Reference, input.ActorID, input.Notes)
}

// SetQuantity forces the quantity of a unit to a target inside the caller's
// transaction, writing one transaction row for the difference.
func (s *Service) SetQuantity(ctx context.Context, tx *gorm.DB, scope repo.Scope, input SetQuantityInput) (*models.StockTransaction, error) {
	if !input.Reason.IsForced() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "set quantity requires an adjustment or audit reason")
	}
	if input.Target < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target quantity cannot be negative")
	}
	scope = scope.WithTx(tx)
	info, err := s.resolve(ctx, scope, input.Unit, input.WarehouseID)
	if err != nil {
		return nil, err
	}
	item, err := lockItem(ctx, scope, info, input.WarehouseID, true)
	if err != nil {
		return nil, err
	}
	return s.writeMovement(ctx, scope, tx, info, item, input.Target-item.Quantity, input.Reason, input.Reference, input.ActorID, input.Notes)
}

// Transfer moves stock between two warehouses in one transaction. Both rows are
// locked in a fixed order so opposing transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, scope repo.Scope, input TransferInput) (*TransferResult, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses must differ")
	}

	result := &TransferResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result.Out, result.In, err = s.TransferTx(ctx, tx, scope, input)
		return err
	})
	if err != nil {
		s.observeRejection("transfer", err)
		return nil, err
	}
	return result, nil
}

// TransferTx is Transfer inside the caller's transaction.
func (s *Service) TransferTx(ctx context.Context, tx *gorm.DB, scope repo.Scope, input TransferInput) (*models.StockTransaction, *models.StockTransaction, error) {
	txScope := scope.WithTx(tx)
	info, err := s.resolve(ctx, txScope, input.Unit, input.FromWarehouseID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.warehouses.GetActive(ctx, txScope, input.ToWarehouseID); err != nil {
		return nil, nil, err
	}
	first, second := input.FromWarehouseID, input.ToWarehouseID
	if second.String() < first.String() {
		first, second = second, first
	}
	for _, wh := range []uuid.UUID{first, second} {
		if _, err := lockItem(ctx, txScope, info, wh, true); err != nil {
			return nil, nil, err
		}
	}

	out, err := s.apply(ctx, txScope, tx, MovementInput{
		Unit:        input.Unit,
		WarehouseID: input.FromWarehouseID,
		Delta:       -input.Quantity,
		Reason:      enums.StockReasonTransferOut,
		Reference:   input.Reference,
		ActorID:     input.ActorID,
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, nil, err
	}
	in, err := s.apply(ctx, txScope, tx, MovementInput{
		Unit:        input.Unit,
		WarehouseID: input.ToWarehouseID,
		Delta:       input.Quantity,
		Reason:      enums.StockReasonTransferIn,
		Reference:   input.Reference,
		ActorID:     input.ActorID,
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, nil, err
	}
	return out, in, nil
}

func validateMovement(reason enums.StockReason, delta int) error {
	if !reason.IsMovement() {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is not a stock movement").
			WithDetails(map[string]any{"reason": reason.String()})
	}
	switch {
	case reason.IsInbound() && delta <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "inbound movements require a positive delta")
	case reason.IsOutbound() && delta >= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "outbound movements require a negative delta")
	case reason.IsForced() && delta == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	return nil
}

// resolve validates that the unit and warehouse belong to the scope and can hold stock.
func (s *Service) resolve(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*products.UnitInfo, error) {
	info, err := s.catalog.ResolveUnit(ctx, scope, unit)
	if err != nil {
		return nil, err
	}
	if !info.IsTracked {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not stock tracked").
			WithDetails(map[string]any{"product_id": info.ProductID.String()})
	}
	if _, err := s.warehouses.GetActive(ctx, scope, warehouseID); err != nil {
		return nil, err
	}
	return info, nil
}

// lockItem loads the stock item for update, creating it first when create is set.
// The insert tolerates a concurrent creator.
func lockItem(ctx context.Context, scope repo.Scope, info *products.UnitInfo, warehouseID uuid.UUID, create bool) (*models.StockItem, error) {
	if create {
		conn, err := scope.Raw(ctx)
		if err != nil {
			return nil, err
		}
		seed := &models.StockItem{
			TenantID:    scope.TenantID(),
			WarehouseID: warehouseID,
			UnitKey:     info.Key(),
			ProductID:   info.ProductID,
			VariantID:   info.VariantID,
		}
		err = conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "warehouse_id"}, {Name: "unit_key"}},
			DoNothing: true,
		}).Create(seed).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock item")
		}
	}

	item, err := repo.For[models.StockItem](scope).First(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("warehouse_id = ? AND unit_key = ?", warehouseID, info.Key())
	})
	if err != nil {
		return nil, wrapDB(err, "lock stock item")
	}
	return item, nil
}

// writeMovement applies delta to a locked item and appends the ledger row.
func (s *Service) writeMovement(ctx context.Context, scope repo.Scope, tx *gorm.DB, info *products.UnitInfo, item *models.StockItem, delta int, reason enums.StockReason, ref *Reference, actorID *uuid.UUID, notes *string) (*models.StockTransaction, error) {
	now := nowFunc()
	next := item.Quantity + delta
	updates := map[string]any{"quantity": next, "updated_at": now}
	if reason == enums.StockReasonAudit {
		updates["last_counted_at"] = now
	}
	affected, err := repo.For[models.StockItem](scope).Update(ctx, item.ID, updates, func(q *gorm.DB) *gorm.DB {
		return q.Where("quantity = ?", item.Quantity)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "stock item changed concurrently")
	}

	refType, refID := referenceFields(ref)
	txn := &models.StockTransaction{
		StockItemID:     item.ID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		WarehouseID:     item.WarehouseID,
		TransactionType: reason.TransactionType(),
		Reason:          reason,
		QuantityDelta:   delta,
		QuantityAfter:   next,
		ReservedAfter:   item.ReservedQuantity,
		ReferenceType:   refType,
		ReferenceID:     refID,
		Notes:           notes,
		ActorID:         actorID,
	}
	if err := repo.For[models.StockTransaction](scope).Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock transaction")
	}
	item.Quantity = next
	item.UpdatedAt = now

	if err := s.emit(ctx, tx, scope, actorID, enums.EventStockMoved, item.ID, payloads.StockMovedEvent{
		TransactionID: txn.ID,
		StockItemID:   item.ID,
		ProductID:     item.ProductID,
		VariantID:     item.VariantID,
		WarehouseID:   item.WarehouseID,
		Reason:        reason,
		QuantityDelta: delta,
		QuantityAfter: next,
		ReservedAfter: item.ReservedQuantity,
	}); err != nil {
		return nil, err
	}
	if _, err := s.evaluateAlerts(ctx, scope, tx, item, EffectiveReorderPoint(info.ProductReorderPoint, info.VariantReorderPoint)); err != nil {
		return nil, err
	}

	s.metrics.IncMovement(reason.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":      scope.TenantID().String(),
		"stock_item_id":  item.ID.String(),
		"warehouse_id":   item.WarehouseID.String(),
		"reason":         reason.String(),
		"delta":          delta,
		"quantity_after": next,
	}), "stock movement applied")
	return txn, nil
}

func insufficient(item *models.StockItem, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
		"stock_item_id": item.ID.String(),
		"warehouse_id":  item.WarehouseID.String(),
		"requested":     requested,
		"quantity":      item.Quantity,
		"reserved":      item.ReservedQuantity,
		"available":     Available(item.Quantity, item.ReservedQuantity),
	})
}

// findItem loads the stock item without creating it. A missing item returns nil.
func findItem(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID, lock bool) (*models.StockItem, error) {
	item, err := repo.For[models.StockItem](scope).First(ctx, func(q *gorm.DB) *gorm.DB {
		if lock {
			q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
		}
		return q.Where("warehouse_id = ? AND unit_key = ?", warehouseID, unit.Key())
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapDB(err, "load stock item")
	}
	return item, nil
}
