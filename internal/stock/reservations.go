package stock

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
)

// Reserve holds available stock for a pending document.
func (s *Service) Reserve(ctx context.Context, scope repo.Scope, input ReservationInput) (*models.StockTransaction, error) {
	var txn *models.StockTransaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.ReserveTx(ctx, tx, scope, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ReserveTx is Reserve inside the caller's transaction.
func (s *Service) ReserveTx(ctx context.Context, tx *gorm.DB, scope repo.Scope, input ReservationInput) (*models.StockTransaction, error) {
	txn, err := s.reserve(ctx, tx, scope.WithTx(tx), input)
	if err != nil {
		s.observeRejection("reserve", err)
		return nil, err
	}
	return txn, nil
}

func (s *Service) reserve(ctx context.Context, tx *gorm.DB, scope repo.Scope, input ReservationInput) (*models.StockTransaction, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	info, err := s.resolve(ctx, scope, input.Unit, input.WarehouseID)
	if err != nil {
		return nil, err
	}
	item, err := lockItem(ctx, scope, info, input.WarehouseID, true)
	if err != nil {
		return nil, err
	}

	affected, err := repo.For[models.StockItem](scope).Update(ctx, item.ID, map[string]any{
		"reserved_quantity": gorm.Expr("reserved_quantity + ?", input.Quantity),
		"updated_at":        nowFunc(),
	}, func(q *gorm.DB) *gorm.DB {
		return q.Where("quantity - reserved_quantity >= ?", input.Quantity)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if affected == 0 {
		return nil, insufficient(item, input.Quantity)
	}

	txn, err := s.writeReservation(ctx, tx, scope, item, input, enums.StockReasonReservation, input.Quantity)
	if err != nil {
		return nil, err
	}
	s.metrics.AddReserved(input.Quantity)
	return txn, nil
}

// Release frees previously reserved stock.
func (s *Service) Release(ctx context.Context, scope repo.Scope, input ReservationInput) (*models.StockTransaction, error) {
	var txn *models.StockTransaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.ReleaseTx(ctx, tx, scope, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ReleaseTx is Release inside the caller's transaction.
func (s *Service) ReleaseTx(ctx context.Context, tx *gorm.DB, scope repo.Scope, input ReservationInput) (*models.StockTransaction, error) {
	txn, err := s.release(ctx, tx, scope.WithTx(tx), input)
	if err != nil {
		s.observeRejection("release", err)
		return nil, err
	}
	return txn, nil
}

func (s *Service) release(ctx context.Context, tx *gorm.DB, scope repo.Scope, input ReservationInput) (*models.StockTransaction, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}
	item, err := findItem(ctx, scope, input.Unit, input.WarehouseID, true)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "nothing is reserved for this unit").
			WithDetails(map[string]any{"requested": input.Quantity, "reserved": 0})
	}

	affected, err := repo.For[models.StockItem](scope).Update(ctx, item.ID, map[string]any{
		"reserved_quantity": gorm.Expr("reserved_quantity - ?", input.Quantity),
		"updated_at":        nowFunc(),
	}, func(q *gorm.DB) *gorm.DB {
		return q.Where("reserved_quantity >= ?", input.Quantity)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "release exceeds reserved quantity").
			WithDetails(map[string]any{
				"stock_item_id": item.ID.String(),
				"requested":     input.Quantity,
				"reserved":      item.ReservedQuantity,
			})
	}

	txn, err := s.writeReservation(ctx, tx, scope, item, input, enums.StockReasonUnreservation, -input.Quantity)
	if err != nil {
		return nil, err
	}
	s.metrics.AddReserved(-input.Quantity)
	return txn, nil
}

// writeReservation re-reads the item after the conditional update and appends
// the ledger row. Reservation rows never move quantity.
func (s *Service) writeReservation(ctx context.Context, tx *gorm.DB, scope repo.Scope, item *models.StockItem, input ReservationInput, reason enums.StockReason, reservedDelta int) (*models.StockTransaction, error) {
	current, err := repo.For[models.StockItem](scope).Get(ctx, item.ID)
	if err != nil {
		return nil, wrapDB(err, "reload stock item")
	}

	refType, refID := referenceFields(input.Reference)
	txn := &models.StockTransaction{
		StockItemID:     current.ID,
		ProductID:       current.ProductID,
		VariantID:       current.VariantID,
		WarehouseID:     current.WarehouseID,
		TransactionType: reason.TransactionType(),
		Reason:          reason,
		QuantityDelta:   0,
		ReservedDelta:   reservedDelta,
		QuantityAfter:   current.Quantity,
		ReservedAfter:   current.ReservedQuantity,
		ReferenceType:   refType,
		ReferenceID:     refID,
		Notes:           input.Notes,
		ActorID:         input.ActorID,
	}
	if err := repo.For[models.StockTransaction](scope).Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reservation transaction")
	}

	eventType := enums.EventStockReserved
	qty := reservedDelta
	if reservedDelta < 0 {
		eventType = enums.EventReservationReleased
		qty = -reservedDelta
	}
	if err := s.emit(ctx, tx, scope, input.ActorID, eventType, current.ID, payloads.ReservationEvent{
		TransactionID: txn.ID,
		StockItemID:   current.ID,
		ProductID:     current.ProductID,
		VariantID:     current.VariantID,
		WarehouseID:   current.WarehouseID,
		Quantity:      qty,
		ReservedAfter: current.ReservedQuantity,
		ReferenceType: refType,
		ReferenceID:   refID,
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":      scope.TenantID().String(),
		"stock_item_id":  current.ID.String(),
		"reason":         reason.String(),
		"reserved_delta": reservedDelta,
		"reserved_after": current.ReservedQuantity,
	}), "stock reservation updated")
	return txn, nil
}
