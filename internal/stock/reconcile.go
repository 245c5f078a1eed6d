package stock

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

// Reconciliation compares a stock item with the sums of its ledger rows.
type Reconciliation struct {
	StockItemID      uuid.UUID `json:"stock_item_id"`
	Quantity         int       `json:"quantity"`
	Reserved         int       `json:"reserved"`
	LedgerQuantity   int       `json:"ledger_quantity"`
	LedgerReserved   int       `json:"ledger_reserved"`
	TransactionCount int64     `json:"transaction_count"`
}

// Matches reports whether the balance agrees with the ledger.
func (r Reconciliation) Matches() bool {
	return r.Quantity == r.LedgerQuantity && r.Reserved == r.LedgerReserved
}

// Reconcile recomputes the ledger sums for a unit at a warehouse. A divergence is
// reported, never corrected. Units that never moved reconcile trivially.
func (s *Service) Reconcile(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*Reconciliation, error) {
	item, err := findItem(ctx, scope, unit, warehouseID, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &Reconciliation{}, nil
	}
	return s.reconcile(ctx, scope, item)
}

// ReconcileItem is Reconcile addressed by stock item id.
func (s *Service) ReconcileItem(ctx context.Context, scope repo.Scope, itemID uuid.UUID) (*Reconciliation, error) {
	item, err := repo.For[models.StockItem](scope).Get(ctx, itemID)
	if err != nil {
		return nil, wrapDB(err, "load stock item")
	}
	return s.reconcile(ctx, scope, item)
}

func (s *Service) reconcile(ctx context.Context, scope repo.Scope, item *models.StockItem) (*Reconciliation, error) {
	query, err := repo.For[models.StockTransaction](scope).Query(ctx)
	if err != nil {
		return nil, err
	}
	var sums struct {
		Quantity int
		Reserved int
		RowCount int64
	}
	err = query.
		Select("COALESCE(SUM(quantity_delta), 0) AS quantity, COALESCE(SUM(reserved_delta), 0) AS reserved, COUNT(*) AS row_count").
		Where("stock_item_id = ?", item.ID).
		Scan(&sums).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock transactions")
	}

	result := &Reconciliation{
		StockItemID:      item.ID,
		Quantity:         item.Quantity,
		Reserved:         item.ReservedQuantity,
		LedgerQuantity:   sums.Quantity,
		LedgerReserved:   sums.Reserved,
		TransactionCount: sums.RowCount,
	}
	if result.Matches() {
		return result, nil
	}

	s.metrics.IncReconcileMismatch()
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":       scope.TenantID().String(),
		"stock_item_id":   item.ID.String(),
		"quantity":        item.Quantity,
		"ledger_quantity": sums.Quantity,
		"reserved":        item.ReservedQuantity,
		"ledger_reserved": sums.Reserved,
	}), "stock ledger mismatch")
	return result, pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "stock balance does not match ledger").
		WithDetails(map[string]any{
			"stock_item_id":   item.ID.String(),
			"quantity":        item.Quantity,
			"ledger_quantity": sums.Quantity,
			"reserved":        item.ReservedQuantity,
			"ledger_reserved": sums.Reserved,
		})
}

// ListItemIDs returns the ids of every stock item in the scope.
func (s *Service) ListItemIDs(ctx context.Context, scope repo.Scope) ([]uuid.UUID, error) {
	query, err := repo.For[models.StockItem](scope).Query(ctx)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	if err := query.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock items")
	}
	return ids, nil
}
