package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

// BalanceFilter narrows ListBalances.
type BalanceFilter struct {
	WarehouseID  *uuid.UUID
	ProductID    *uuid.UUID
	LowStockOnly bool
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	WarehouseID   *uuid.UUID
	ProductID     *uuid.UUID
	StockItemID   *uuid.UUID
	Reason        *enums.StockReason
	ReferenceType *string
	ReferenceID   *uuid.UUID
}

// TransactionList is one page of ledger rows.
type TransactionList struct {
	Items  []TransactionDTO `json:"items"`
	Cursor string           `json:"cursor"`
}

// GetBalance reads the current balance of a unit at a warehouse. Units that never
// moved read as zero.
func (s *Service) GetBalance(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*Balance, error) {
	info, err := s.catalog.ResolveUnit(ctx, scope, unit)
	if err != nil {
		return nil, err
	}
	if _, err := s.warehouses.Get(ctx, scope, warehouseID); err != nil {
		return nil, err
	}
	item, err := findItem(ctx, scope, unit, warehouseID, false)
	if err != nil {
		return nil, err
	}
	balance := NewBalance(item, info.ProductID, info.VariantID, warehouseID, EffectiveReorderPoint(info.ProductReorderPoint, info.VariantReorderPoint))
	return &balance, nil
}

type balanceRow struct {
	models.StockItem
	ProductReorderPoint int
	VariantReorderPoint *int
}

// ListBalances returns every stock item of the scope with its derived values.
func (s *Service) ListBalances(ctx context.Context, scope repo.Scope, filter BalanceFilter) ([]Balance, error) {
	query, err := repo.For[models.StockItem](scope).Query(ctx)
	if err != nil {
		return nil, err
	}
	query = query.
		Select("stock_items.*, products.reorder_point AS product_reorder_point, product_variants.reorder_point AS variant_reorder_point").
		Joins("JOIN products ON products.id = stock_items.product_id").
		Joins("LEFT JOIN product_variants ON product_variants.id = stock_items.variant_id")
	if filter.WarehouseID != nil {
		query = query.Where("stock_items.warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.ProductID != nil {
		query = query.Where("stock_items.product_id = ?", *filter.ProductID)
	}

	var rows []balanceRow
	if err := query.Order("stock_items.warehouse_id").Order("stock_items.unit_key").Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list balances")
	}

	out := make([]Balance, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		b := NewBalance(&row.StockItem, row.ProductID, row.VariantID, row.WarehouseID, EffectiveReorderPoint(row.ProductReorderPoint, row.VariantReorderPoint))
		if filter.LowStockOnly && !b.IsLowStock {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// ListTransactions pages through the ledger newest first.
func (s *Service) ListTransactions(ctx context.Context, scope repo.Scope, filter TransactionFilter, params pagination.Params) (*TransactionList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := repo.For[models.StockTransaction](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if filter.WarehouseID != nil {
			q = q.Where("warehouse_id = ?", *filter.WarehouseID)
		}
		if filter.ProductID != nil {
			q = q.Where("product_id = ?", *filter.ProductID)
		}
		if filter.StockItemID != nil {
			q = q.Where("stock_item_id = ?", *filter.StockItemID)
		}
		if filter.Reason != nil {
			q = q.Where("reason = ?", *filter.Reason)
		}
		if filter.ReferenceType != nil {
			q = q.Where("reference_type = ?", *filter.ReferenceType)
		}
		if filter.ReferenceID != nil {
			q = q.Where("reference_id = ?", *filter.ReferenceID)
		}
		return pagination.Keyset(q, "", cursor, params.Limit)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock transactions")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(t models.StockTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	items := make([]TransactionDTO, len(rows))
	for i := range rows {
		items[i] = NewTransactionDTO(&rows[i])
	}
	return &TransactionList{Items: items, Cursor: next}, nil
}
