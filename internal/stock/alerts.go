package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

var openAlertStatuses = []enums.StockAlertStatus{enums.StockAlertStatusActive, enums.StockAlertStatusAcknowledged}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	Status      *enums.StockAlertStatus
	WarehouseID *uuid.UUID
}

// AlertList is one page of stock alerts.
type AlertList struct {
	Items  []AlertDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// evaluateAlerts opens, refreshes or resolves the alert of a stock item after its
// quantity changed. It reports whether a new alert was opened.
func (s *Service) evaluateAlerts(ctx context.Context, scope repo.Scope, tx *gorm.DB, item *models.StockItem, reorderPoint int) (bool, error) {
	alerts := repo.For[models.StockAlert](scope)
	open, err := alerts.First(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("stock_item_id = ? AND status IN ?", item.ID, openAlertStatuses).
			Order("created_at DESC")
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, wrapDB(err, "load stock alert")
		}
		open = nil
	}

	now := nowFunc()
	if !IsLowStock(item.Quantity, reorderPoint) {
		if open == nil {
			return false, nil
		}
		_, err := alerts.UpdateWhere(ctx, map[string]any{
			"status":           enums.StockAlertStatusResolved,
			"current_quantity": item.Quantity,
			"resolved_at":      now,
			"updated_at":       now,
		}, func(q *gorm.DB) *gorm.DB {
			return q.Where("stock_item_id = ? AND status IN ?", item.ID, openAlertStatuses)
		})
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve stock alerts")
		}
		return false, nil
	}

	alertType := enums.StockAlertLowStock
	if item.Quantity <= 0 {
		alertType = enums.StockAlertOutOfStock
	}
	if open != nil {
		_, err := alerts.Update(ctx, open.ID, map[string]any{
			"alert_type":       alertType,
			"threshold":        reorderPoint,
			"current_quantity": item.Quantity,
			"updated_at":       now,
		})
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh stock alert")
		}
		return false, nil
	}

	alert := &models.StockAlert{
		StockItemID:     item.ID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		WarehouseID:     item.WarehouseID,
		AlertType:       alertType,
		Status:          enums.StockAlertStatusActive,
		Threshold:       reorderPoint,
		CurrentQuantity: item.Quantity,
	}
	if err := alerts.Create(ctx, alert); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock alert")
	}
	err = s.emit(ctx, tx, scope, nil, enums.EventLowStockRaised, alert.ID, payloads.LowStockRaisedEvent{
		AlertID:         alert.ID,
		AlertType:       alertType,
		StockItemID:     item.ID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		WarehouseID:     item.WarehouseID,
		Threshold:       reorderPoint,
		CurrentQuantity: item.Quantity,
	})
	if err != nil {
		return false, err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":     scope.TenantID().String(),
		"stock_item_id": item.ID.String(),
		"alert_type":    alertType.String(),
		"quantity":      item.Quantity,
		"threshold":     reorderPoint,
	}), "stock alert raised")
	return true, nil
}

// ScanLowStock re-evaluates every stock item of the scope and returns how many
// new alerts were opened.
func (s *Service) ScanLowStock(ctx context.Context, scope repo.Scope) (int, error) {
	opened := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txScope := scope.WithTx(tx)
		balances, err := s.ListBalances(ctx, txScope, BalanceFilter{})
		if err != nil {
			return err
		}
		for _, b := range balances {
			if b.StockItemID == nil {
				continue
			}
			item, err := repo.For[models.StockItem](txScope).Get(ctx, *b.StockItemID)
			if err != nil {
				return wrapDB(err, "load stock item")
			}
			raised, err := s.evaluateAlerts(ctx, txScope, tx, item, b.ReorderPoint)
			if err != nil {
				return err
			}
			if raised {
				opened++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return opened, nil
}

// AcknowledgeAlert marks an active alert as seen.
func (s *Service) AcknowledgeAlert(ctx context.Context, scope repo.Scope, alertID, actorID uuid.UUID) (*models.StockAlert, error) {
	now := nowFunc()
	return s.moveAlert(ctx, scope, alertID, []enums.StockAlertStatus{enums.StockAlertStatusActive}, map[string]any{
		"status":          enums.StockAlertStatusAcknowledged,
		"acknowledged_by": actorID,
		"acknowledged_at": now,
		"updated_at":      now,
	})
}

// ResolveAlert closes an open alert by hand.
func (s *Service) ResolveAlert(ctx context.Context, scope repo.Scope, alertID uuid.UUID) (*models.StockAlert, error) {
	now := nowFunc()
	return s.moveAlert(ctx, scope, alertID, openAlertStatuses, map[string]any{
		"status":      enums.StockAlertStatusResolved,
		"resolved_at": now,
		"updated_at":  now,
	})
}

func (s *Service) moveAlert(ctx context.Context, scope repo.Scope, alertID uuid.UUID, from []enums.StockAlertStatus, updates map[string]any) (*models.StockAlert, error) {
	var alert *models.StockAlert
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		alerts := repo.For[models.StockAlert](scope.WithTx(tx))
		current, err := alerts.Get(ctx, alertID)
		if err != nil {
			return wrapDB(err, "load stock alert")
		}
		affected, err := alerts.Update(ctx, alertID, updates, func(q *gorm.DB) *gorm.DB {
			return q.Where("status IN ?", from)
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock alert")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "alert cannot move from its current status").
				WithDetails(map[string]any{"status": current.Status.String(), "to": updates["status"]})
		}
		alert, err = alerts.Get(ctx, alertID)
		return wrapDB(err, "reload stock alert")
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// ListAlerts pages through stock alerts newest first.
func (s *Service) ListAlerts(ctx context.Context, scope repo.Scope, filter AlertFilter, params pagination.Params) (*AlertList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := repo.For[models.StockAlert](scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		if filter.WarehouseID != nil {
			q = q.Where("warehouse_id = ?", *filter.WarehouseID)
		}
		return pagination.Keyset(q, "", cursor, params.Limit)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock alerts")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(a models.StockAlert) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	items := make([]AlertDTO, len(rows))
	for i := range rows {
		items[i] = NewAlertDTO(&rows[i])
	}
	return &AlertList{Items: items, Cursor: next}, nil
}
