package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

// ListFilter narrows ListOrders.
type ListFilter struct {
	Type   *enums.OrderType
	Status *enums.OrderStatus
}

type repository struct {
	scope repo.Scope
}

// NewRepository builds an orders repository bound to the provided tenant scope.
func NewRepository(scope repo.Scope) Repository {
	return &repository{scope: scope}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{scope: r.scope.WithTx(tx)}
}

// NextNumber atomically increments the tenant's counter for the order type.
func (r *repository) NextNumber(ctx context.Context, orderType enums.OrderType) (int64, error) {
	conn, err := r.scope.Raw(ctx)
	if err != nil {
		return 0, err
	}
	var next int64
	err = conn.Raw(`INSERT INTO order_sequences (tenant_id, order_type, last_value)
VALUES (?, ?, 1)
ON CONFLICT (tenant_id, order_type) DO UPDATE SET last_value = order_sequences.last_value + 1
RETURNING last_value`, r.scope.TenantID(), orderType).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return repo.For[models.Order](r.scope).Create(ctx, order)
}

func (r *repository) CreateLines(ctx context.Context, lines []*models.OrderLine) error {
	return repo.For[models.OrderLine](r.scope).CreateBatch(ctx, lines)
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return repo.For[models.Order](r.scope).Get(ctx, id)
}

func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return repo.For[models.Order](r.scope).GetForUpdate(ctx, id)
}

func (r *repository) FindLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	return repo.For[models.OrderLine](r.scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("order_id = ?", orderID).Order("created_at").Order("id")
	})
}

func (r *repository) FindLinesFor(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderLine, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	return repo.For[models.OrderLine](r.scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("order_id IN ?", orderIDs).Order("created_at").Order("id")
	})
}

func (r *repository) FindLine(ctx context.Context, orderID, lineID uuid.UUID) (*models.OrderLine, error) {
	return repo.For[models.OrderLine](r.scope).First(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND order_id = ?", lineID, orderID)
	})
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	affected, err := repo.For[models.Order](r.scope).Update(ctx, id, updates)
	if err != nil {
		return err
	}
	if affected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateStatus moves the order only if it is still in from. It reports whether the
// guard matched.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	affected, err := repo.For[models.Order](r.scope).Update(ctx, id, values, func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", from)
	})
	return affected > 0, err
}

func (r *repository) UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any, guard repo.Filter) (bool, error) {
	affected, err := repo.For[models.OrderLine](r.scope).Update(ctx, lineID, updates, guard)
	return affected > 0, err
}

func (r *repository) DeleteLine(ctx context.Context, orderID, lineID uuid.UUID) (bool, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return false, err
	}
	res := conn.Where("id = ? AND order_id = ?", lineID, orderID).Delete(&models.OrderLine{})
	return res.RowsAffected > 0, res.Error
}

// MarkShipped copies each line's fulfilled quantity into its shipped quantity.
func (r *repository) MarkShipped(ctx context.Context, orderID uuid.UUID) error {
	_, err := repo.For[models.OrderLine](r.scope).UpdateWhere(ctx, map[string]any{
		"quantity_shipped": gorm.Expr("quantity_fulfilled"),
	}, func(q *gorm.DB) *gorm.DB {
		return q.Where("order_id = ?", orderID)
	})
	return err
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return repo.For[models.OrderStatusHistory](r.scope).Create(ctx, entry)
}

func (r *repository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return repo.For[models.OrderStatusHistory](r.scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("order_id = ?", orderID).Order("created_at").Order("id")
	})
}

func (r *repository) CreateFulfillment(ctx context.Context, fulfillment *models.OrderFulfillment, lines []*models.OrderFulfillmentLine) error {
	if err := repo.For[models.OrderFulfillment](r.scope).Create(ctx, fulfillment); err != nil {
		return err
	}
	for _, line := range lines {
		line.FulfillmentID = fulfillment.ID
	}
	return repo.For[models.OrderFulfillmentLine](r.scope).CreateBatch(ctx, lines)
}

func (r *repository) CountFulfillments(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return repo.For[models.OrderFulfillment](r.scope).Count(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("order_id = ?", orderID)
	})
}

func (r *repository) ListFulfillments(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error) {
	return repo.For[models.OrderFulfillment](r.scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("order_id = ?", orderID).Preload("Lines").Order("created_at").Order("id")
	})
}

func (r *repository) ListOrders(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	return repo.For[models.Order](r.scope).Find(ctx, func(q *gorm.DB) *gorm.DB {
		if filter.Type != nil {
			q = q.Where("order_type = ?", *filter.Type)
		}
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		return pagination.Keyset(q, "", cursor, limit)
	})
}
