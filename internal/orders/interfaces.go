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
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables of one tenant.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextNumber(ctx context.Context, orderType enums.OrderType) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLines(ctx context.Context, lines []*models.OrderLine) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	FindLine(ctx context.Context, orderID, lineID uuid.UUID) (*models.OrderLine, error)
	FindLinesFor(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderLine, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any, guard repo.Filter) (bool, error)
	DeleteLine(ctx context.Context, orderID, lineID uuid.UUID) (bool, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) error
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	CreateFulfillment(ctx context.Context, fulfillment *models.OrderFulfillment, lines []*models.OrderFulfillmentLine) error
	CountFulfillments(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListFulfillments(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error)
	ListOrders(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalogReader interface {
	ResolveUnit(ctx context.Context, scope repo.Scope, unit products.Unit) (*products.UnitInfo, error)
	ActiveSupplier(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Supplier, error)
}

type warehouseResolver interface {
	Default(ctx context.Context, scope repo.Scope) (*models.Warehouse, error)
	GetActive(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error)
}

// StockLedger is the slice of the stock ledger the order engine drives. Every call
// joins the order's transaction.
type StockLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, scope repo.Scope, input stock.MovementInput) (*models.StockTransaction, error)
	ReserveTx(ctx context.Context, tx *gorm.DB, scope repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, scope repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error)
	TransferTx(ctx context.Context, tx *gorm.DB, scope repo.Scope, input stock.TransferInput) (*models.StockTransaction, *models.StockTransaction, error)
}

type orderMetrics interface {
	IncTransition(orderType, to string)
	IncNumberRetry(orderType string)
}
