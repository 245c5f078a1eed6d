package orders

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/internal/warehouses"
	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/metrics"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

type harness struct {
	svc    Service
	ledger *stock.Service
	conn   *gorm.DB
	scope  repo.Scope
	main   models.Warehouse
	annex  models.Warehouse
	unit   products.Unit
}

func newService(t *testing.T, conn *gorm.DB, retries int) (Service, *stock.Service) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	tx := dbpkg.FromGorm(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	reg := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	catalog, err := products.NewService(logg)
	require.NoError(t, err)
	whs, err := warehouses.NewService(tx, logg)
	require.NoError(t, err)
	ledger, err := stock.NewService(stock.ServiceParams{
		DB:         tx,
		Catalog:    catalog,
		Warehouses: whs,
		Outbox:     publisher,
		Metrics:    ledgerMetrics,
		Logger:     logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		DB:            tx,
		Catalog:       catalog,
		Warehouses:    whs,
		Ledger:        ledger,
		Outbox:        publisher,
		Metrics:       ledgerMetrics,
		NumberRetries: retries,
		Logger:        logg,
	})
	require.NoError(t, err)
	return svc, ledger
}

func newHarness(t *testing.T, retries int) harness {
	t.Helper()
	conn := dbtest.SQLite(t)
	svc, ledger := newService(t, conn, retries)
	tenant := dbtest.SeedTenant(t, conn, "acme")
	product := dbtest.SeedProduct(t, conn, tenant.ID, "SKU-1", 0)
	return harness{
		svc:    svc,
		ledger: ledger,
		conn:   conn,
		scope:  repo.NewScope(conn, tenant.ID),
		main:   dbtest.SeedWarehouse(t, conn, tenant.ID, "MAIN", true),
		annex:  dbtest.SeedWarehouse(t, conn, tenant.ID, "ANNEX", false),
		unit:   products.Unit{ProductID: product.ID},
	}
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func (h harness) line(qty int, unitPrice string) LineInput {
	return LineInput{Unit: h.unit, Quantity: qty, UnitPrice: price(unitPrice)}
}

func (h harness) create(t *testing.T, orderType enums.OrderType, lines ...LineInput) *OrderDTO {
	t.Helper()
	input := CreateOrderInput{Type: orderType, Lines: lines}
	if orderType == enums.OrderTypeTransfer {
		input.DestinationWarehouseID = &h.annex.ID
	}
	order, err := h.svc.CreateOrder(context.Background(), h.scope, input)
	require.NoError(t, err)
	return order
}

func (h harness) stockUp(t *testing.T, warehouseID uuid.UUID, qty int) {
	t.Helper()
	_, err := h.ledger.ApplyMovement(context.Background(), h.scope, stock.MovementInput{
		Unit:        h.unit,
		WarehouseID: warehouseID,
		Delta:       qty,
		Reason:      enums.StockReasonPurchase,
	})
	require.NoError(t, err)
}

func (h harness) balance(t *testing.T, warehouseID uuid.UUID) *stock.Balance {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), h.scope, h.unit, warehouseID)
	require.NoError(t, err)
	return b
}

func (h harness) moveTo(t *testing.T, orderID uuid.UUID, statuses ...enums.OrderStatus) *OrderDTO {
	t.Helper()
	var order *OrderDTO
	for _, to := range statuses {
		var err error
		order, err = h.svc.Transition(context.Background(), h.scope, TransitionInput{OrderID: orderID, To: to})
		require.NoError(t, err, "transition to %s", to)
	}
	return order
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestCreateOrderComputesTotals(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	order := h.create(t, enums.OrderTypeSale, h.line(5, "10.00"))
	assert.Equal(t, "SO-000001", order.OrderNumber)
	assert.Equal(t, enums.OrderStatusDraft, order.Status)
	assert.Equal(t, h.main.ID, order.WarehouseID)
	assert.Equal(t, "50.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "50.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, enums.OrderUnfulfilled, order.FulfillmentState)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "SKU-1", order.Lines[0].SKU)

	order, err := h.svc.AddLine(ctx, h.scope, AddLineInput{OrderID: order.ID, Line: h.line(2, "20.00")})
	require.NoError(t, err)
	assert.Equal(t, "90.00", order.Subtotal.StringFixed(2))

	order, err = h.svc.UpdateCharges(ctx, h.scope, UpdateChargesInput{
		OrderID:        order.ID,
		TaxAmount:      price("5.00"),
		ShippingAmount: price("7.50"),
		DiscountAmount: price("2.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", order.TotalAmount.StringFixed(2))

	order, err = h.svc.RemoveLine(ctx, h.scope, RemoveLineInput{OrderID: order.ID, LineID: order.Lines[1].ID})
	require.NoError(t, err)
	assert.Equal(t, "50.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "60.00", order.TotalAmount.StringFixed(2))

	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventOrderCreated))
	history, err := h.svc.History(ctx, h.scope, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, enums.OrderStatusDraft, history[0].ToStatus)
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{Type: "barter"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{Type: enums.OrderTypeSale, Lines: []LineInput{h.line(0, "1.00")}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{Type: enums.OrderTypeTransfer})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "transfer without destination")

	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{Type: enums.OrderTypeTransfer, DestinationWarehouseID: &h.main.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "transfer to its own source")

	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{Type: enums.OrderTypeSale, DestinationWarehouseID: &h.annex.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "sale with destination")

	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{
		Type:           enums.OrderTypeSale,
		Lines:          []LineInput{h.line(1, "10.00")},
		DiscountAmount: decimal.NewFromInt(11),
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "discount above amount")
}

func TestPurchaseOrderLinksSupplier(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	catalog, err := products.NewService(logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	supplier, err := catalog.CreateSupplier(ctx, h.scope, products.CreateSupplierInput{Name: "Roastery Ltd"})
	require.NoError(t, err)

	order, err := h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{
		Type:       enums.OrderTypePurchase,
		Lines:      []LineInput{h.line(5, "4.00")},
		SupplierID: &supplier.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, order.SupplierID)
	assert.Equal(t, supplier.ID, *order.SupplierID)
	require.NotNil(t, order.SupplierName)
	assert.Equal(t, "Roastery Ltd", *order.SupplierName)

	override := "Roastery (EU desk)"
	order, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{
		Type:         enums.OrderTypePurchase,
		Lines:        []LineInput{h.line(1, "4.00")},
		SupplierID:   &supplier.ID,
		SupplierName: &override,
	})
	require.NoError(t, err)
	assert.Equal(t, override, *order.SupplierName)

	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{
		Type:       enums.OrderTypeSale,
		Lines:      []LineInput{h.line(1, "4.00")},
		SupplierID: &supplier.ID,
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]any{"field": "supplier_id"}, pkgerrors.As(err).Details())

	missing := uuid.New()
	_, err = h.svc.CreateOrder(ctx, h.scope, CreateOrderInput{
		Type:       enums.OrderTypePurchase,
		Lines:      []LineInput{h.line(1, "4.00")},
		SupplierID: &missing,
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestOrderNumbersArePerType(t *testing.T) {
	h := newHarness(t, 3)

	assert.Equal(t, "SO-000001", h.create(t, enums.OrderTypeSale).OrderNumber)
	assert.Equal(t, "SO-000002", h.create(t, enums.OrderTypeSale).OrderNumber)
	assert.Equal(t, "PO-000001", h.create(t, enums.OrderTypePurchase).OrderNumber)
	assert.Equal(t, "TO-000001", h.create(t, enums.OrderTypeTransfer).OrderNumber)
	assert.Equal(t, "RO-000001", h.create(t, enums.OrderTypeReturn).OrderNumber)
}

func seedTakenNumber(t *testing.T, h harness, number string) {
	t.Helper()
	taken := models.Order{
		TenantID:    h.scope.TenantID(),
		OrderType:   enums.OrderTypeSale,
		OrderNumber: number,
		Status:      enums.OrderStatusDraft,
		WarehouseID: h.main.ID,
		OrderDate:   time.Now().UTC(),
	}
	require.NoError(t, h.conn.Create(&taken).Error)
}

func TestCreateOrderRetriesTakenNumber(t *testing.T) {
	h := newHarness(t, 3)
	seedTakenNumber(t, h, "SO-000001")

	order := h.create(t, enums.OrderTypeSale, h.line(1, "1.00"))
	assert.Equal(t, "SO-000002", order.OrderNumber)
}

func TestCreateOrderGivesUpAfterRetries(t *testing.T) {
	h := newHarness(t, 1)
	seedTakenNumber(t, h, "SO-000001")

	_, err := h.svc.CreateOrder(context.Background(), h.scope, CreateOrderInput{Type: enums.OrderTypeSale})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDuplicateOrderNumber), "got %v", err)
	var n int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestStatusGraph(t *testing.T) {
	cases := []struct {
		orderType enums.OrderType
		from, to  enums.OrderStatus
		want      bool
	}{
		{enums.OrderTypeSale, enums.OrderStatusDraft, enums.OrderStatusPending, true},
		{enums.OrderTypeSale, enums.OrderStatusDraft, enums.OrderStatusConfirmed, false},
		{enums.OrderTypeSale, enums.OrderStatusPending, enums.OrderStatusConfirmed, true},
		{enums.OrderTypeSale, enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderTypeSale, enums.OrderStatusProcessing, enums.OrderStatusCompleted, false},
		{enums.OrderTypePurchase, enums.OrderStatusProcessing, enums.OrderStatusCompleted, true},
		{enums.OrderTypePurchase, enums.OrderStatusProcessing, enums.OrderStatusShipped, false},
		{enums.OrderTypeTransfer, enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderTypeSale, enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderTypeSale, enums.OrderStatusDelivered, enums.OrderStatusCompleted, true},
		{enums.OrderTypeSale, enums.OrderStatusCompleted, enums.OrderStatusDraft, false},
		{enums.OrderTypeSale, enums.OrderStatusCancelled, enums.OrderStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.orderType, tc.from, tc.to), "%s %s->%s", tc.orderType, tc.from, tc.to)
	}
}

func TestTransitionRejectsSkippedStates(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	order := h.create(t, enums.OrderTypeSale, h.line(1, "1.00"))

	_, err := h.svc.Transition(ctx, h.scope, TransitionInput{OrderID: order.ID, To: enums.OrderStatusShipped})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))

	empty := h.create(t, enums.OrderTypeSale)
	_, err = h.svc.Transition(ctx, h.scope, TransitionInput{OrderID: empty.ID, To: enums.OrderStatusPending})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.Transition(ctx, h.scope, TransitionInput{OrderID: uuid.New(), To: enums.OrderStatusPending})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestConfirmReservesStock(t *testing.T) {
	h := newHarness(t, 3)
	h.stockUp(t, h.main.ID, 100)
	order := h.create(t, enums.OrderTypeSale, h.line(30, "2.00"))

	order = h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Equal(t, 30, order.Lines[0].QuantityReserved)

	b := h.balance(t, h.main.ID)
	assert.Equal(t, 100, b.Quantity)
	assert.Equal(t, 30, b.Reserved)
	assert.Equal(t, 70, b.Available)
	assert.Equal(t, int64(2), countEvents(t, h.conn, enums.EventOrderStatusChanged))
}

func TestConfirmFailsWithoutStock(t *testing.T) {
	h := newHarness(t, 3)
	h.stockUp(t, h.main.ID, 5)
	order := h.create(t, enums.OrderTypeSale, h.line(3, "1.00"), h.line(4, "1.00"))
	h.moveTo(t, order.ID, enums.OrderStatusPending)

	_, err := h.svc.Transition(context.Background(), h.scope, TransitionInput{OrderID: order.ID, To: enums.OrderStatusConfirmed})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	got, err := h.svc.GetOrder(context.Background(), h.scope, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	for _, l := range got.Lines {
		assert.Zero(t, l.QuantityReserved)
	}
	assert.Zero(t, h.balance(t, h.main.ID).Reserved)
}

func TestLinesLockedAfterConfirm(t *testing.T) {
	h := newHarness(t, 3)
	h.stockUp(t, h.main.ID, 10)
	order := h.create(t, enums.OrderTypeSale, h.line(1, "1.00"))
	h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)

	_, err := h.svc.AddLine(context.Background(), h.scope, AddLineInput{OrderID: order.ID, Line: h.line(1, "1.00")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
	_, err = h.svc.UpdateCharges(context.Background(), h.scope, UpdateChargesInput{OrderID: order.ID, TaxAmount: price("1.00")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestSaleFulfillmentLifecycle(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.stockUp(t, h.main.ID, 100)
	order := h.create(t, enums.OrderTypeSale, h.line(10, "3.00"))
	order = h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	lineID := order.Lines[0].ID

	first, err := h.svc.FulfillLine(ctx, h.scope, FulfillLineInput{OrderID: order.ID, LineID: lineID, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber+"-F1", first.FulfillmentNumber)
	assert.Equal(t, enums.FulfillmentStatusPending, first.Status)

	got, err := h.svc.GetOrder(ctx, h.scope, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, got.Status)
	assert.Equal(t, enums.OrderPartiallyFulfilled, got.FulfillmentState)
	assert.Equal(t, 4, got.Lines[0].QuantityFulfilled)
	assert.Equal(t, 6, got.Lines[0].QuantityReserved)
	b := h.balance(t, h.main.ID)
	assert.Equal(t, 96, b.Quantity)
	assert.Equal(t, 6, b.Reserved)

	_, err = h.svc.FulfillLine(ctx, h.scope, FulfillLineInput{OrderID: order.ID, LineID: lineID, Quantity: 7})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeOverFulfillment))

	tracking := "1Z999"
	second, err := h.svc.FulfillLine(ctx, h.scope, FulfillLineInput{OrderID: order.ID, LineID: lineID, Quantity: 6, TrackingNumber: &tracking})
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber+"-F2", second.FulfillmentNumber)

	got, err = h.svc.GetOrder(ctx, h.scope, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)
	assert.Equal(t, enums.OrderFulfilled, got.FulfillmentState)
	assert.NotNil(t, got.ShippedDate)
	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, tracking, *got.TrackingNumber)
	assert.Equal(t, 10, got.Lines[0].QuantityShipped)
	b = h.balance(t, h.main.ID)
	assert.Equal(t, 90, b.Quantity)
	assert.Equal(t, 0, b.Reserved)

	got = h.moveTo(t, order.ID, enums.OrderStatusDelivered, enums.OrderStatusCompleted)
	assert.Equal(t, enums.OrderStatusCompleted, got.Status)
	assert.NotNil(t, got.DeliveredDate)

	fulfillments, err := h.svc.Fulfillments(ctx, h.scope, order.ID)
	require.NoError(t, err)
	require.Len(t, fulfillments, 2)
	assert.Equal(t, 4, fulfillments[0].Lines[0].Quantity)
	assert.Equal(t, int64(2), countEvents(t, h.conn, enums.EventOrderFulfilled))

	history, err := h.svc.History(ctx, h.scope, order.ID)
	require.NoError(t, err)
	statuses := make([]enums.OrderStatus, len(history))
	for i, entry := range history {
		statuses[i] = entry.ToStatus
	}
	assert.Equal(t, []enums.OrderStatus{
		enums.OrderStatusDraft,
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
	}, statuses)

	rec, err := h.ledger.Reconcile(ctx, h.scope, h.unit, h.main.ID)
	require.NoError(t, err)
	assert.True(t, rec.Matches())
}

func TestFulfillRequiresOpenOrder(t *testing.T) {
	h := newHarness(t, 3)
	order := h.create(t, enums.OrderTypeSale, h.line(1, "1.00"))

	_, err := h.svc.FulfillLine(context.Background(), h.scope, FulfillLineInput{OrderID: order.ID, LineID: order.Lines[0].ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))

	_, err = h.svc.Fulfill(context.Background(), h.scope, FulfillInput{OrderID: order.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestPurchaseReceiptCompletes(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	order := h.create(t, enums.OrderTypePurchase, h.line(12, "4.00"))
	order = h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	assert.Zero(t, order.Lines[0].QuantityReserved)

	_, err := h.svc.Fulfill(ctx, h.scope, FulfillInput{
		OrderID: order.ID,
		Lines:   []FulfillQuantity{{LineID: order.Lines[0].ID, Quantity: 12}},
	})
	require.NoError(t, err)

	got, err := h.svc.GetOrder(ctx, h.scope, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, got.Status)
	assert.Equal(t, 12, h.balance(t, h.main.ID).Quantity)

	txns, err := h.ledger.ListTransactions(ctx, h.scope, stock.TransactionFilter{ReferenceID: &order.ID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, txns.Items, 1)
	assert.Equal(t, enums.StockReasonPurchase, txns.Items[0].Reason)
}

func TestTransferOrderMovesStock(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.stockUp(t, h.main.ID, 20)
	order := h.create(t, enums.OrderTypeTransfer, h.line(5, "1.00"))
	order = h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	assert.Equal(t, 5, h.balance(t, h.main.ID).Reserved)

	_, err := h.svc.FulfillLine(ctx, h.scope, FulfillLineInput{OrderID: order.ID, LineID: order.Lines[0].ID, Quantity: 5})
	require.NoError(t, err)

	src := h.balance(t, h.main.ID)
	assert.Equal(t, 15, src.Quantity)
	assert.Equal(t, 0, src.Reserved)
	assert.Equal(t, 5, h.balance(t, h.annex.ID).Quantity)

	got, err := h.svc.GetOrder(ctx, h.scope, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)
}

func TestCancelReleasesReservations(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.stockUp(t, h.main.ID, 50)
	order := h.create(t, enums.OrderTypeSale, h.line(20, "1.00"))
	h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.Equal(t, 20, h.balance(t, h.main.ID).Reserved)

	got, err := h.svc.Transition(ctx, h.scope, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	assert.Zero(t, got.Lines[0].QuantityReserved)

	b := h.balance(t, h.main.ID)
	assert.Equal(t, 50, b.Quantity)
	assert.Equal(t, 0, b.Reserved)

	_, err = h.svc.CancelOrder(ctx, h.scope, CancelInput{OrderID: order.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestCancelAfterFulfillmentRejected(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.stockUp(t, h.main.ID, 50)
	order := h.create(t, enums.OrderTypeSale, h.line(10, "1.00"))
	order = h.moveTo(t, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	_, err := h.svc.FulfillLine(ctx, h.scope, FulfillLineInput{OrderID: order.ID, LineID: order.Lines[0].ID, Quantity: 3})
	require.NoError(t, err)

	_, err = h.svc.CancelOrder(ctx, h.scope, CancelInput{OrderID: order.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, 7, h.balance(t, h.main.ID).Reserved)
}

func TestListOrdersFiltersAndPages(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.create(t, enums.OrderTypeSale, h.line(1, "1.00"))
	}
	h.create(t, enums.OrderTypePurchase, h.line(1, "1.00"))

	sale := enums.OrderTypeSale
	page, err := h.svc.ListOrders(ctx, h.scope, ListFilter{Type: &sale}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.NotEmpty(t, page.NextCursor)
	assert.Len(t, page.Orders[0].Lines, 1)

	rest, err := h.svc.ListOrders(ctx, h.scope, ListFilter{Type: &sale}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)

	other := dbtest.SeedTenant(t, h.conn, "globex")
	foreign, err := h.svc.ListOrders(ctx, repo.NewScope(h.conn, other.ID), ListFilter{}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, foreign.Orders)

	_, err = h.svc.GetOrder(ctx, repo.NewScope(h.conn, other.ID), page.Orders[0].ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func checkConcurrentOrderNumbersAreUnique(t *testing.T, conn *gorm.DB) {
	ctx := context.Background()
	tenant := dbtest.SeedTenant(t, conn, "numbers-"+uuid.NewString()[:8])
	dbtest.SeedWarehouse(t, conn, tenant.ID, "N-"+uuid.NewString()[:6], true)
	svc, _ := newService(t, conn, 3)
	scope := repo.NewScope(conn, tenant.ID)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]int{}
	)
	for i := range 20 {
		orderType := enums.OrderTypeSale
		if i%2 == 1 {
			orderType = enums.OrderTypePurchase
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.CreateOrder(ctx, scope, CreateOrderInput{Type: orderType})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[order.OrderNumber]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, 20)
	for n, c := range numbers {
		assert.Equal(t, 1, c, n)
	}
}

func TestConcurrentCreateOrderNumbersAreUnique(t *testing.T) {
	checkConcurrentOrderNumbersAreUnique(t, dbtest.SQLite(t))
}

func TestConcurrentCreateOrderNumbersAreUniquePostgres(t *testing.T) {
	checkConcurrentOrderNumbersAreUnique(t, dbtest.Postgres(t))
}
