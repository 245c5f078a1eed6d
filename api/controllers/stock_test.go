package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

type stubStock struct {
	StockService
	movement    *stock.MovementInput
	reservation *stock.ReservationInput
	transfer    *stock.TransferInput
	balanceUnit products.Unit
	err         error
}

func (s *stubStock) ApplyMovement(_ context.Context, scope repo.Scope, input stock.MovementInput) (*models.StockTransaction, error) {
	s.movement = &input
	if s.err != nil {
		return nil, s.err
	}
	return &models.StockTransaction{
		ID:            uuid.New(),
		TenantID:      scope.TenantID(),
		ProductID:     input.Unit.ProductID,
		WarehouseID:   input.WarehouseID,
		Reason:        input.Reason,
		QuantityDelta: input.Delta,
		QuantityAfter: input.Delta,
	}, nil
}

func (s *stubStock) Reserve(_ context.Context, _ repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error) {
	s.reservation = &input
	if s.err != nil {
		return nil, s.err
	}
	return &models.StockTransaction{ID: uuid.New(), ReservedDelta: input.Quantity}, nil
}

func (s *stubStock) Transfer(_ context.Context, _ repo.Scope, input stock.TransferInput) (*stock.TransferResult, error) {
	s.transfer = &input
	return &stock.TransferResult{
		Out: &models.StockTransaction{ID: uuid.New(), WarehouseID: input.FromWarehouseID, QuantityDelta: -input.Quantity},
		In:  &models.StockTransaction{ID: uuid.New(), WarehouseID: input.ToWarehouseID, QuantityDelta: input.Quantity},
	}, nil
}

func (s *stubStock) GetBalance(_ context.Context, _ repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*stock.Balance, error) {
	s.balanceUnit = unit
	return &stock.Balance{ProductID: unit.ProductID, VariantID: unit.VariantID, WarehouseID: warehouseID, Quantity: 7, Available: 7}, nil
}

func TestRecordMovementPassesActorAndReason(t *testing.T) {
	svc := &stubStock{}
	productID, warehouseID := uuid.New(), uuid.New()
	req, actorID := newRequest(t, http.MethodPost, "/api/v1/stock/movements", map[string]any{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"delta":        12,
		"reason":       "purchase",
		"notes":        "  dock 4  ",
	}, nil)
	w := httptest.NewRecorder()

	RecordMovement(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.movement)
	assert.Equal(t, enums.StockReasonPurchase, svc.movement.Reason)
	assert.Equal(t, 12, svc.movement.Delta)
	assert.Equal(t, productID, svc.movement.Unit.ProductID)
	assert.Equal(t, actorID, *svc.movement.ActorID)
	assert.Equal(t, "dock 4", *svc.movement.Notes)

	var dto stock.TransactionDTO
	decodeData(t, w, &dto)
	assert.Equal(t, 12, dto.QuantityDelta)
}

func TestRecordMovementRejectsUnknownReason(t *testing.T) {
	svc := &stubStock{}
	req, _ := newRequest(t, http.MethodPost, "/api/v1/stock/movements", map[string]any{
		"product_id":   uuid.New(),
		"warehouse_id": uuid.New(),
		"delta":        1,
		"reason":       "teleport",
	}, nil)
	w := httptest.NewRecorder()

	RecordMovement(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.movement)
}

func TestRecordMovementRejectsZeroDelta(t *testing.T) {
	svc := &stubStock{}
	req, _ := newRequest(t, http.MethodPost, "/api/v1/stock/movements", map[string]any{
		"product_id":   uuid.New(),
		"warehouse_id": uuid.New(),
		"delta":        0,
		"reason":       "damage",
	}, nil)
	w := httptest.NewRecorder()

	RecordMovement(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, w).Code)
}

func TestRecordMovementRequiresActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/movements", nil)
	w := httptest.NewRecorder()

	RecordMovement(&stubStock{}, fixedScoper, quietLogger()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReserveStockMapsInsufficientStock(t *testing.T) {
	svc := &stubStock{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock available").
		WithDetails(map[string]any{"available": 2, "requested": 5})}
	req, _ := newRequest(t, http.MethodPost, "/api/v1/stock/reservations", map[string]any{
		"product_id":   uuid.New(),
		"warehouse_id": uuid.New(),
		"quantity":     5,
	}, nil)
	w := httptest.NewRecorder()

	ReserveStock(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), decodeError(t, w).Code)
	require.NotNil(t, svc.reservation)
	assert.Equal(t, 5, svc.reservation.Quantity)
}

func TestTransferStockRejectsSameWarehouse(t *testing.T) {
	svc := &stubStock{}
	warehouseID := uuid.New()
	req, _ := newRequest(t, http.MethodPost, "/api/v1/stock/transfers", map[string]any{
		"product_id":        uuid.New(),
		"from_warehouse_id": warehouseID,
		"to_warehouse_id":   warehouseID,
		"quantity":          3,
	}, nil)
	w := httptest.NewRecorder()

	TransferStock(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "to_warehouse_id", decodeError(t, w).Details.(map[string]any)["field"])
	assert.Nil(t, svc.transfer)
}

func TestTransferStockReturnsBothLegs(t *testing.T) {
	svc := &stubStock{}
	from, to := uuid.New(), uuid.New()
	req, _ := newRequest(t, http.MethodPost, "/api/v1/stock/transfers", map[string]any{
		"product_id":        uuid.New(),
		"from_warehouse_id": from,
		"to_warehouse_id":   to,
		"quantity":          3,
	}, nil)
	w := httptest.NewRecorder()

	TransferStock(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var out transferResponse
	decodeData(t, w, &out)
	assert.Equal(t, from, out.Out.WarehouseID)
	assert.Equal(t, -3, out.Out.QuantityDelta)
	assert.Equal(t, to, out.In.WarehouseID)
	assert.Equal(t, 3, out.In.QuantityDelta)
}

func TestGetStockBalanceRequiresWarehouse(t *testing.T) {
	req, _ := newRequest(t, http.MethodGet, "/api/v1/stock/balance?product_id="+uuid.NewString(), nil, nil)
	w := httptest.NewRecorder()

	GetStockBalance(&stubStock{}, fixedScoper, quietLogger()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "warehouse_id", decodeError(t, w).Details.(map[string]any)["field"])
}

func TestGetStockBalanceReadsVariant(t *testing.T) {
	svc := &stubStock{}
	productID, variantID, warehouseID := uuid.New(), uuid.New(), uuid.New()
	target := "/api/v1/stock/balance?product_id=" + productID.String() +
		"&variant_id=" + variantID.String() + "&warehouse_id=" + warehouseID.String()
	req, _ := newRequest(t, http.MethodGet, target, nil, nil)
	w := httptest.NewRecorder()

	GetStockBalance(svc, fixedScoper, quietLogger()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.balanceUnit.VariantID)
	assert.Equal(t, variantID, *svc.balanceUnit.VariantID)
	var balance stock.Balance
	decodeData(t, w, &balance)
	assert.Equal(t, 7, balance.Available)
}

func TestParseTransactionFilter(t *testing.T) {
	refID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/transactions?reason=sale&reference_type=order&reference_id="+refID.String(), nil)

	filter, err := parseTransactionFilter(req)

	require.NoError(t, err)
	require.NotNil(t, filter.Reason)
	assert.Equal(t, enums.StockReasonSale, *filter.Reason)
	assert.Equal(t, "order", *filter.ReferenceType)
	assert.Equal(t, refID, *filter.ReferenceID)
	assert.Nil(t, filter.WarehouseID)
}
