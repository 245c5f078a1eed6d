package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

const maxNotesLength = 2048

type StockService interface {
	ApplyMovement(ctx context.Context, scope repo.Scope, input stock.MovementInput) (*models.StockTransaction, error)
	Reserve(ctx context.Context, scope repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error)
	Release(ctx context.Context, scope repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error)
	Transfer(ctx context.Context, scope repo.Scope, input stock.TransferInput) (*stock.TransferResult, error)
	GetBalance(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*stock.Balance, error)
	ListBalances(ctx context.Context, scope repo.Scope, filter stock.BalanceFilter) ([]stock.Balance, error)
	ListTransactions(ctx context.Context, scope repo.Scope, filter stock.TransactionFilter, params pagination.Params) (*stock.TransactionList, error)
	Reconcile(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (*stock.Reconciliation, error)
	ListAlerts(ctx context.Context, scope repo.Scope, filter stock.AlertFilter, params pagination.Params) (*stock.AlertList, error)
	AcknowledgeAlert(ctx context.Context, scope repo.Scope, alertID, actorID uuid.UUID) (*models.StockAlert, error)
	ResolveAlert(ctx context.Context, scope repo.Scope, alertID uuid.UUID) (*models.StockAlert, error)
}

type unitRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
}

func (u unitRequest) unit() products.Unit {
	return products.Unit{ProductID: u.ProductID, VariantID: u.VariantID}
}

type referenceRequest struct {
	Type string    `json:"type" validate:"required,max=32"`
	ID   uuid.UUID `json:"id" validate:"required"`
}

func (r *referenceRequest) reference() *stock.Reference {
	if r == nil {
		return nil
	}
	return &stock.Reference{Type: strings.TrimSpace(r.Type), ID: r.ID}
}

type movementRequest struct {
	unitRequest
	WarehouseID uuid.UUID         `json:"warehouse_id" validate:"required"`
	Delta       int               `json:"delta" validate:"ne=0"`
	Reason      string            `json:"reason" validate:"required"`
	Reference   *referenceRequest `json:"reference,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
}

type reservationRequest struct {
	unitRequest
	WarehouseID uuid.UUID         `json:"warehouse_id" validate:"required"`
	Quantity    int               `json:"quantity" validate:"gt=0"`
	Reference   *referenceRequest `json:"reference,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
}

type transferRequest struct {
	unitRequest
	FromWarehouseID uuid.UUID         `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   uuid.UUID         `json:"to_warehouse_id" validate:"required"`
	Quantity        int               `json:"quantity" validate:"gt=0"`
	Reference       *referenceRequest `json:"reference,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
}

type transferResponse struct {
	Out stock.TransactionDTO `json:"out"`
	In  stock.TransactionDTO `json:"in"`
}

// RecordMovement writes a single ledger movement such as a receipt, a sale or damage.
func RecordMovement(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload movementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseStockReason(strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason").
				WithDetails(map[string]any{"field": "reason"}))
			return
		}
		txn, err := svc.ApplyMovement(r.Context(), scope, stock.MovementInput{
			Unit:        payload.unit(),
			WarehouseID: payload.WarehouseID,
			Delta:       payload.Delta,
			Reason:      reason,
			Reference:   payload.Reference.reference(),
			ActorID:     &actorID,
			Notes:       validators.SanitizeOptional(payload.Notes, maxNotesLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, stock.NewTransactionDTO(txn))
	}
}

func ReserveStock(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return reservationHandler(scopes, logg, func(ctx context.Context, scope repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error) {
		return svc.Reserve(ctx, scope, input)
	})
}

func ReleaseStock(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return reservationHandler(scopes, logg, func(ctx context.Context, scope repo.Scope, input stock.ReservationInput) (*models.StockTransaction, error) {
		return svc.Release(ctx, scope, input)
	})
}

func reservationHandler(scopes Scoper, logg *logger.Logger, op func(context.Context, repo.Scope, stock.ReservationInput) (*models.StockTransaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := op(r.Context(), scope, stock.ReservationInput{
			Unit:        payload.unit(),
			WarehouseID: payload.WarehouseID,
			Quantity:    payload.Quantity,
			Reference:   payload.Reference.reference(),
			ActorID:     &actorID,
			Notes:       validators.SanitizeOptional(payload.Notes, maxNotesLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, stock.NewTransactionDTO(txn))
	}
}

func TransferStock(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// uuid.UUID is an array, so validator's field comparisons only see its length.
		if payload.FromWarehouseID == payload.ToWarehouseID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses must differ").
				WithDetails(map[string]any{"field": "to_warehouse_id"}))
			return
		}
		result, err := svc.Transfer(r.Context(), scope, stock.TransferInput{
			Unit:            payload.unit(),
			FromWarehouseID: payload.FromWarehouseID,
			ToWarehouseID:   payload.ToWarehouseID,
			Quantity:        payload.Quantity,
			Reference:       payload.Reference.reference(),
			ActorID:         &actorID,
			Notes:           validators.SanitizeOptional(payload.Notes, maxNotesLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, transferResponse{
			Out: stock.NewTransactionDTO(result.Out),
			In:  stock.NewTransactionDTO(result.In),
		})
	}
}

func GetStockBalance(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return unitQueryHandler(scopes, logg, func(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (any, error) {
		return svc.GetBalance(ctx, scope, unit, warehouseID)
	})
}

// ReconcileStock recomputes a unit's balance from its ledger and reports any drift.
func ReconcileStock(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return unitQueryHandler(scopes, logg, func(ctx context.Context, scope repo.Scope, unit products.Unit, warehouseID uuid.UUID) (any, error) {
		return svc.Reconcile(ctx, scope, unit, warehouseID)
	})
}

func unitQueryHandler(scopes Scoper, logg *logger.Logger, op func(context.Context, repo.Scope, products.Unit, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unit, warehouseID, err := parseUnitQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := op(r.Context(), scope, unit, warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ListStockBalances(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter stock.BalanceFilter
		if filter.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.ProductID, err = validators.ParseQueryUUID(r, "product_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.LowStockOnly, err = validators.ParseQueryBool(r, "low_stock"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balances, err := svc.ListBalances(r.Context(), scope, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balances)
	}
}

// ListStockTransactions pages through the ledger, newest first.
func ListStockTransactions(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseTransactionFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListTransactions(r.Context(), scope, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ListStockAlerts(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter stock.AlertFilter
		if filter.Status, err = validators.ParseQueryEnum(r, "status", enums.ParseStockAlertStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAlerts(r.Context(), scope, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AcknowledgeStockAlert(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return alertHandler(scopes, logg, func(ctx context.Context, scope repo.Scope, alertID, actorID uuid.UUID) (*models.StockAlert, error) {
		return svc.AcknowledgeAlert(ctx, scope, alertID, actorID)
	})
}

func ResolveStockAlert(svc StockService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return alertHandler(scopes, logg, func(ctx context.Context, scope repo.Scope, alertID, _ uuid.UUID) (*models.StockAlert, error) {
		return svc.ResolveAlert(ctx, scope, alertID)
	})
}

func alertHandler(scopes Scoper, logg *logger.Logger, op func(ctx context.Context, scope repo.Scope, alertID, actorID uuid.UUID) (*models.StockAlert, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		alertID, err := validators.ParseURLUUID(r, "alertID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		alert, err := op(r.Context(), scope, alertID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stock.NewAlertDTO(alert))
	}
}

func scopeAndActor(r *http.Request, scopes Scoper) (repo.Scope, uuid.UUID, error) {
	actorID, err := requireActor(r)
	if err != nil {
		return repo.Scope{}, uuid.Nil, err
	}
	scope, err := scopes(r.Context())
	if err != nil {
		return repo.Scope{}, uuid.Nil, err
	}
	return scope, actorID, nil
}

// parseUnitQuery reads product_id, variant_id and warehouse_id. The first and last
// are required.
func parseUnitQuery(r *http.Request) (products.Unit, uuid.UUID, error) {
	productID, err := requiredQueryUUID(r, "product_id")
	if err != nil {
		return products.Unit{}, uuid.Nil, err
	}
	variantID, err := validators.ParseQueryUUID(r, "variant_id")
	if err != nil {
		return products.Unit{}, uuid.Nil, err
	}
	warehouseID, err := requiredQueryUUID(r, "warehouse_id")
	if err != nil {
		return products.Unit{}, uuid.Nil, err
	}
	return products.Unit{ProductID: productID, VariantID: variantID}, warehouseID, nil
}

func requiredQueryUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := validators.ParseQueryUUID(r, key)
	if err != nil {
		return uuid.Nil, err
	}
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").
			WithDetails(map[string]any{"field": key})
	}
	return *id, nil
}

func parseTransactionFilter(r *http.Request) (stock.TransactionFilter, error) {
	var (
		filter stock.TransactionFilter
		err    error
	)
	if filter.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
		return filter, err
	}
	if filter.ProductID, err = validators.ParseQueryUUID(r, "product_id"); err != nil {
		return filter, err
	}
	if filter.StockItemID, err = validators.ParseQueryUUID(r, "stock_item_id"); err != nil {
		return filter, err
	}
	if filter.Reason, err = validators.ParseQueryEnum(r, "reason", enums.ParseStockReason); err != nil {
		return filter, err
	}
	if filter.ReferenceID, err = validators.ParseQueryUUID(r, "reference_id"); err != nil {
		return filter, err
	}
	if refType := strings.TrimSpace(r.URL.Query().Get("reference_type")); refType != "" {
		filter.ReferenceType = &refType
	}
	return filter, nil
}
