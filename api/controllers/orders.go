package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	"github.com/angelmondragon/stockledger-backend/internal/orders"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

const (
	maxContactLength = 255
	maxAddressLength = 1024
)

type orderLineRequest struct {
	unitRequest
	Quantity           int              `json:"quantity" validate:"gt=0"`
	UnitPrice          *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
}

func (l orderLineRequest) input() orders.LineInput {
	return orders.LineInput{
		Unit:               l.unit(),
		Quantity:           l.Quantity,
		UnitPrice:          l.UnitPrice,
		DiscountPercentage: l.DiscountPercentage,
		DiscountAmount:     l.DiscountAmount,
	}
}

type createOrderRequest struct {
	Type                   string             `json:"order_type" validate:"required"`
	WarehouseID            *uuid.UUID         `json:"warehouse_id,omitempty"`
	DestinationWarehouseID *uuid.UUID         `json:"destination_warehouse_id,omitempty"`
	Lines                  []orderLineRequest `json:"lines" validate:"dive"`
	CustomerName           *string            `json:"customer_name,omitempty"`
	CustomerEmail          *string            `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone          *string            `json:"customer_phone,omitempty"`
	SupplierID             *uuid.UUID         `json:"supplier_id,omitempty"`
	SupplierName           *string            `json:"supplier_name,omitempty"`
	ShippingAddress        *string            `json:"shipping_address,omitempty"`
	ShippingMethod         *string            `json:"shipping_method,omitempty"`
	TaxAmount              decimal.Decimal    `json:"tax_amount"`
	ShippingAmount         decimal.Decimal    `json:"shipping_amount"`
	DiscountAmount         decimal.Decimal    `json:"discount_amount"`
	Notes                  *string            `json:"notes,omitempty"`
	InternalNotes          *string            `json:"internal_notes,omitempty"`
	RequiredDate           *time.Time         `json:"required_date,omitempty"`
}

type updateChargesRequest struct {
	TaxAmount      *decimal.Decimal `json:"tax_amount,omitempty"`
	ShippingAmount *decimal.Decimal `json:"shipping_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
}

type transitionRequest struct {
	Status         string  `json:"status" validate:"required"`
	Notes          *string `json:"notes,omitempty"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

type cancelOrderRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type fulfillLineRequest struct {
	LineID   uuid.UUID `json:"line_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
}

type fulfillRequest struct {
	Lines          []fulfillLineRequest `json:"lines" validate:"required,min=1,dive"`
	WarehouseID    *uuid.UUID           `json:"warehouse_id,omitempty"`
	Carrier        *string              `json:"carrier,omitempty"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
	ShippingCost   decimal.Decimal      `json:"shipping_cost"`
}

// CreateOrder opens a draft order. The order number is allocated per tenant and type.
func CreateOrder(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderType, err := enums.ParseOrderType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type").
				WithDetails(map[string]any{"field": "order_type"}))
			return
		}
		lines := make([]orders.LineInput, len(payload.Lines))
		for i, l := range payload.Lines {
			lines[i] = l.input()
		}
		order, err := svc.CreateOrder(r.Context(), scope, orders.CreateOrderInput{
			Type:                   orderType,
			WarehouseID:            payload.WarehouseID,
			DestinationWarehouseID: payload.DestinationWarehouseID,
			Lines:                  lines,
			CustomerName:           validators.SanitizeOptional(payload.CustomerName, maxContactLength),
			CustomerEmail:          validators.SanitizeOptional(payload.CustomerEmail, maxContactLength),
			CustomerPhone:          validators.SanitizeOptional(payload.CustomerPhone, 64),
			SupplierID:             payload.SupplierID,
			SupplierName:           validators.SanitizeOptional(payload.SupplierName, maxContactLength),
			ShippingAddress:        validators.SanitizeOptional(payload.ShippingAddress, maxAddressLength),
			ShippingMethod:         validators.SanitizeOptional(payload.ShippingMethod, 64),
			TaxAmount:              payload.TaxAmount,
			ShippingAmount:         payload.ShippingAmount,
			DiscountAmount:         payload.DiscountAmount,
			Notes:                  validators.SanitizeOptional(payload.Notes, maxNotesLength),
			InternalNotes:          validators.SanitizeOptional(payload.InternalNotes, maxNotesLength),
			RequiredDate:           payload.RequiredDate,
			ActorID:                &actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, order)
	}
}

func ListOrders(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter orders.ListFilter
		if filter.Type, err = validators.ParseQueryEnum(r, "order_type", enums.ParseOrderType); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Status, err = validators.ParseQueryEnum(r, "status", enums.ParseOrderStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListOrders(r.Context(), scope, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetOrder(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return orderRead(scopes, logg, func(ctx context.Context, scope repo.Scope, id uuid.UUID) (any, error) {
		return svc.GetOrder(ctx, scope, id)
	})
}

func OrderHistory(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return orderRead(scopes, logg, func(ctx context.Context, scope repo.Scope, id uuid.UUID) (any, error) {
		return svc.History(ctx, scope, id)
	})
}

func orderRead(scopes Scoper, logg *logger.Logger, op func(context.Context, repo.Scope, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := op(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func AddOrderLine(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, orderID, ok := orderMutation(w, r, scopes, logg)
		if !ok {
			return
		}
		var payload orderLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AddLine(r.Context(), scope, orders.AddLineInput{OrderID: orderID, Line: payload.input(), ActorID: &actorID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func RemoveOrderLine(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, orderID, ok := orderMutation(w, r, scopes, logg)
		if !ok {
			return
		}
		lineID, err := validators.ParseURLUUID(r, "lineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RemoveLine(r.Context(), scope, orders.RemoveLineInput{OrderID: orderID, LineID: lineID, ActorID: &actorID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func UpdateOrderCharges(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, orderID, ok := orderMutation(w, r, scopes, logg)
		if !ok {
			return
		}
		var payload updateChargesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateCharges(r.Context(), scope, orders.UpdateChargesInput{
			OrderID:        orderID,
			TaxAmount:      payload.TaxAmount,
			ShippingAmount: payload.ShippingAmount,
			DiscountAmount: payload.DiscountAmount,
			ActorID:        &actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// TransitionOrder moves an order to the requested status.
func TransitionOrder(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, orderID, ok := orderMutation(w, r, scopes, logg)
		if !ok {
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}
		order, err := svc.Transition(r.Context(), scope, orders.TransitionInput{
			OrderID:        orderID,
			To:             to,
			ActorID:        &actorID,
			Notes:          validators.SanitizeOptional(payload.Notes, maxNotesLength),
			TrackingNumber: validators.SanitizeOptional(payload.TrackingNumber, 128),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func CancelOrder(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, orderID, ok := orderMutation(w, r, scopes, logg)
		if !ok {
			return
		}
		var payload cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		order, err := svc.CancelOrder(r.Context(), scope, orders.CancelInput{
			OrderID: orderID,
			ActorID: &actorID,
			Notes:   validators.SanitizeOptional(payload.Notes, maxNotesLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// FulfillOrder records one shipment or receipt covering one or more lines.
func FulfillOrder(svc orders.Service, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, orderID, ok := orderMutation(w, r, scopes, logg)
		if !ok {
			return
		}
		var payload fulfillRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines := make([]orders.FulfillQuantity, len(payload.Lines))
		for i, l := range payload.Lines {
			lines[i] = orders.FulfillQuantity{LineID: l.LineID, Quantity: l.Quantity}
		}
		fulfillment, err := svc.Fulfill(r.Context(), scope, orders.FulfillInput{
			OrderID:        orderID,
			Lines:          lines,
			WarehouseID:    payload.WarehouseID,
			Carrier:        validators.SanitizeOptional(payload.Carrier, 64),
			TrackingNumber: validators.SanitizeOptional(payload.TrackingNumber, 128),
			ShippingCost:   payload.ShippingCost,
			ActorID:        &actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, fulfillment)
	}
}

// orderMutation resolves the scope, actor and orderID shared by every order write.
// It writes the error itself and reports false when any of them is missing.
func orderMutation(w http.ResponseWriter, r *http.Request, scopes Scoper, logg *logger.Logger) (repo.Scope, uuid.UUID, uuid.UUID, bool) {
	scope, actorID, err := scopeAndActor(r, scopes)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return repo.Scope{}, uuid.Nil, uuid.Nil, false
	}
	orderID, err := validators.ParseURLUUID(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return repo.Scope{}, uuid.Nil, uuid.Nil, false
	}
	return scope, actorID, orderID, true
}
