package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	"github.com/angelmondragon/stockledger-backend/internal/adjustments"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type AdjustmentService interface {
	Request(ctx context.Context, scope repo.Scope, input adjustments.RequestInput) (*models.StockAdjustment, error)
	Approve(ctx context.Context, scope repo.Scope, id, actorID uuid.UUID) (*models.StockAdjustment, error)
	Reject(ctx context.Context, scope repo.Scope, id, actorID uuid.UUID, reason string) (*models.StockAdjustment, error)
	Get(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.StockAdjustment, error)
	List(ctx context.Context, scope repo.Scope, input adjustments.ListInput) (*adjustments.List, error)
}

type requestAdjustmentRequest struct {
	unitRequest
	WarehouseID   uuid.UUID `json:"warehouse_id" validate:"required"`
	QuantityAfter *int      `json:"quantity_after" validate:"required,gte=0"`
	Reason        string    `json:"reason"`
	Notes         *string   `json:"notes,omitempty"`
}

type rejectAdjustmentRequest struct {
	Reason string `json:"reason" validate:"required,max=1024"`
}

// RequestAdjustment files a pending correction. Reason defaults to adjustment.
func RequestAdjustment(svc AdjustmentService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload requestAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var reason enums.StockReason
		if raw := strings.TrimSpace(payload.Reason); raw != "" {
			if reason, err = enums.ParseStockReason(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason").
					WithDetails(map[string]any{"field": "reason"}))
				return
			}
		}
		adj, err := svc.Request(r.Context(), scope, adjustments.RequestInput{
			Unit:          payload.unit(),
			WarehouseID:   payload.WarehouseID,
			QuantityAfter: *payload.QuantityAfter,
			Reason:        reason,
			Notes:         validators.SanitizeOptional(payload.Notes, maxNotesLength),
			ActorID:       actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, adjustments.NewAdjustmentDTO(adj))
	}
}

func ApproveAdjustment(svc AdjustmentService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "adjustmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adj, err := svc.Approve(r.Context(), scope, id, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustments.NewAdjustmentDTO(adj))
	}
}

func RejectAdjustment(svc AdjustmentService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actorID, err := scopeAndActor(r, scopes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "adjustmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload rejectAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adj, err := svc.Reject(r.Context(), scope, id, actorID, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustments.NewAdjustmentDTO(adj))
	}
}

func GetAdjustment(svc AdjustmentService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "adjustmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adj, err := svc.Get(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustments.NewAdjustmentDTO(adj))
	}
}

func ListAdjustments(svc AdjustmentService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input adjustments.ListInput
		if input.Status, err = validators.ParseQueryEnum(r, "status", enums.ParseAdjustmentStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Pagination, err = validators.ParsePagination(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), scope, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
