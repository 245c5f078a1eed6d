package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/internal/warehouses"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type WarehouseService interface {
	Create(ctx context.Context, scope repo.Scope, input warehouses.CreateInput) (*models.Warehouse, error)
	Get(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error)
	List(ctx context.Context, scope repo.Scope, includeInactive bool) ([]models.Warehouse, error)
	SetDefault(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error)
	Deactivate(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error)
}

type warehouseResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newWarehouseResponse(w *models.Warehouse) warehouseResponse {
	return warehouseResponse{
		ID:        w.ID,
		Code:      w.Code,
		Name:      w.Name,
		Address:   w.Address,
		IsDefault: w.IsDefault,
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type createWarehouseRequest struct {
	Code      string  `json:"code" validate:"required,max=32"`
	Name      string  `json:"name" validate:"required,max=255"`
	Address   *string `json:"address,omitempty"`
	IsDefault bool    `json:"is_default"`
}

func CreateWarehouse(svc WarehouseService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createWarehouseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wh, err := svc.Create(r.Context(), scope, warehouses.CreateInput{
			Code:      strings.TrimSpace(payload.Code),
			Name:      strings.TrimSpace(payload.Name),
			Address:   validators.SanitizeOptional(payload.Address, 1024),
			IsDefault: payload.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newWarehouseResponse(wh))
	}
}

func ListWarehouses(svc WarehouseService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), scope, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]warehouseResponse, len(list))
		for i := range list {
			out[i] = newWarehouseResponse(&list[i])
		}
		responses.WriteSuccess(w, out)
	}
}

func GetWarehouse(svc WarehouseService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return warehouseAction(scopes, logg, func(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
		return svc.Get(ctx, scope, id)
	})
}

func SetDefaultWarehouse(svc WarehouseService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return warehouseAction(scopes, logg, func(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
		return svc.SetDefault(ctx, scope, id)
	})
}

func DeactivateWarehouse(svc WarehouseService, scopes Scoper, logg *logger.Logger) http.HandlerFunc {
	return warehouseAction(scopes, logg, func(ctx context.Context, scope repo.Scope, id uuid.UUID) (*models.Warehouse, error) {
		return svc.Deactivate(ctx, scope, id)
	})
}

// warehouseAction runs a single-warehouse operation keyed by the warehouseID URL param.
func warehouseAction(scopes Scoper, logg *logger.Logger, op func(context.Context, repo.Scope, uuid.UUID) (*models.Warehouse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "warehouseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wh, err := op(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWarehouseResponse(wh))
	}
}
