package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// TransactionDTO is the API view of a ledger row.
type TransactionDTO struct {
	ID              uuid.UUID                  `json:"id"`
	StockItemID     uuid.UUID                  `json:"stock_item_id"`
	ProductID       uuid.UUID                  `json:"product_id"`
	VariantID       *uuid.UUID                 `json:"variant_id,omitempty"`
	WarehouseID     uuid.UUID                  `json:"warehouse_id"`
	TransactionType enums.StockTransactionType `json:"transaction_type"`
	Reason          enums.StockReason          `json:"reason"`
	QuantityDelta   int                        `json:"quantity_delta"`
	ReservedDelta   int                        `json:"reserved_delta"`
	QuantityAfter   int                        `json:"quantity_after"`
	ReservedAfter   int                        `json:"reserved_after"`
	ReferenceType   *string                    `json:"reference_type,omitempty"`
	ReferenceID     *uuid.UUID                 `json:"reference_id,omitempty"`
	Notes           *string                    `json:"notes,omitempty"`
	ActorID         *uuid.UUID                 `json:"actor_id,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

func NewTransactionDTO(t *models.StockTransaction) TransactionDTO {
	return TransactionDTO{
		ID:              t.ID,
		StockItemID:     t.StockItemID,
		ProductID:       t.ProductID,
		VariantID:       t.VariantID,
		WarehouseID:     t.WarehouseID,
		TransactionType: t.TransactionType,
		Reason:          t.Reason,
		QuantityDelta:   t.QuantityDelta,
		ReservedDelta:   t.ReservedDelta,
		QuantityAfter:   t.QuantityAfter,
		ReservedAfter:   t.ReservedAfter,
		ReferenceType:   t.ReferenceType,
		ReferenceID:     t.ReferenceID,
		Notes:           t.Notes,
		ActorID:         t.ActorID,
		CreatedAt:       t.CreatedAt,
	}
}

// AlertDTO is the API view of a stock alert.
type AlertDTO struct {
	ID              uuid.UUID              `json:"id"`
	StockItemID     uuid.UUID              `json:"stock_item_id"`
	ProductID       uuid.UUID              `json:"product_id"`
	VariantID       *uuid.UUID             `json:"variant_id,omitempty"`
	WarehouseID     uuid.UUID              `json:"warehouse_id"`
	AlertType       enums.StockAlertType   `json:"alert_type"`
	Status          enums.StockAlertStatus `json:"status"`
	Threshold       int                    `json:"threshold"`
	CurrentQuantity int                    `json:"current_quantity"`
	AcknowledgedBy  *uuid.UUID             `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time             `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func NewAlertDTO(a *models.StockAlert) AlertDTO {
	return AlertDTO{
		ID:              a.ID,
		StockItemID:     a.StockItemID,
		ProductID:       a.ProductID,
		VariantID:       a.VariantID,
		WarehouseID:     a.WarehouseID,
		AlertType:       a.AlertType,
		Status:          a.Status,
		Threshold:       a.Threshold,
		CurrentQuantity: a.CurrentQuantity,
		AcknowledgedBy:  a.AcknowledgedBy,
		AcknowledgedAt:  a.AcknowledgedAt,
		ResolvedAt:      a.ResolvedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
