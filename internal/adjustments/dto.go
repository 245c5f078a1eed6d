package adjustments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// AdjustmentDTO is the API view of a stock adjustment.
type AdjustmentDTO struct {
	ID                 uuid.UUID              `json:"id"`
	ProductID          uuid.UUID              `json:"product_id"`
	VariantID          *uuid.UUID             `json:"variant_id,omitempty"`
	WarehouseID        uuid.UUID              `json:"warehouse_id"`
	QuantityBefore     int                    `json:"quantity_before"`
	QuantityAfter      int                    `json:"quantity_after"`
	AdjustmentQuantity int                    `json:"adjustment_quantity"`
	Reason             enums.StockReason      `json:"reason"`
	Notes              *string                `json:"notes,omitempty"`
	Status             enums.AdjustmentStatus `json:"status"`
	RequestedBy        uuid.UUID              `json:"requested_by"`
	ApprovedBy         *uuid.UUID             `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time             `json:"approved_at,omitempty"`
	RejectedBy         *uuid.UUID             `json:"rejected_by,omitempty"`
	RejectedAt         *time.Time             `json:"rejected_at,omitempty"`
	RejectionReason    *string                `json:"rejection_reason,omitempty"`
	TransactionID      *uuid.UUID             `json:"transaction_id,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func NewAdjustmentDTO(a *models.StockAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:                 a.ID,
		ProductID:          a.ProductID,
		VariantID:          a.VariantID,
		WarehouseID:        a.WarehouseID,
		QuantityBefore:     a.QuantityBefore,
		QuantityAfter:      a.QuantityAfter,
		AdjustmentQuantity: a.AdjustmentQuantity,
		Reason:             a.Reason,
		Notes:              a.Notes,
		Status:             a.Status,
		RequestedBy:        a.RequestedBy,
		ApprovedBy:         a.ApprovedBy,
		ApprovedAt:         a.ApprovedAt,
		RejectedBy:         a.RejectedBy,
		RejectedAt:         a.RejectedAt,
		RejectionReason:    a.RejectionReason,
		TransactionID:      a.TransactionID,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
