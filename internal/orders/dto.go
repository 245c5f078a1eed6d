package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// OrderDTO is the API view of an order with its lines.
type OrderDTO struct {
	ID                     uuid.UUID                   `json:"id"`
	OrderNumber            string                      `json:"order_number"`
	OrderType              enums.OrderType             `json:"order_type"`
	Status                 enums.OrderStatus           `json:"status"`
	PaymentStatus          enums.PaymentStatus         `json:"payment_status"`
	FulfillmentState       enums.OrderFulfillmentState `json:"fulfillment_state"`
	WarehouseID            uuid.UUID                   `json:"warehouse_id"`
	DestinationWarehouseID *uuid.UUID                  `json:"destination_warehouse_id,omitempty"`
	CustomerName           *string                     `json:"customer_name,omitempty"`
	CustomerEmail          *string                     `json:"customer_email,omitempty"`
	CustomerPhone          *string                     `json:"customer_phone,omitempty"`
	SupplierID             *uuid.UUID                  `json:"supplier_id,omitempty"`
	SupplierName           *string                     `json:"supplier_name,omitempty"`
	ShippingAddress        *string                     `json:"shipping_address,omitempty"`
	Subtotal               decimal.Decimal             `json:"subtotal"`
	TaxAmount              decimal.Decimal             `json:"tax_amount"`
	DiscountAmount         decimal.Decimal             `json:"discount_amount"`
	ShippingAmount         decimal.Decimal             `json:"shipping_amount"`
	TotalAmount            decimal.Decimal             `json:"total_amount"`
	ShippingMethod         *string                     `json:"shipping_method,omitempty"`
	TrackingNumber         *string                     `json:"tracking_number,omitempty"`
	Notes                  *string                     `json:"notes,omitempty"`
	InternalNotes          *string                     `json:"internal_notes,omitempty"`
	OrderDate              time.Time                   `json:"order_date"`
	RequiredDate           *time.Time                  `json:"required_date,omitempty"`
	ShippedDate            *time.Time                  `json:"shipped_date,omitempty"`
	DeliveredDate          *time.Time                  `json:"delivered_date,omitempty"`
	CreatedBy              *uuid.UUID                  `json:"created_by,omitempty"`
	UpdatedBy              *uuid.UUID                  `json:"updated_by,omitempty"`
	Lines                  []LineDTO                   `json:"lines"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}

// LineDTO is the API view of an order line.
type LineDTO struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"product_id"`
	VariantID          *uuid.UUID      `json:"variant_id,omitempty"`
	SKU                string          `json:"sku"`
	Name               string          `json:"name"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	LineTotal          decimal.Decimal `json:"line_total"`
	QuantityReserved   int             `json:"quantity_reserved"`
	QuantityFulfilled  int             `json:"quantity_fulfilled"`
	QuantityShipped    int             `json:"quantity_shipped"`
}

// HistoryDTO is one status change.
type HistoryDTO struct {
	ID         uuid.UUID          `json:"id"`
	FromStatus *enums.OrderStatus `json:"from_status,omitempty"`
	ToStatus   enums.OrderStatus  `json:"to_status"`
	Notes      *string            `json:"notes,omitempty"`
	ChangedBy  *uuid.UUID         `json:"changed_by,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// FulfillmentDTO is one fulfillment with its lines.
type FulfillmentDTO struct {
	ID                uuid.UUID               `json:"id"`
	OrderID           uuid.UUID               `json:"order_id"`
	FulfillmentNumber string                  `json:"fulfillment_number"`
	WarehouseID       uuid.UUID               `json:"warehouse_id"`
	Status            enums.FulfillmentStatus `json:"status"`
	Carrier           *string                 `json:"carrier,omitempty"`
	TrackingNumber    *string                 `json:"tracking_number,omitempty"`
	ShippingCost      decimal.Decimal         `json:"shipping_cost"`
	Lines             []FulfillmentLineDTO    `json:"lines"`
	CreatedAt         time.Time               `json:"created_at"`
}

// FulfillmentLineDTO is the quantity one fulfillment covered for a line.
type FulfillmentLineDTO struct {
	OrderLineID uuid.UUID `json:"order_line_id"`
	Quantity    int       `json:"quantity"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps an order and its lines. A nil lines slice leaves Lines empty.
func NewOrderDTO(order *models.Order, lines []models.OrderLine) OrderDTO {
	dto := OrderDTO{
		ID:                     order.ID,
		OrderNumber:            order.OrderNumber,
		OrderType:              order.OrderType,
		Status:                 order.Status,
		PaymentStatus:          order.PaymentStatus,
		WarehouseID:            order.WarehouseID,
		DestinationWarehouseID: order.DestinationWarehouseID,
		CustomerName:           order.CustomerName,
		CustomerEmail:          order.CustomerEmail,
		CustomerPhone:          order.CustomerPhone,
		SupplierID:             order.SupplierID,
		SupplierName:           order.SupplierName,
		ShippingAddress:        order.ShippingAddress,
		Subtotal:               order.Subtotal,
		TaxAmount:              order.TaxAmount,
		DiscountAmount:         order.DiscountAmount,
		ShippingAmount:         order.ShippingAmount,
		TotalAmount:            order.TotalAmount,
		ShippingMethod:         order.ShippingMethod,
		TrackingNumber:         order.TrackingNumber,
		Notes:                  order.Notes,
		InternalNotes:          order.InternalNotes,
		OrderDate:              order.OrderDate,
		RequiredDate:           order.RequiredDate,
		ShippedDate:            order.ShippedDate,
		DeliveredDate:          order.DeliveredDate,
		CreatedBy:              order.CreatedBy,
		UpdatedBy:              order.UpdatedBy,
		Lines:                  make([]LineDTO, 0, len(lines)),
		CreatedAt:              order.CreatedAt,
		UpdatedAt:              order.UpdatedAt,
	}
	progress := make([]LineProgress, 0, len(lines))
	for i := range lines {
		dto.Lines = append(dto.Lines, NewLineDTO(&lines[i]))
		progress = append(progress, LineProgress{Quantity: lines[i].Quantity, Fulfilled: lines[i].QuantityFulfilled})
	}
	dto.FulfillmentState = FulfillmentState(progress)
	return dto
}

func NewLineDTO(line *models.OrderLine) LineDTO {
	return LineDTO{
		ID:                 line.ID,
		ProductID:          line.ProductID,
		VariantID:          line.VariantID,
		SKU:                line.SKU,
		Name:               line.Name,
		Quantity:           line.Quantity,
		UnitPrice:          line.UnitPrice,
		DiscountPercentage: line.DiscountPercentage,
		DiscountAmount:     line.DiscountAmount,
		LineTotal:          line.LineTotal,
		QuantityReserved:   line.QuantityReserved,
		QuantityFulfilled:  line.QuantityFulfilled,
		QuantityShipped:    line.QuantityShipped,
	}
}

func NewHistoryDTO(h *models.OrderStatusHistory) HistoryDTO {
	return HistoryDTO{
		ID:         h.ID,
		FromStatus: h.FromStatus,
		ToStatus:   h.ToStatus,
		Notes:      h.Notes,
		ChangedBy:  h.ChangedBy,
		CreatedAt:  h.CreatedAt,
	}
}

func NewFulfillmentDTO(f *models.OrderFulfillment) FulfillmentDTO {
	dto := FulfillmentDTO{
		ID:                f.ID,
		OrderID:           f.OrderID,
		FulfillmentNumber: f.FulfillmentNumber,
		WarehouseID:       f.WarehouseID,
		Status:            f.Status,
		Carrier:           f.Carrier,
		TrackingNumber:    f.TrackingNumber,
		ShippingCost:      f.ShippingCost,
		Lines:             make([]FulfillmentLineDTO, 0, len(f.Lines)),
		CreatedAt:         f.CreatedAt,
	}
	for _, l := range f.Lines {
		dto.Lines = append(dto.Lines, FulfillmentLineDTO{OrderLineID: l.OrderLineID, Quantity: l.Quantity})
	}
	return dto
}
