package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// OrderCreatedEvent signals a new draft order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OrderType   enums.OrderType `json:"order_type"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	TotalAmount string          `json:"total_amount"`
}

// OrderStatusChangedEvent is emitted on every order status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OrderType   enums.OrderType   `json:"order_type"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	ToStatus    enums.OrderStatus `json:"to_status"`
}

// OrderFulfilledEvent summarizes one fulfillment against an order.
type OrderFulfilledEvent struct {
	OrderID           uuid.UUID                   `json:"order_id"`
	FulfillmentID     uuid.UUID                   `json:"fulfillment_id"`
	FulfillmentNumber string                      `json:"fulfillment_number"`
	WarehouseID       uuid.UUID                   `json:"warehouse_id"`
	State             enums.OrderFulfillmentState `json:"state"`
	Lines             []FulfilledLine             `json:"lines"`
}

// FulfilledLine is one line of a fulfillment.
type FulfilledLine struct {
	OrderLineID uuid.UUID `json:"order_line_id"`
	Quantity    int       `json:"quantity"`
}

// StockMovedEvent mirrors one quantity-changing ledger row.
type StockMovedEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	StockItemID   uuid.UUID         `json:"stock_item_id"`
	ProductID     uuid.UUID         `json:"product_id"`
	VariantID     *uuid.UUID        `json:"variant_id,omitempty"`
	WarehouseID   uuid.UUID         `json:"warehouse_id"`
	Reason        enums.StockReason `json:"reason"`
	QuantityDelta int               `json:"quantity_delta"`
	QuantityAfter int               `json:"quantity_after"`
	ReservedAfter int               `json:"reserved_after"`
}

// ReservationEvent covers both reservation and release of stock.
type ReservationEvent struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	StockItemID   uuid.UUID  `json:"stock_item_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	WarehouseID   uuid.UUID  `json:"warehouse_id"`
	Quantity      int        `json:"quantity"`
	ReservedAfter int        `json:"reserved_after"`
	ReferenceType *string    `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID `json:"reference_id,omitempty"`
}

// AdjustmentDecisionEvent is emitted when an adjustment is approved or rejected.
type AdjustmentDecisionEvent struct {
	AdjustmentID   uuid.UUID              `json:"adjustment_id"`
	Status         enums.AdjustmentStatus `json:"status"`
	ProductID      uuid.UUID              `json:"product_id"`
	VariantID      *uuid.UUID             `json:"variant_id,omitempty"`
	WarehouseID    uuid.UUID              `json:"warehouse_id"`
	QuantityBefore int                    `json:"quantity_before"`
	QuantityAfter  int                    `json:"quantity_after"`
	TransactionID  *uuid.UUID             `json:"transaction_id,omitempty"`
}

// LowStockRaisedEvent is emitted when a new stock alert opens.
type LowStockRaisedEvent struct {
	AlertID         uuid.UUID            `json:"alert_id"`
	AlertType       enums.StockAlertType `json:"alert_type"`
	StockItemID     uuid.UUID            `json:"stock_item_id"`
	ProductID       uuid.UUID            `json:"product_id"`
	VariantID       *uuid.UUID           `json:"variant_id,omitempty"`
	WarehouseID     uuid.UUID            `json:"warehouse_id"`
	Threshold       int                  `json:"threshold"`
	CurrentQuantity int                  `json:"current_quantity"`
}
