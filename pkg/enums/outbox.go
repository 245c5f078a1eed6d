package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateStockItem       OutboxAggregateType = "stock_item"
	AggregateStockAdjustment OutboxAggregateType = "stock_adjustment"
	AggregateStockAlert      OutboxAggregateType = "stock_alert"
)

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, owner := range eventAggregates {
		if owner == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderFulfilled      OutboxEventType = "order_fulfilled"
	EventStockMoved          OutboxEventType = "stock_moved"
	EventStockReserved       OutboxEventType = "stock_reserved"
	EventReservationReleased OutboxEventType = "reservation_released"
	EventAdjustmentApproved  OutboxEventType = "adjustment_approved"
	EventAdjustmentRejected  OutboxEventType = "adjustment_rejected"
	EventLowStockRaised      OutboxEventType = "low_stock_raised"
)

// eventAggregates names the only aggregate each event type may be keyed on.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:        AggregateOrder,
	EventOrderStatusChanged:  AggregateOrder,
	EventOrderFulfilled:      AggregateOrder,
	EventStockMoved:          AggregateStockItem,
	EventStockReserved:       AggregateStockItem,
	EventReservationReleased: AggregateStockItem,
	EventAdjustmentApproved:  AggregateStockAdjustment,
	EventAdjustmentRejected:  AggregateStockAdjustment,
	EventLowStockRaised:      AggregateStockAlert,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type that owns e.
func (e OutboxEventType) Aggregate() (OutboxAggregateType, bool) {
	a, ok := eventAggregates[e]
	return a, ok
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
