package orders

import "github.com/angelmondragon/stockledger-backend/pkg/enums"

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusDraft:      {enums.OrderStatusPending, enums.OrderStatusCancelled},
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCompleted, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {enums.OrderStatusCompleted},
}

// CanTransition reports whether an order of the given type may move from one
// status to another. Shipped types pass through shipped and delivered; the others
// complete straight from processing.
func CanTransition(orderType enums.OrderType, from, to enums.OrderStatus) bool {
	if from == enums.OrderStatusProcessing {
		switch to {
		case enums.OrderStatusShipped:
			return orderType.Ships()
		case enums.OrderStatusCompleted:
			return !orderType.Ships()
		}
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// completionStatus is where a fully fulfilled order lands.
func completionStatus(orderType enums.OrderType) enums.OrderStatus {
	if orderType.Ships() {
		return enums.OrderStatusShipped
	}
	return enums.OrderStatusCompleted
}

// FulfillmentState derives the order-level fulfillment state from its lines.
func FulfillmentState(lines []LineProgress) enums.OrderFulfillmentState {
	var ordered, fulfilled int
	for _, l := range lines {
		ordered += l.Quantity
		fulfilled += l.Fulfilled
	}
	switch {
	case fulfilled == 0:
		return enums.OrderUnfulfilled
	case fulfilled >= ordered:
		return enums.OrderFulfilled
	default:
		return enums.OrderPartiallyFulfilled
	}
}

// LineProgress is the fulfillment progress of one line.
type LineProgress struct {
	Quantity  int
	Fulfilled int
}
