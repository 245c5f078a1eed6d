package enums

import "fmt"

// OrderFulfillmentState is derived from line fulfillment counters.
type OrderFulfillmentState string

const (
	OrderUnfulfilled        OrderFulfillmentState = "unfulfilled"
	OrderPartiallyFulfilled OrderFulfillmentState = "partial"
	OrderFulfilled          OrderFulfillmentState = "complete"
)

var validOrderFulfillmentStates = []OrderFulfillmentState{
	OrderUnfulfilled,
	OrderPartiallyFulfilled,
	OrderFulfilled,
}

// String implements fmt.Stringer.
func (s OrderFulfillmentState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderFulfillmentState.
func (s OrderFulfillmentState) IsValid() bool {
	for _, candidate := range validOrderFulfillmentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderFulfillmentState converts raw input into an OrderFulfillmentState.
func ParseOrderFulfillmentState(value string) (OrderFulfillmentState, error) {
	for _, candidate := range validOrderFulfillmentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order fulfillment state %q", value)
}
