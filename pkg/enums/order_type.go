package enums

import "fmt"

// OrderType classifies an order by the stock flow it drives.
type OrderType string

const (
	OrderTypeSale     OrderType = "sale"
	OrderTypePurchase OrderType = "purchase"
	OrderTypeReturn   OrderType = "return"
	OrderTypeTransfer OrderType = "transfer"
)

var validOrderTypes = []OrderType{
	OrderTypeSale,
	OrderTypePurchase,
	OrderTypeReturn,
	OrderTypeTransfer,
}

// String implements fmt.Stringer.
func (o OrderType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderType.
func (o OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}

var orderNumberPrefixes = map[OrderType]string{
	OrderTypeSale:     "SO",
	OrderTypePurchase: "PO",
	OrderTypeReturn:   "RO",
	OrderTypeTransfer: "TO",
}

// NumberPrefix returns the order number prefix for the type.
func (o OrderType) NumberPrefix() string {
	return orderNumberPrefixes[o]
}

// Ships reports whether orders of this type travel through shipped/delivered.
func (o OrderType) Ships() bool {
	return o == OrderTypeSale || o == OrderTypeTransfer
}

// Reserves reports whether confirming the order holds stock at the source warehouse.
func (o OrderType) Reserves() bool {
	return o == OrderTypeSale || o == OrderTypeTransfer
}
