package enums

import "fmt"

// StockAlertType distinguishes low stock from depleted stock.
type StockAlertType string

const (
	StockAlertLowStock   StockAlertType = "low_stock"
	StockAlertOutOfStock StockAlertType = "out_of_stock"
)

var validStockAlertTypes = []StockAlertType{
	StockAlertLowStock,
	StockAlertOutOfStock,
}

// String implements fmt.Stringer.
func (a StockAlertType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known StockAlertType.
func (a StockAlertType) IsValid() bool {
	for _, candidate := range validStockAlertTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseStockAlertType converts raw input into a StockAlertType.
func ParseStockAlertType(value string) (StockAlertType, error) {
	for _, candidate := range validStockAlertTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock alert type %q", value)
}
