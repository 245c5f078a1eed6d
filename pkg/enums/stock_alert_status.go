package enums

import "fmt"

// StockAlertStatus tracks whether an alert still needs attention.
type StockAlertStatus string

const (
	StockAlertStatusActive       StockAlertStatus = "active"
	StockAlertStatusAcknowledged StockAlertStatus = "acknowledged"
	StockAlertStatusResolved     StockAlertStatus = "resolved"
)

var validStockAlertStatuses = []StockAlertStatus{
	StockAlertStatusActive,
	StockAlertStatusAcknowledged,
	StockAlertStatusResolved,
}

// String implements fmt.Stringer.
func (s StockAlertStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockAlertStatus.
func (s StockAlertStatus) IsValid() bool {
	for _, candidate := range validStockAlertStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockAlertStatus converts raw input into a StockAlertStatus.
func ParseStockAlertStatus(value string) (StockAlertStatus, error) {
	for _, candidate := range validStockAlertStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock alert status %q", value)
}
