package enums

import "fmt"

// StockTransactionType groups ledger rows by the balance they move.
type StockTransactionType string

const (
	StockTransactionIn         StockTransactionType = "in"
	StockTransactionOut        StockTransactionType = "out"
	StockTransactionAdjustment StockTransactionType = "adjustment"
	StockTransactionTransfer   StockTransactionType = "transfer"
	StockTransactionReserved   StockTransactionType = "reserved"
	StockTransactionUnreserved StockTransactionType = "unreserved"
)

var validStockTransactionTypes = []StockTransactionType{
	StockTransactionIn,
	StockTransactionOut,
	StockTransactionAdjustment,
	StockTransactionTransfer,
	StockTransactionReserved,
	StockTransactionUnreserved,
}

// String implements fmt.Stringer.
func (t StockTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known StockTransactionType.
func (t StockTransactionType) IsValid() bool {
	for _, candidate := range validStockTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockTransactionType converts raw input into a StockTransactionType.
func ParseStockTransactionType(value string) (StockTransactionType, error) {
	for _, candidate := range validStockTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction type %q", value)
}
