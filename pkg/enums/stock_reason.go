package enums

import "fmt"

// StockReason records why a ledger row was written.
type StockReason string

const (
	StockReasonPurchase      StockReason = "purchase"
	StockReasonSale          StockReason = "sale"
	StockReasonReturn        StockReason = "return"
	StockReasonAdjustment    StockReason = "adjustment"
	StockReasonTransferIn    StockReason = "transfer_in"
	StockReasonTransferOut   StockReason = "transfer_out"
	StockReasonDamage        StockReason = "damage"
	StockReasonExpired       StockReason = "expired"
	StockReasonTheft         StockReason = "theft"
	StockReasonAudit         StockReason = "audit"
	StockReasonReservation   StockReason = "reservation"
	StockReasonUnreservation StockReason = "unreservation"
)

var validStockReasons = []StockReason{
	StockReasonPurchase,
	StockReasonSale,
	StockReasonReturn,
	StockReasonAdjustment,
	StockReasonTransferIn,
	StockReasonTransferOut,
	StockReasonDamage,
	StockReasonExpired,
	StockReasonTheft,
	StockReasonAudit,
	StockReasonReservation,
	StockReasonUnreservation,
}

// String implements fmt.Stringer.
func (r StockReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StockReason.
func (r StockReason) IsValid() bool {
	for _, candidate := range validStockReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockReason converts raw input into a StockReason.
func ParseStockReason(value string) (StockReason, error) {
	for _, candidate := range validStockReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock reason %q", value)
}

// IsOutbound reports whether the reason removes stock and must respect availability.
func (r StockReason) IsOutbound() bool {
	switch r {
	case StockReasonSale, StockReasonTransferOut, StockReasonDamage, StockReasonExpired, StockReasonTheft:
		return true
	}
	return false
}

// IsInbound reports whether the reason adds stock.
func (r StockReason) IsInbound() bool {
	switch r {
	case StockReasonPurchase, StockReasonReturn, StockReasonTransferIn:
		return true
	}
	return false
}

// IsForced reports whether the reason may set an arbitrary resulting quantity.
func (r StockReason) IsForced() bool {
	return r == StockReasonAdjustment || r == StockReasonAudit
}

// IsMovement reports whether the reason may be passed to a quantity movement.
func (r StockReason) IsMovement() bool {
	return r.IsInbound() || r.IsOutbound() || r.IsForced()
}

// TransactionType maps the reason onto the ledger row classification.
func (r StockReason) TransactionType() StockTransactionType {
	switch {
	case r == StockReasonReservation:
		return StockTransactionReserved
	case r == StockReasonUnreservation:
		return StockTransactionUnreserved
	case r == StockReasonTransferIn || r == StockReasonTransferOut:
		return StockTransactionTransfer
	case r.IsForced():
		return StockTransactionAdjustment
	case r.IsInbound():
		return StockTransactionIn
	default:
		return StockTransactionOut
	}
}
