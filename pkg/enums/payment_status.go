package enums

import "fmt"

// PaymentStatus tracks collection of an order's total. Orders start pending;
// collection itself happens outside this service.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

var paymentStatusSet = map[PaymentStatus]struct{}{
	PaymentStatusPending:  {},
	PaymentStatusPartial:  {},
	PaymentStatusPaid:     {},
	PaymentStatusRefunded: {},
	PaymentStatusFailed:   {},
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	_, ok := paymentStatusSet[p]
	return ok
}

// ParsePaymentStatus accepts only the lowercase wire values.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	if p := PaymentStatus(value); p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
