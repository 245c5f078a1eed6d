package orders

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// LineAmounts is the priced result of one order line.
type LineAmounts struct {
	DiscountAmount decimal.Decimal
	LineTotal      decimal.Decimal
}

// PriceLine computes the discount and total of a line. An explicit discount amount
// wins over the percentage.
func PriceLine(quantity int, unitPrice, discountPct decimal.Decimal, discountAmount *decimal.Decimal) (LineAmounts, error) {
	if quantity <= 0 {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "discount percentage must be between 0 and 100")
	}

	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	discount := decimal.Zero
	switch {
	case discountAmount != nil:
		discount = *discountAmount
	case discountPct.IsPositive():
		discount = gross.Mul(discountPct).Div(hundred)
	}
	discount = discount.Round(2)
	if discount.IsNegative() || discount.GreaterThan(gross) {
		return LineAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "line discount must be between zero and the line amount")
	}
	return LineAmounts{DiscountAmount: discount, LineTotal: gross.Sub(discount).Round(2)}, nil
}

// Charges are the order-level amounts added to the line subtotal.
type Charges struct {
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
}

func (c Charges) validate() error {
	if c.Tax.IsNegative() || c.Shipping.IsNegative() || c.Discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax, shipping and discount cannot be negative")
	}
	return nil
}

// Totals are the money columns of an order.
type Totals struct {
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums line totals and applies the order charges.
func ComputeTotals(lineTotals []decimal.Decimal, charges Charges) Totals {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(lt)
	}
	subtotal = subtotal.Round(2)
	total := subtotal.Add(charges.Tax).Add(charges.Shipping).Sub(charges.Discount).Round(2)
	return Totals{Subtotal: subtotal, Total: total}
}
