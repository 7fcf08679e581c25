// Package pricing computes order totals under stacked percentage discounts.
// It is pure: no I/O, no clock, deterministic for a given input.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is one priced order line. The unit price is the current catalog price
// re-read inside the checkout transaction, never a client-supplied value.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote is the result of pricing an order. AmountToPay is always <= Total.
type Quote struct {
	Total       decimal.Decimal
	AmountToPay decimal.Decimal
}

// Compute sums the gross total and applies the offer percentage, then the
// coupon percentage, each off the running amount so the two compound rather
// than stack additively. A zero percentage means no discount of that kind.
//
// Full decimal precision is kept between the two steps; both results are
// rounded to two decimals exactly once, at the end.
func Compute(lines []Line, offerPercent, couponPercent decimal.Decimal) Quote {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	amount := total
	if offerPercent.IsPositive() {
		amount = amount.Sub(amount.Mul(offerPercent).Div(hundred))
	}
	if couponPercent.IsPositive() {
		amount = amount.Sub(amount.Mul(couponPercent).Div(hundred))
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Quote{
		Total:       total.Round(2),
		AmountToPay: amount.Round(2),
	}
}
