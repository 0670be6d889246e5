package orders

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain/order"
)

var (
	taxRate           = decimal.RequireFromString("0.05")
	freeShippingAbove = decimal.NewFromInt(5000)
	shippingFee       = decimal.NewFromInt(120)
	hundred           = decimal.NewFromInt(100)
)

type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices the lines. Tax is 5% of the subtotal in whole rupees
// and shipping is free once subtotal plus tax exceeds 5000. couponPct is the
// discount percentage, 0 for none.
func ComputeTotals(items []order.Item, couponPct int) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	t.Discount = t.Subtotal.Mul(decimal.NewFromInt(int64(couponPct))).Div(hundred).Round(2)
	t.Tax = t.Subtotal.Mul(taxRate).Round(0)
	t.Shipping = shippingFee
	if t.Subtotal.Add(t.Tax).GreaterThan(freeShippingAbove) {
		t.Shipping = decimal.Zero
	}
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax).Add(t.Shipping)
	return t
}
