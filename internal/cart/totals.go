package cart

import (
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/shopspring/decimal"
)

var expressFee = decimal.NewFromInt(30)

// ShippingFee is the fee for a shipping method: express costs 30, anything
// else ships free.
func ShippingFee(method string) decimal.Decimal {
	if method == models.ShippingExpress {
		return expressFee
	}
	return decimal.Zero
}

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
	Items       int             `json:"total_items"`
}

// Compute sums the snapshot prices of lines and adds the shipping fee.
func Compute(lines []models.CartLine, shippingMethod string) Totals {
	t := Totals{Subtotal: decimal.Zero, ShippingFee: ShippingFee(shippingMethod)}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.LineTotal())
		t.Items += l.Quantity
	}
	t.Total = t.Subtotal.Add(t.ShippingFee)
	return t
}
