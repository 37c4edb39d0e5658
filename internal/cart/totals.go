package cart

import "github.com/shopspring/decimal"

const currencyPlaces = 2

// ComputeTotals reduces items and rates into the cart aggregate. It has no side effects and
// can be used for display-only previews.
func ComputeTotals(items []Item, rates Rates) Totals {
	subtotal := decimal.Zero
	itemCount := 0
	for _, item := range items {
		line := decimal.NewFromFloat(item.EffectivePrice()).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		itemCount += item.Quantity
	}

	tax := subtotal.Mul(decimal.NewFromFloat(rates.TaxRate)).Round(currencyPlaces)
	shipping := decimal.NewFromFloat(rates.Shipping)
	discount := decimal.NewFromFloat(rates.Discount)
	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	return Totals{
		Subtotal:     subtotal.InexactFloat64(),
		Discount:     discount.InexactFloat64(),
		Tax:          tax.InexactFloat64(),
		Shipping:     shipping.InexactFloat64(),
		Total:        total.InexactFloat64(),
		ItemCount:    itemCount,
		ProductCount: len(items),
		Currency:     rates.Currency,
	}
}

// Consistent reports whether t is exactly what ComputeTotals yields for items and rates.
func Consistent(t Totals, items []Item, rates Rates) bool {
	return t == ComputeTotals(items, rates)
}
