package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotalsEmpty(t *testing.T) {
	t.Parallel()

	got := ComputeTotals(nil, Rates{Currency: "USD", Shipping: 5, TaxRate: 0.1})
	assert.Equal(t, Totals{Shipping: 5, Total: 5, Currency: "USD"}, got)
}

func TestComputeTotalsUsesEffectivePrice(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ID: "a", Price: 1000, DiscountedPrice: ptr(800.0), Quantity: 3},
		{ID: "b", Price: 19.99, Quantity: 2},
	}
	got := ComputeTotals(items, Rates{Currency: "EUR", TaxRate: 0.08, Shipping: 4.5, Discount: 10})

	assert.Equal(t, 2439.98, got.Subtotal)
	assert.Equal(t, 195.2, got.Tax)
	assert.Equal(t, 4.5, got.Shipping)
	assert.Equal(t, 10.0, got.Discount)
	assert.Equal(t, 2629.68, got.Total)
	assert.Equal(t, 5, got.ItemCount)
	assert.Equal(t, 2, got.ProductCount)
	assert.Equal(t, "EUR", got.Currency)
}

func TestComputeTotalsAvoidsFloatDrift(t *testing.T) {
	t.Parallel()

	items := make([]Item, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, Item{ID: string(rune('a' + i)), Price: 0.1, Quantity: 1})
	}
	assert.Equal(t, 1.0, ComputeTotals(items, Rates{}).Subtotal)
}

func TestComputeTotalsTaxDoesNotCompoundShipping(t *testing.T) {
	t.Parallel()

	got := ComputeTotals([]Item{{ID: "a", Price: 100, Quantity: 1}}, Rates{TaxRate: 0.2, Shipping: 50})
	assert.Equal(t, 20.0, got.Tax)
	assert.Equal(t, 170.0, got.Total)
}

func TestConsistent(t *testing.T) {
	t.Parallel()

	items := []Item{{ID: "a", Price: 3, Quantity: 2}}
	rates := Rates{Currency: "USD"}
	totals := ComputeTotals(items, rates)
	assert.True(t, Consistent(totals, items, rates))

	totals.Subtotal = 7
	assert.False(t, Consistent(totals, items, rates))
}

func TestRatesFromTotals(t *testing.T) {
	t.Parallel()

	totals := ComputeTotals([]Item{{ID: "a", Price: 50, Quantity: 2}}, Rates{Currency: "USD", TaxRate: 0.1, Shipping: 3, Discount: 1})
	rates := RatesFromTotals(totals)
	assert.Equal(t, "USD", rates.Currency)
	assert.InDelta(t, 0.1, rates.TaxRate, 1e-9)
	assert.Equal(t, 3.0, rates.Shipping)
	assert.Equal(t, 1.0, rates.Discount)
}
