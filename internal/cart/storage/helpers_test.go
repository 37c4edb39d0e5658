package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// buildState returns a cart with n items; each item carries metaBytes of metadata.
func buildState(n, metaBytes int) cart.State {
	items := make([]cart.Item, 0, n)
	for i := 0; i < n; i++ {
		pid := cart.StringProductID(fmt.Sprintf("sku-%03d", i))
		item := cart.Item{
			ID:        cart.IdentityOf(pid, nil),
			ProductID: pid,
			Name:      fmt.Sprintf("Product %d", i),
			Price:     10,
			Quantity:  1,
			AddedAt:   fixedNow,
			UpdatedAt: fixedNow,
		}
		if metaBytes > 0 {
			item.Metadata = cart.Metadata{"description": strings.Repeat("x", metaBytes)}
		}
		items = append(items, item)
	}
	rates := cart.Rates{Currency: "USD", Shipping: 5}
	return cart.State{Items: items, Totals: cart.ComputeTotals(items, rates), UpdatedAt: fixedNow}
}

func newSQLiteClient(t *testing.T) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
