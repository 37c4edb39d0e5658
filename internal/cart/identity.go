package cart

import (
	"sort"
	"strings"
)

// IdentityOf derives the merge key of a cart line: the product id alone, or the product id
// followed by the variants sorted by key as "k:v" pairs joined with "|".
func IdentityOf(productID ProductID, variants []Variant) string {
	if len(variants) == 0 {
		return productID.String()
	}
	sorted := make([]Variant, len(variants))
	copy(sorted, variants)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})

	pairs := make([]string, len(sorted))
	for i, v := range sorted {
		pairs[i] = v.Key + ":" + v.Value
	}
	return productID.String() + ":" + strings.Join(pairs, "|")
}
