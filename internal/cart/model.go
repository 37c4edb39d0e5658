package cart

import (
	"encoding/json"
	"time"
)

// Variant is one selected product option, e.g. size=L.
type Variant struct {
	Key         string  `json:"key"`
	Value       string  `json:"value"`
	AttributeID *string `json:"attributeId,omitempty"`
}

// Metadata is the open bag attached to an item (image, sku, stock, maxQuantity, ...).
type Metadata map[string]any

// MetaMaxQuantity is the metadata key holding the per-item quantity bound.
const MetaMaxQuantity = "maxQuantity"

// MaxQuantity returns the maxQuantity bound stored in the bag, if any.
func (m Metadata) MaxQuantity() (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[MetaMaxQuantity].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Item is one cart line, keyed by its identity.
type Item struct {
	ID              string    `json:"id"`
	ProductID       ProductID `json:"productId"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	DiscountedPrice *float64  `json:"discountedPrice,omitempty"`
	Quantity        int       `json:"quantity"`
	Variants        []Variant `json:"variants,omitempty"`
	Metadata        Metadata  `json:"metadata,omitempty"`
	AddedAt         time.Time `json:"addedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EffectivePrice is the unit price the item is charged at.
func (i Item) EffectivePrice() float64 {
	if i.DiscountedPrice != nil {
		return *i.DiscountedPrice
	}
	return i.Price
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (i Item) Clone() Item {
	out := i
	if i.DiscountedPrice != nil {
		d := *i.DiscountedPrice
		out.DiscountedPrice = &d
	}
	if i.Variants != nil {
		out.Variants = make([]Variant, len(i.Variants))
		for idx, v := range i.Variants {
			out.Variants[idx] = v
			if v.AttributeID != nil {
				a := *v.AttributeID
				out.Variants[idx].AttributeID = &a
			}
		}
	}
	out.Metadata = i.Metadata.clone()
	return out
}

// Totals is the derived aggregate of a cart. It is always recomputed from the items.
type Totals struct {
	Subtotal     float64 `json:"subtotal"`
	Discount     float64 `json:"discount"`
	Tax          float64 `json:"tax"`
	Shipping     float64 `json:"shipping"`
	Total        float64 `json:"total"`
	ItemCount    int     `json:"itemCount"`
	ProductCount int     `json:"productCount"`
	Currency     string  `json:"currency"`
}

// StateMetadata is the optional cart-level metadata; unknown keys survive in Extra.
type StateMetadata struct {
	CartID   string         `json:"cartId,omitempty"`
	UserID   string         `json:"userId,omitempty"`
	ShopID   string         `json:"shopId,omitempty"`
	Currency string         `json:"currency,omitempty"`
	Locale   string         `json:"locale,omitempty"`
	Extra    map[string]any `json:"-"`
}

var stateMetadataKeys = map[string]struct{}{
	"cartId": {}, "userId": {}, "shopId": {}, "currency": {}, "locale": {},
}

// MarshalJSON flattens Extra next to the known keys.
func (m StateMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		if _, known := stateMetadataKeys[k]; known {
			continue
		}
		out[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("cartId", m.CartID)
	set("userId", m.UserID)
	set("shopId", m.ShopID)
	set("currency", m.Currency)
	set("locale", m.Locale)
	return json.Marshal(out)
}

// UnmarshalJSON collects unknown keys into Extra.
func (m *StateMetadata) UnmarshalJSON(data []byte) error {
	type known struct {
		CartID   string `json:"cartId"`
		UserID   string `json:"userId"`
		ShopID   string `json:"shopId"`
		Currency string `json:"currency"`
		Locale   string `json:"locale"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = StateMetadata{CartID: k.CartID, UserID: k.UserID, ShopID: k.ShopID, Currency: k.Currency, Locale: k.Locale}
	for key, v := range raw {
		if _, ok := stateMetadataKeys[key]; ok {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[key] = v
	}
	return nil
}

// Clone deep-copies the metadata; nil stays nil.
func (m *StateMetadata) Clone() *StateMetadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// State is a complete, internally consistent cart snapshot.
type State struct {
	Items     []Item         `json:"items"`
	Totals    Totals         `json:"totals"`
	Metadata  *StateMetadata `json:"metadata,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{
		Totals:    s.Totals,
		Metadata:  s.Metadata.Clone(),
		UpdatedAt: s.UpdatedAt,
		Items:     make([]Item, len(s.Items)),
	}
	for i, item := range s.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Find returns the index of the item with id, or -1.
func (s State) Find(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Empty returns the empty cart for rates.
func Empty(rates Rates, now time.Time) State {
	return State{
		Items:     []Item{},
		Totals:    ComputeTotals(nil, rates),
		UpdatedAt: now,
	}
}

// Rates is the rate configuration a store computes totals with. It is never persisted.
type Rates struct {
	Currency string  `json:"currency"`
	TaxRate  float64 `json:"taxRate"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
}

// RatesFromTotals recovers the rate configuration that produced t, so a reduced or reloaded
// snapshot can be recomputed without the live store configuration.
func RatesFromTotals(t Totals) Rates {
	r := Rates{Currency: t.Currency, Shipping: t.Shipping, Discount: t.Discount}
	if t.Subtotal > 0 {
		r.TaxRate = t.Tax / t.Subtotal
	}
	return r
}
