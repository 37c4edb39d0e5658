package cartdto

import "github.com/angelmondragon/packfinderz-cart/internal/cart"

// VariantRequest is one selected product option.
type VariantRequest struct {
	Key         string  `json:"key" validate:"required"`
	Value       string  `json:"value" validate:"required"`
	AttributeID *string `json:"attributeId,omitempty"`
}

// AddItemRequest is the body of POST /cart/items. The product id may be a string or a
// number.
type AddItemRequest struct {
	ProductID       cart.ProductID   `json:"productId"`
	Name            string           `json:"name" validate:"required,max=500"`
	Price           float64          `json:"price" validate:"gte=0"`
	DiscountedPrice *float64         `json:"discountedPrice,omitempty" validate:"omitempty,gte=0"`
	Quantity        *int             `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Variants        []VariantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	MaxQuantity     *int             `json:"maxQuantity,omitempty" validate:"omitempty,gte=0"`
	MergeIfExists   *bool            `json:"mergeIfExists,omitempty"`
}

// UpdateItemRequest is the body of PATCH /cart/items/{itemID}. Omitted fields are left
// alone; an empty variants array clears the selection.
type UpdateItemRequest struct {
	Quantity        *int             `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Price           *float64         `json:"price,omitempty" validate:"omitempty,gte=0"`
	DiscountedPrice *float64         `json:"discountedPrice,omitempty" validate:"omitempty,gte=0"`
	ClearDiscount   bool             `json:"clearDiscount,omitempty"`
	Variants        []VariantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// PreviewRequest overrides the configured rates for a one-off totals computation.
type PreviewRequest struct {
	Currency *string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	TaxRate  *float64 `json:"taxRate,omitempty" validate:"omitempty,gte=0"`
	Shipping *float64 `json:"shipping,omitempty" validate:"omitempty,gte=0"`
	Discount *float64 `json:"discount,omitempty" validate:"omitempty,gte=0"`
}
