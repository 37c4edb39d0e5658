package cart

import (
	"strings"

	cartdto "github.com/angelmondragon/packfinderz-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/packfinderz-cart/api/validators"
	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

func toAddItemOptions(payload cartdto.AddItemRequest) cart.AddItemOptions {
	return cart.AddItemOptions{
		ProductID:       payload.ProductID,
		Name:            validators.SanitizeString(payload.Name, 0),
		Price:           payload.Price,
		DiscountedPrice: payload.DiscountedPrice,
		Quantity:        payload.Quantity,
		Variants:        toVariants(payload.Variants),
		Metadata:        cart.Metadata(payload.Metadata),
		MaxQuantity:     payload.MaxQuantity,
		MergeIfExists:   payload.MergeIfExists,
	}
}

func toUpdateItemOptions(payload cartdto.UpdateItemRequest) cart.UpdateItemOptions {
	return cart.UpdateItemOptions{
		Quantity:        payload.Quantity,
		Price:           payload.Price,
		DiscountedPrice: payload.DiscountedPrice,
		ClearDiscount:   payload.ClearDiscount,
		Variants:        toVariants(payload.Variants),
		Metadata:        cart.Metadata(payload.Metadata),
	}
}

// toVariants keeps nil distinct from empty; an empty update clears the selection.
func toVariants(in []cartdto.VariantRequest) []cart.Variant {
	if in == nil {
		return nil
	}
	out := make([]cart.Variant, 0, len(in))
	for _, v := range in {
		out = append(out, cart.Variant{Key: v.Key, Value: v.Value, AttributeID: v.AttributeID})
	}
	return out
}

func applyPreview(base cart.Rates, payload cartdto.PreviewRequest) cart.Rates {
	if payload.Currency != nil {
		base.Currency = strings.ToUpper(validators.SanitizeString(*payload.Currency, 3))
	}
	if payload.TaxRate != nil {
		base.TaxRate = *payload.TaxRate
	}
	if payload.Shipping != nil {
		base.Shipping = *payload.Shipping
	}
	if payload.Discount != nil {
		base.Discount = *payload.Discount
	}
	return base
}
