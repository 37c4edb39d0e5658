package cart

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AddItemOptions describes an add-to-cart request.
type AddItemOptions struct {
	ProductID       ProductID `json:"productId"`
	Name            string    `json:"name" validate:"required,max=500,noscript"`
	Price           float64   `json:"price" validate:"finite,gte=0"`
	DiscountedPrice *float64  `json:"discountedPrice,omitempty" validate:"omitempty,finite,gte=0"`
	Quantity        *int      `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Variants        []Variant `json:"variants,omitempty" validate:"omitempty,dive"`
	Metadata        Metadata  `json:"metadata,omitempty"`
	// MaxQuantity is stored into the item metadata as maxQuantity.
	MaxQuantity *int `json:"maxQuantity,omitempty" validate:"omitempty,gte=0"`
	// MergeIfExists defaults to true.
	MergeIfExists *bool `json:"mergeIfExists,omitempty"`
}

// UpdateItemOptions carries the fields to merge into an existing item. Nil fields are left
// alone; a non-nil empty Variants clears the selection.
type UpdateItemOptions struct {
	Quantity        *int      `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Price           *float64  `json:"price,omitempty" validate:"omitempty,finite,gte=0"`
	DiscountedPrice *float64  `json:"discountedPrice,omitempty" validate:"omitempty,finite,gte=0"`
	ClearDiscount   bool      `json:"clearDiscount,omitempty"`
	Variants        []Variant `json:"variants,omitempty" validate:"omitempty,dive"`
	Metadata        Metadata  `json:"metadata,omitempty"`
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			return isFinite(fl.Field().Float())
		}
		return true
	})
	_ = v.RegisterValidation("noscript", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return true
		}
		return !ContainsScript(fl.Field().String())
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		variant := sl.Current().Interface().(Variant)
		for _, f := range []struct{ name, value string }{{"key", variant.Key}, {"value", variant.Value}} {
			switch {
			case f.value == "":
				sl.ReportError(f.value, f.name, f.name, "required", "")
			case len([]rune(f.value)) > MaxVariantLength:
				sl.ReportError(f.value, f.name, f.name, "max", fmt.Sprint(MaxVariantLength))
			case ContainsScript(f.value):
				sl.ReportError(f.value, f.name, f.name, "noscript", "")
			}
		}
	}, Variant{})
	return v
}

// checkStruct runs the tag-driven first gate and turns the first failure into a
// ValidationError.
func checkStruct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "options", Value: v, Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	return &ValidationError{Field: field, Value: fe.Value(), Message: tagMessage(fe)}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return "must be non-negative"
	case "finite":
		return "must be a finite number"
	case "noscript":
		return "must not contain script markup"
	}
	return "is invalid"
}

// Validate checks the options without touching any cart.
func (o AddItemOptions) Validate() error {
	if err := checkStruct(o); err != nil {
		return err
	}
	if _, err := ValidateProductID(o.ProductID); err != nil {
		return err
	}
	if _, err := ValidateName(o.Name); err != nil {
		return err
	}
	if err := ValidatePrices(o.Price, o.DiscountedPrice); err != nil {
		return err
	}
	if _, err := ValidateVariants(o.Variants); err != nil {
		return err
	}
	if o.Quantity != nil {
		if _, err := ValidateQuantity(*o.Quantity, nil); err != nil {
			return err
		}
	}
	if o.MaxQuantity != nil {
		if *o.MaxQuantity < 0 {
			return newValidationError("maxQuantity", *o.MaxQuantity, "must be non-negative")
		}
	}
	return nil
}

// Merge reports whether an add should merge into an existing line.
func (o AddItemOptions) Merge() bool {
	return o.MergeIfExists == nil || *o.MergeIfExists
}

// RequestedQuantity is the quantity to add, defaulting to 1.
func (o AddItemOptions) RequestedQuantity() int {
	if o.Quantity == nil {
		return 1
	}
	return *o.Quantity
}

// Identity is the merge key the options resolve to.
func (o AddItemOptions) Identity() string {
	return IdentityOf(o.ProductID, o.Variants)
}

// NewItem builds the cart line described by o. It does not validate.
func (o AddItemOptions) NewItem(now time.Time) Item {
	item := Item{
		ID:        o.Identity(),
		ProductID: o.ProductID,
		Name:      o.Name,
		Price:     o.Price,
		Quantity:  o.RequestedQuantity(),
		Metadata:  o.Metadata.clone(),
		AddedAt:   now,
		UpdatedAt: now,
	}
	if o.DiscountedPrice != nil {
		d := *o.DiscountedPrice
		item.DiscountedPrice = &d
	}
	if len(o.Variants) > 0 {
		item.Variants = append([]Variant(nil), o.Variants...)
	}
	if o.MaxQuantity != nil {
		if item.Metadata == nil {
			item.Metadata = Metadata{}
		}
		item.Metadata[MetaMaxQuantity] = *o.MaxQuantity
	}
	return item
}

// MergeInto returns existing with o's quantity added on top.
func (o AddItemOptions) MergeInto(existing Item, now time.Time) Item {
	merged := existing.Clone()
	merged.Quantity = existing.Quantity + o.RequestedQuantity()
	merged.UpdatedAt = now
	if o.MaxQuantity != nil {
		if merged.Metadata == nil {
			merged.Metadata = Metadata{}
		}
		merged.Metadata[MetaMaxQuantity] = *o.MaxQuantity
	}
	return merged
}

// Validate checks the supplied fields without touching any cart.
func (o UpdateItemOptions) Validate() error {
	if err := checkStruct(o); err != nil {
		return err
	}
	if o.Quantity != nil {
		if _, err := ValidateQuantity(*o.Quantity, nil); err != nil {
			return err
		}
	}
	if o.Price != nil {
		if _, err := ValidatePrice("price", *o.Price); err != nil {
			return err
		}
	}
	if o.DiscountedPrice != nil {
		if _, err := ValidatePrice("discountedPrice", *o.DiscountedPrice); err != nil {
			return err
		}
		if o.ClearDiscount {
			return newValidationError("clearDiscount", true, "cannot be combined with discountedPrice")
		}
	}
	if o.Variants != nil {
		if _, err := ValidateVariants(o.Variants); err != nil {
			return err
		}
	}
	return nil
}

// RemovesItem reports whether the update is an explicit zero-quantity removal.
func (o UpdateItemOptions) RemovesItem() bool {
	return o.Quantity != nil && *o.Quantity == 0
}

// Apply merges o into item. Metadata is shallow-merged; a variant change re-derives the id.
func (o UpdateItemOptions) Apply(item Item, now time.Time) Item {
	out := item.Clone()
	if o.Quantity != nil {
		out.Quantity = *o.Quantity
	}
	if o.Price != nil {
		out.Price = *o.Price
	}
	if o.ClearDiscount {
		out.DiscountedPrice = nil
	}
	if o.DiscountedPrice != nil {
		d := *o.DiscountedPrice
		out.DiscountedPrice = &d
	}
	if o.Variants != nil {
		if len(o.Variants) == 0 {
			out.Variants = nil
		} else {
			out.Variants = append([]Variant(nil), o.Variants...)
		}
		out.ID = IdentityOf(out.ProductID, out.Variants)
	}
	if len(o.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(Metadata, len(o.Metadata))
		}
		for k, v := range o.Metadata {
			out.Metadata[k] = v
		}
	}
	out.UpdatedAt = now
	return out
}
