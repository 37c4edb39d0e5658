package cart

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength    = 500
	MaxVariantLength = 100
)

var scriptPattern = regexp.MustCompile(`(?i)<\s*/?\s*script\b|javascript\s*:|<[^>]*\bon[a-z]+\s*=`)

// ContainsScript reports whether s carries embedded script markup.
func ContainsScript(s string) bool {
	return scriptPattern.MatchString(s)
}

// ValidateProductID accepts a non-empty string or a finite number.
func ValidateProductID(v any) (ProductID, error) {
	switch id := v.(type) {
	case ProductID:
		if id.IsZero() || (!id.IsNumeric() && strings.TrimSpace(id.String()) == "") {
			return ProductID{}, newValidationError("productId", v, "must be a non-empty string or a finite number")
		}
		return id, nil
	case string:
		if strings.TrimSpace(id) == "" {
			return ProductID{}, newValidationError("productId", v, "must be a non-empty string or a finite number")
		}
		return StringProductID(id), nil
	}
	n, ok := toFloat(v)
	if !ok || !isFinite(n) {
		return ProductID{}, newValidationError("productId", v, "must be a non-empty string or a finite number")
	}
	return NumericProductID(n), nil
}

// ValidateQuantity accepts a non-negative integer no larger than maxQty, when maxQty is set.
func ValidateQuantity(v any, maxQty *int) (int, error) {
	n, ok := toFloat(v)
	if !ok || !isFinite(n) || n != math.Trunc(n) {
		return 0, newValidationError("quantity", v, "must be an integer")
	}
	if n < 0 {
		return 0, newValidationError("quantity", v, "must be non-negative")
	}
	if n > math.MaxInt32 {
		return 0, newValidationError("quantity", v, "is too large")
	}
	qty := int(n)
	if maxQty != nil && qty > *maxQty {
		return 0, &QuantityError{Max: *maxQty, Requested: qty}
	}
	return qty, nil
}

// ValidatePrice accepts a finite, non-negative number.
func ValidatePrice(field string, v any) (float64, error) {
	n, ok := toFloat(v)
	if !ok || !isFinite(n) {
		return 0, newValidationError(field, v, "must be a finite number")
	}
	if n < 0 {
		return 0, newValidationError(field, v, "must be non-negative")
	}
	return n, nil
}

// ValidatePrices checks both prices and that the discounted price does not exceed the
// regular one.
func ValidatePrices(price float64, discounted *float64) error {
	if _, err := ValidatePrice("price", price); err != nil {
		return err
	}
	if discounted == nil {
		return nil
	}
	if _, err := ValidatePrice("discountedPrice", *discounted); err != nil {
		return err
	}
	if *discounted > price {
		return newValidationError("discountedPrice", *discounted, "must not exceed price %v", price)
	}
	return nil
}

// ValidateName accepts a non-empty string of at most MaxNameLength characters.
func ValidateName(v any) (string, error) {
	name, ok := v.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", newValidationError("name", v, "must be a non-empty string")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", newValidationError("name", v, "must be at most %d characters", MaxNameLength)
	}
	if ContainsScript(name) {
		return "", newValidationError("name", v, "must not contain script markup")
	}
	return name, nil
}

// ValidateVariants accepts nil, a []Variant, or a decoded JSON array of {key, value}
// objects. Keys must be unique.
func ValidateVariants(v any) ([]Variant, error) {
	var variants []Variant
	switch in := v.(type) {
	case nil:
		return nil, nil
	case []Variant:
		variants = in
	case []any:
		variants = make([]Variant, 0, len(in))
		for _, raw := range in {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, newValidationError("variants", v, "must be an array of {key, value} objects")
			}
			key, kok := obj["key"].(string)
			value, vok := obj["value"].(string)
			if !kok || !vok {
				return nil, newValidationError("variants", v, "must be an array of {key, value} objects")
			}
			variant := Variant{Key: key, Value: value}
			if attr, ok := obj["attributeId"].(string); ok {
				variant.AttributeID = &attr
			}
			variants = append(variants, variant)
		}
	default:
		return nil, newValidationError("variants", v, "must be an array of {key, value} objects")
	}

	seen := make(map[string]struct{}, len(variants))
	for _, variant := range variants {
		if err := validateVariantText("variants.key", variant.Key); err != nil {
			return nil, err
		}
		if err := validateVariantText("variants.value", variant.Value); err != nil {
			return nil, err
		}
		if _, dup := seen[variant.Key]; dup {
			return nil, newValidationError("variants", variant.Key, "duplicate variant key %q", variant.Key)
		}
		seen[variant.Key] = struct{}{}
	}
	return variants, nil
}

func validateVariantText(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return newValidationError(field, s, "must be non-empty")
	}
	if utf8.RuneCountInString(s) > MaxVariantLength {
		return newValidationError(field, s, "must be at most %d characters", MaxVariantLength)
	}
	if ContainsScript(s) {
		return newValidationError(field, s, "must not contain script markup")
	}
	return nil
}

// ValidateItem checks a complete item, including its identity and quantity bound.
func ValidateItem(item Item) error {
	if _, err := ValidateProductID(item.ProductID); err != nil {
		return err
	}
	if _, err := ValidateName(item.Name); err != nil {
		return err
	}
	if _, err := ValidateVariants(item.Variants); err != nil {
		return err
	}
	if err := CheckInvariants(item); err != nil {
		return err
	}
	if want := IdentityOf(item.ProductID, item.Variants); item.ID != want {
		return newValidationError("id", item.ID, "does not match identity %q", want)
	}
	return nil
}

// CheckInvariants enforces the numeric invariants every stored item holds, regardless of
// whether full validation is enabled.
func CheckInvariants(item Item) error {
	if err := ValidatePrices(item.Price, item.DiscountedPrice); err != nil {
		return err
	}
	var maxQty *int
	if m, ok := item.Metadata.MaxQuantity(); ok {
		maxQty = &m
	}
	_, err := ValidateQuantity(item.Quantity, maxQty)
	return err
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
