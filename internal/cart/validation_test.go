package cart

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/packfinderz-cart/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProductID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      any
		want    string
		numeric bool
		wantErr bool
	}{
		{name: "string", in: "abc", want: "abc"},
		{name: "int", in: 7, want: "7", numeric: true},
		{name: "float", in: 2.5, want: "2.5", numeric: true},
		{name: "json number", in: json.Number("12"), want: "12", numeric: true},
		{name: "typed", in: StringProductID("x"), want: "x"},
		{name: "empty string", in: "", wantErr: true},
		{name: "blank string", in: "   ", wantErr: true},
		{name: "nan", in: math.NaN(), wantErr: true},
		{name: "inf", in: math.Inf(1), wantErr: true},
		{name: "bool", in: true, wantErr: true},
		{name: "nil", in: nil, wantErr: true},
		{name: "zero typed", in: ProductID{}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateProductID(tc.in)
			if tc.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "productId", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
			assert.Equal(t, tc.numeric, got.IsNumeric())
		})
	}
}

func TestValidateQuantity(t *testing.T) {
	t.Parallel()

	two := 2
	qty, err := ValidateQuantity(2, &two)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	qty, err = ValidateQuantity(float64(0), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	_, err = ValidateQuantity(3, &two)
	var qerr *QuantityError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 2, qerr.Max)
	assert.Equal(t, 3, qerr.Requested)
	assert.Equal(t, pkgerrors.CodeQuantityExceeded, pkgerrors.As(err).Code())

	for _, bad := range []any{-1, 1.5, "3", math.NaN(), nil} {
		_, err := ValidateQuantity(bad, nil)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "input %v", bad)
		assert.Equal(t, "quantity", verr.Field)
	}
}

func TestValidatePrices(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePrices(10, nil))
	require.NoError(t, ValidatePrices(10, ptr(10.0)))
	require.NoError(t, ValidatePrices(0, ptr(0.0)))

	err := ValidatePrices(10, ptr(11.0))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "discountedPrice", verr.Field)

	require.Error(t, ValidatePrices(-1, nil))
	require.Error(t, ValidatePrices(math.Inf(1), nil))
	require.Error(t, ValidatePrices(5, ptr(-1.0)))

	_, err = ValidatePrice("price", "12")
	require.Error(t, err)
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	name, err := ValidateName("Shirt")
	require.NoError(t, err)
	assert.Equal(t, "Shirt", name)

	_, err = ValidateName(strings.Repeat("é", MaxNameLength))
	require.NoError(t, err, "length is counted in characters")

	for _, bad := range []any{"", "  ", 12, strings.Repeat("a", MaxNameLength+1), "<script>alert(1)</script>", "x<img src=a onerror=alert(1)>", "JavaScript:void(0)"} {
		_, err := ValidateName(bad)
		require.Error(t, err, "input %v", bad)
	}
}

func TestValidateVariants(t *testing.T) {
	t.Parallel()

	got, err := ValidateVariants(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ValidateVariants([]Variant{{Key: "size", Value: "L"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = ValidateVariants([]any{map[string]any{"key": "color", "value": "red", "attributeId": "a1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].AttributeID)
	assert.Equal(t, "a1", *got[0].AttributeID)

	bad := []any{
		"size=L",
		[]any{"size"},
		[]any{map[string]any{"key": "size"}},
		[]Variant{{Key: "", Value: "L"}},
		[]Variant{{Key: "size", Value: strings.Repeat("x", MaxVariantLength+1)}},
		[]Variant{{Key: "size", Value: "<script>"}},
		[]Variant{{Key: "size", Value: "L"}, {Key: "size", Value: "M"}},
	}
	for _, in := range bad {
		_, err := ValidateVariants(in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "input %v", in)
	}
}

func TestValidateItem(t *testing.T) {
	t.Parallel()

	item := Item{
		ID:        "p1:size:L",
		ProductID: StringProductID("p1"),
		Name:      "Shirt",
		Price:     10,
		Quantity:  2,
		Variants:  []Variant{{Key: "size", Value: "L"}},
		Metadata:  Metadata{MetaMaxQuantity: 5},
	}
	require.NoError(t, ValidateItem(item))

	wrongID := item
	wrongID.ID = "p1"
	require.Error(t, ValidateItem(wrongID))

	tooMany := item
	tooMany.Quantity = 6
	err := ValidateItem(tooMany)
	var qerr *QuantityError
	require.ErrorAs(t, err, &qerr)
	assert.True(t, errors.As(err, &qerr))
}

func TestValidationErrorMapsToAppError(t *testing.T) {
	t.Parallel()

	err := error(&ValidationError{Field: "name", Value: "", Message: "must be a non-empty string"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]any{"field": "name", "message": "must be a non-empty string"}, typed.Details())
}

func ptr[T any](v T) *T { return &v }
