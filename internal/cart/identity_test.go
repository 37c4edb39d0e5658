package cart

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityOfWithoutVariants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "7", IdentityOf(NumericProductID(7), nil))
	assert.Equal(t, "1.5", IdentityOf(NumericProductID(1.5), nil))
	assert.Equal(t, "A", IdentityOf(StringProductID("A"), []Variant{}))
}

func TestIdentityOfSortsVariants(t *testing.T) {
	t.Parallel()

	variants := []Variant{{Key: "size", Value: "L"}, {Key: "color", Value: "red"}}
	assert.Equal(t, "sku-1:color:red|size:L", IdentityOf(StringProductID("sku-1"), variants))
	assert.Equal(t, "size", variants[0].Key, "input order must not be modified")
}

func TestIdentityOfIgnoresVariantOrder(t *testing.T) {
	t.Parallel()

	variants := []Variant{
		{Key: "size", Value: "M"},
		{Key: "color", Value: "blue"},
		{Key: "material", Value: "cotton"},
		{Key: "fit", Value: "slim"},
		{Key: "length", Value: "32"},
	}
	want := IdentityOf(NumericProductID(42), variants)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]Variant(nil), variants...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, IdentityOf(NumericProductID(42), shuffled))
	}
}

func TestIdentityOfIgnoresAttributeID(t *testing.T) {
	t.Parallel()

	attr := "attr-9"
	a := IdentityOf(StringProductID("p"), []Variant{{Key: "size", Value: "S", AttributeID: &attr}})
	b := IdentityOf(StringProductID("p"), []Variant{{Key: "size", Value: "S"}})
	assert.Equal(t, a, b)
}
