package store

import (
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/angelmondragon/packfinderz-cart/pkg/metrics"
)

const (
	DefaultCurrency     = "USD"
	DefaultStorageKey   = "cart"
	DefaultWriteTimeout = 10 * time.Second
)

// Options configures a Store. Every field is optional.
type Options struct {
	// Storage is the persistence backend. When nil, storage.Default picks one from Local and
	// Session once, at construction.
	Storage *storage.Adapter
	Local   storage.KeyValueStore
	Session storage.KeyValueStore

	Currency string
	TaxRate  float64
	Shipping float64
	Discount float64

	// ValidateOnChange re-validates whole items after merges and updates. Defaults to true.
	ValidateOnChange *bool
	// ValidateItem returns a non-empty message to reject an item.
	ValidateItem func(cart.Item) string

	StorageKey string
	Metadata   *cart.StateMetadata

	Logger       *logger.Logger
	Metrics      *metrics.CartMetrics
	Clock        func() time.Time
	WriteTimeout time.Duration
}

// Bool returns a pointer to v, for optional flags.
func Bool(v bool) *bool { return &v }

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	if o.StorageKey == "" {
		o.StorageKey = DefaultStorageKey
	}
	if o.ValidateOnChange == nil {
		o.ValidateOnChange = Bool(true)
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Storage == nil {
		o.Storage = storage.Default(o.Local, o.Session, o.StorageKey)
	}
	return o
}

func (o Options) rates() cart.Rates {
	return cart.Rates{Currency: o.Currency, TaxRate: o.TaxRate, Shipping: o.Shipping, Discount: o.Discount}
}
