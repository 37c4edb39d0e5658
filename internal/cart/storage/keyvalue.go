package storage

import (
	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

const (
	BackendLocal   = "local"
	BackendSession = "session"
)

// KeyValueStore is a synchronous string store in the shape of browser storage. SetItem
// returns ErrQuotaExceeded (possibly wrapped) when the value does not fit.
type KeyValueStore interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

const probeKey = "__cart_storage_probe__"

// Probe checks that kv accepts a write and a removal.
func Probe(kv KeyValueStore) error {
	if err := kv.SetItem(probeKey, probeKey); err != nil {
		return err
	}
	return kv.RemoveItem(probeKey)
}

// KeyValue persists the snapshot under one key of a KeyValueStore.
type KeyValue struct {
	kv      KeyValueStore
	key     string
	backend string
}

// NewLocalStorage builds the durable key-value adapter.
func NewLocalStorage(kv KeyValueStore, key string) *KeyValue {
	return &KeyValue{kv: kv, key: key, backend: BackendLocal}
}

// NewSessionStorage builds the session-scoped key-value adapter.
func NewSessionStorage(kv KeyValueStore, key string) *KeyValue {
	return &KeyValue{kv: kv, key: key, backend: BackendSession}
}

func (a *KeyValue) Backend() string { return a.backend }

func (a *KeyValue) GetCart() (*cart.State, error) {
	raw, ok, err := a.kv.GetItem(a.key)
	if err != nil {
		return nil, storageError(cart.OpGet, a.backend, err)
	}
	if !ok {
		return nil, nil
	}
	state, err := decodeOrClear([]byte(raw), func() error { return a.kv.RemoveItem(a.key) })
	return state, storageError(cart.OpClear, a.backend, err)
}

func (a *KeyValue) SaveCart(state cart.State) error {
	err := writeWithReducedRetry(state, isQuota, func(payload []byte) error {
		return a.kv.SetItem(a.key, string(payload))
	})
	return storageError(cart.OpSave, a.backend, err)
}

func (a *KeyValue) ClearCart() error {
	return storageError(cart.OpClear, a.backend, a.kv.RemoveItem(a.key))
}
