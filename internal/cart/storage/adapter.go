// Package storage holds the persistence backends a cart store writes snapshots to. Every
// backend is either synchronous or asynchronous and says so through the Adapter it is
// wrapped in.
package storage

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

// Kind tags how an adapter must be driven.
type Kind int

const (
	KindSync Kind = iota + 1
	KindAsync
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	}
	return "unknown"
}

// ReducedItemCap is the item cap of the reduced payload written after a quota failure.
const ReducedItemCap = 50

// SyncAdapter is a backend that completes without suspending (memory, key-value stores,
// cookies).
type SyncAdapter interface {
	Backend() string
	GetCart() (*cart.State, error)
	SaveCart(state cart.State) error
	ClearCart() error
}

// AsyncAdapter is a backend that performs I/O (Redis, SQL records).
type AsyncAdapter interface {
	Backend() string
	GetCart(ctx context.Context) (*cart.State, error)
	SaveCart(ctx context.Context, state cart.State) error
	ClearCart(ctx context.Context) error
}

// Adapter is the tagged union the store consumes.
type Adapter struct {
	kind  Kind
	sync  SyncAdapter
	async AsyncAdapter
}

// Sync wraps a synchronous backend.
func Sync(a SyncAdapter) *Adapter {
	return &Adapter{kind: KindSync, sync: a}
}

// Async wraps an asynchronous backend.
func Async(a AsyncAdapter) *Adapter {
	return &Adapter{kind: KindAsync, async: a}
}

func (a *Adapter) Kind() Kind { return a.kind }

// Backend names the concrete backend, used as a metrics label.
func (a *Adapter) Backend() string {
	switch a.kind {
	case KindSync:
		return a.sync.Backend()
	case KindAsync:
		return a.async.Backend()
	}
	return "unknown"
}

// Load reads the stored snapshot. A nil state with a nil error means nothing usable was
// stored.
func (a *Adapter) Load(ctx context.Context) (*cart.State, error) {
	switch a.kind {
	case KindSync:
		return a.sync.GetCart()
	case KindAsync:
		return a.async.GetCart(ctx)
	}
	return nil, fmt.Errorf("adapter kind %s not supported", a.kind)
}

// Save writes a complete snapshot.
func (a *Adapter) Save(ctx context.Context, state cart.State) error {
	switch a.kind {
	case KindSync:
		return a.sync.SaveCart(state)
	case KindAsync:
		return a.async.SaveCart(ctx, state)
	}
	return fmt.Errorf("adapter kind %s not supported", a.kind)
}

// Clear removes the stored snapshot.
func (a *Adapter) Clear(ctx context.Context) error {
	switch a.kind {
	case KindSync:
		return a.sync.ClearCart()
	case KindAsync:
		return a.async.ClearCart(ctx)
	}
	return fmt.Errorf("adapter kind %s not supported", a.kind)
}
