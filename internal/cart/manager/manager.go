// Package manager wraps a cart store and turns its transition log into typed events for
// subscribers.
package manager

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/store"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Listener receives cart events. A returned error is logged; it never stops delivery to
// the other listeners.
type Listener func(Event) error

// Manager is the event facade over one store.
type Manager struct {
	store *store.Store
	log   *logger.Logger

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener

	stopObserving func()
}

// New wraps s. A nil logger disables logging.
func New(s *store.Store, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		store:     s,
		log:       log,
		listeners: make(map[int]Listener),
	}
	m.stopObserving = s.Observe(m.handle)
	return m
}

// Subscribe registers fn and returns the function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Close detaches the manager from its store. The store itself stays open.
func (m *Manager) Close() {
	m.stopObserving()
}

// Store exposes the wrapped store.
func (m *Manager) Store() *store.Store { return m.store }

func (m *Manager) handle(t store.Transition) {
	ev, ok := eventFromTransition(uuid.NewString(), t)
	if !ok {
		return
	}

	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, id := range slices.Sorted(maps.Keys(m.listeners)) {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.RUnlock()

	var errs error
	for _, fn := range listeners {
		errs = multierr.Append(errs, m.call(fn, ev))
	}
	if errs != nil {
		ctx := m.log.WithFields(context.Background(), map[string]any{
			"event_type":       string(ev.Type),
			"event_id":         ev.ID,
			"failed_listeners": len(multierr.Errors(errs)),
		})
		m.log.Error(ctx, "cart event listener failed", errs)
	}
}

func (m *Manager) call(fn Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ev)
}

func (m *Manager) AddItem(ctx context.Context, opts cart.AddItemOptions) (*cart.Item, error) {
	return m.store.AddItem(ctx, opts)
}

func (m *Manager) UpdateItem(ctx context.Context, id string, opts cart.UpdateItemOptions) (*cart.Item, error) {
	return m.store.UpdateItem(ctx, id, opts)
}

func (m *Manager) RemoveItem(ctx context.Context, id string) error {
	return m.store.RemoveItem(ctx, id)
}

func (m *Manager) ClearCart(ctx context.Context) error {
	return m.store.ClearCart(ctx)
}

func (m *Manager) RecalculateTotals(override *cart.Rates) {
	m.store.RecalculateTotals(override)
}

func (m *Manager) Initialize(ctx context.Context) error {
	return m.store.Initialize(ctx)
}

func (m *Manager) GetItem(id string) (cart.Item, bool) {
	return m.store.GetItem(id)
}

func (m *Manager) GetItemByProduct(productID cart.ProductID, variants []cart.Variant) (cart.Item, bool) {
	return m.store.GetItemByProduct(productID, variants)
}

func (m *Manager) State() cart.State {
	return m.store.State()
}

func (m *Manager) Err() error {
	return m.store.Err()
}
