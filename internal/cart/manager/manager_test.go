package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/store"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, adapter *storage.Adapter, log *logger.Logger) *Manager {
	t.Helper()
	s := store.New(store.Options{
		Storage: adapter,
		Clock:   func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	m := New(s, log)
	t.Cleanup(func() {
		m.Close()
		s.Close()
	})
	return m
}

func product(id string, qty int) cart.AddItemOptions {
	return cart.AddItemOptions{ProductID: cart.StringProductID(id), Name: "Item " + id, Price: 10, Quantity: &qty}
}

type collector struct {
	events []Event
}

func (c *collector) listen(ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) types() []EventType {
	out := make([]EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func TestManagerEmitsTypedEvents(t *testing.T) {
	t.Parallel()
	m := newManager(t, storage.Sync(storage.NewMemory()), nil)
	c := &collector{}
	m.Subscribe(c.listen)
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx))
	a, err := m.AddItem(ctx, product("A", 1))
	require.NoError(t, err)
	_, err = m.AddItem(ctx, product("A", 2))
	require.NoError(t, err)
	_, err = m.UpdateItem(ctx, a.ID, cart.UpdateItemOptions{Quantity: intPtr(0)})
	require.NoError(t, err)
	_, err = m.AddItem(ctx, product("B", 1))
	require.NoError(t, err)
	require.NoError(t, m.ClearCart(ctx))

	assert.Equal(t, []EventType{
		EventCartLoaded,
		EventItemAdded,
		EventItemUpdated,
		EventItemRemoved,
		EventItemAdded,
		EventCartCleared,
	}, c.types())

	removed := c.events[3]
	require.NotNil(t, removed.Item)
	assert.Equal(t, "A", removed.ItemID)
	assert.Equal(t, 3, removed.Item.Quantity)
	assert.Empty(t, removed.Cart.Items)
	assert.NotEmpty(t, removed.ID)
	assert.False(t, removed.Timestamp.IsZero())
}

func TestManagerSeesSimultaneousAddAndRemove(t *testing.T) {
	t.Parallel()
	m := newManager(t, storage.Sync(storage.NewMemory()), nil)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	a, err := m.AddItem(ctx, product("A", 1))
	require.NoError(t, err)

	c := &collector{}
	m.Subscribe(c.listen)
	require.NoError(t, m.RemoveItem(ctx, a.ID))
	_, err = m.AddItem(ctx, product("B", 1))
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventItemRemoved, EventItemAdded}, c.types())
	assert.Len(t, c.events[1].Cart.Items, 1)
}

func TestManagerEmitsErrorOnceWhenSlotFills(t *testing.T) {
	t.Parallel()
	kv := storage.NewSessionKeyValueStore(storage.WithQuota(1))
	m := newManager(t, storage.Sync(storage.NewLocalStorage(kv, "cart")), nil)
	c := &collector{}
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	m.Subscribe(c.listen)

	_, err := m.AddItem(ctx, product("A", 1))
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventItemAdded, EventError}, c.types())
	errEvent := c.events[1]
	assert.ErrorIs(t, errEvent.Err, storage.ErrQuotaExceeded)
	assert.NotEmpty(t, errEvent.Error)
	assert.Error(t, m.Err())
}

func TestListenerFailuresAreIsolatedAndLogged(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	log := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf})
	m := newManager(t, storage.Sync(storage.NewMemory()), log)
	ctx := context.Background()

	m.Subscribe(func(Event) error { panic("listener exploded") })
	m.Subscribe(func(Event) error { return errors.New("listener refused") })
	c := &collector{}
	m.Subscribe(c.listen)

	require.NoError(t, m.Initialize(ctx))
	assert.Equal(t, []EventType{EventCartLoaded}, c.types())
	assert.Contains(t, buf.String(), "listener exploded")
	assert.Contains(t, buf.String(), "listener refused")
	assert.Contains(t, buf.String(), `"failed_listeners":2`)
}

func TestUnsubscribeAndClose(t *testing.T) {
	t.Parallel()
	m := newManager(t, storage.Sync(storage.NewMemory()), nil)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))

	c := &collector{}
	unsubscribe := m.Subscribe(c.listen)
	_, err := m.AddItem(ctx, product("A", 1))
	require.NoError(t, err)
	unsubscribe()
	_, err = m.AddItem(ctx, product("B", 1))
	require.NoError(t, err)
	assert.Len(t, c.events, 1)

	other := &collector{}
	m.Subscribe(other.listen)
	m.Close()
	_, err = m.AddItem(ctx, product("C", 1))
	require.NoError(t, err)
	assert.Empty(t, other.events)
	assert.Len(t, m.State().Items, 3)
}

func TestPassThroughLookups(t *testing.T) {
	t.Parallel()
	m := newManager(t, storage.Sync(storage.NewMemory()), nil)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))

	opts := product("A", 2)
	opts.Variants = []cart.Variant{{Key: "color", Value: "red"}}
	added, err := m.AddItem(ctx, opts)
	require.NoError(t, err)

	got, ok := m.GetItem(added.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Quantity)
	got, ok = m.GetItemByProduct(cart.StringProductID("A"), opts.Variants)
	require.True(t, ok)
	assert.Equal(t, added.ID, got.ID)

	m.RecalculateTotals(&cart.Rates{Currency: "USD", Shipping: 5})
	assert.Equal(t, 25.0, m.State().Totals.Total)
	assert.Same(t, m.store, m.Store())
}

func TestEventJSONShape(t *testing.T) {
	t.Parallel()
	item := cart.Item{ID: "A", ProductID: cart.StringProductID("A"), Name: "A", Price: 1, Quantity: 1}
	ev, ok := eventFromTransition("evt-1", store.Transition{
		Kind:   store.TransitionItemAdded,
		Item:   &item,
		ItemID: "A",
		State:  cart.State{Items: []cart.Item{item}},
		At:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.True(t, ok)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "item_added", decoded["type"])
	assert.Equal(t, "A", decoded["itemId"])
	assert.Equal(t, "evt-1", decoded["eventId"])
	assert.Contains(t, decoded, "cart")
	assert.Contains(t, decoded, "item")
	assert.NotContains(t, decoded, "error")
}

func TestParseEventType(t *testing.T) {
	t.Parallel()
	got, err := ParseEventType("cart_cleared")
	require.NoError(t, err)
	assert.Equal(t, EventCartCleared, got)
	assert.True(t, got.IsValid())

	_, err = ParseEventType("cart_exploded")
	assert.Error(t, err)
	assert.False(t, EventType("nope").IsValid())
}

func intPtr(v int) *int { return &v }
