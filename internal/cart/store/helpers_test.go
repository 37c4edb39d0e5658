package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() func() time.Time {
	var ticks int64
	return func() time.Time {
		n := atomic.AddInt64(&ticks, 1)
		return baseTime.Add(time.Duration(n) * time.Second)
	}
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = testClock()
	}
	s := New(opts)
	t.Cleanup(s.Close)
	return s
}

func newReadyStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := newTestStore(t, opts)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func addOpts(productID string, price float64, qty int) cart.AddItemOptions {
	return cart.AddItemOptions{
		ProductID: cart.StringProductID(productID),
		Name:      "Product " + productID,
		Price:     price,
		Quantity:  &qty,
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// asyncBackend is a controllable AsyncAdapter.
type asyncBackend struct {
	mu      sync.Mutex
	stored  *cart.State
	saves   []cart.State
	clears  int
	saveErr error
	loadErr error
	loads   int32

	// gate, when set, blocks every save until a value can be received.
	gate    chan struct{}
	started chan struct{}
	// loadGate, when set, blocks loads until closed.
	loadGate chan struct{}
}

func newAsyncBackend() *asyncBackend {
	return &asyncBackend{started: make(chan struct{}, 64)}
}

func (b *asyncBackend) Backend() string { return "fake-async" }

func (b *asyncBackend) GetCart(ctx context.Context) (*cart.State, error) {
	atomic.AddInt32(&b.loads, 1)
	if b.loadGate != nil {
		select {
		case <-b.loadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	if b.stored == nil {
		return nil, nil
	}
	s := b.stored.Clone()
	return &s, nil
}

func (b *asyncBackend) SaveCart(ctx context.Context, state cart.State) error {
	b.started <- struct{}{}
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	s := state.Clone()
	b.stored = &s
	b.saves = append(b.saves, s)
	return nil
}

func (b *asyncBackend) ClearCart(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	b.stored = nil
	return nil
}

func (b *asyncBackend) savedStates() []cart.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]cart.State(nil), b.saves...)
}

func (b *asyncBackend) current() *cart.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stored
}

var errBackendDown = errors.New("backend down")

func seededKV(t *testing.T, state cart.State) *storage.SessionKeyValueStore {
	t.Helper()
	kv := storage.NewSessionKeyValueStore()
	require.NoError(t, storage.NewLocalStorage(kv, DefaultStorageKey).SaveCart(state))
	return kv
}

// recorder collects transitions.
type recorder struct {
	mu    sync.Mutex
	kinds []TransitionKind
	all   []Transition
}

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, t.Kind)
	r.all = append(r.all, t)
}

func (r *recorder) Kinds() []TransitionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransitionKind(nil), r.kinds...)
}
