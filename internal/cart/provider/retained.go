package provider

import (
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
)

// retained holds the in-process stores of the memory and session backends, one per cart
// id. An entry goes away when its last request closes it empty, or once it has sat unused
// for longer than idleTTL.
type retained[T any] struct {
	build   func() T
	empty   func(T) bool
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*retainedEntry[T]
	lastSweep time.Time
}

type retainedEntry[T any] struct {
	value    T
	refs     int
	lastUsed time.Time
}

func newRetained[T any](idleTTL time.Duration, build func() T, empty func(T) bool) *retained[T] {
	return &retained[T]{
		build:   build,
		empty:   empty,
		idleTTL: idleTTL,
		now:     time.Now,
		entries: make(map[string]*retainedEntry[T]),
	}
}

// acquire returns the store for id and pins it until the matching release.
func (r *retained[T]) acquire(id string) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	e, ok := r.entries[id]
	if !ok {
		e = &retainedEntry[T]{value: r.build()}
		r.entries[id] = e
	}
	e.refs++
	e.lastUsed = now
	return e.value
}

func (r *retained[T]) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.refs--
	e.lastUsed = r.now()
	if e.refs <= 0 && r.empty(e.value) {
		delete(r.entries, id)
	}
}

// sweepLocked runs at most twice per idleTTL.
func (r *retained[T]) sweepLocked(now time.Time) {
	if r.idleTTL <= 0 || now.Sub(r.lastSweep) < r.idleTTL/2 {
		return
	}
	r.lastSweep = now
	for id, e := range r.entries {
		if e.refs <= 0 && now.Sub(e.lastUsed) > r.idleTTL {
			delete(r.entries, id)
		}
	}
}

func (r *retained[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func memoryIsEmpty(m *storage.Memory) bool {
	state, _ := m.GetCart()
	return state == nil || len(state.Items) == 0
}

func sessionIsEmpty(s *storage.SessionKeyValueStore) bool {
	return s.Len() == 0
}
