package storage

import (
	"sync"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

const BackendMemory = "memory"

// Memory keeps the snapshot in process memory only.
type Memory struct {
	mu    sync.RWMutex
	state *cart.State
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Backend() string { return BackendMemory }

func (m *Memory) GetCart() (*cart.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	s := m.state.Clone()
	return &s, nil
}

func (m *Memory) SaveCart(state cart.State) error {
	s := state.Clone()
	m.mu.Lock()
	m.state = &s
	m.mu.Unlock()
	return nil
}

func (m *Memory) ClearCart() error {
	m.mu.Lock()
	m.state = nil
	m.mu.Unlock()
	return nil
}
