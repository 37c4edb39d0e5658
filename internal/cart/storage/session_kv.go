package storage

import (
	"fmt"
	"sync"
	"time"
)

// SessionKeyValueStore is an in-process KeyValueStore whose contents live for one session:
// End drops everything, and so does an access after idleTTL of inactivity.
type SessionKeyValueStore struct {
	mu         sync.Mutex
	values     map[string]string
	idleTTL    time.Duration
	quotaBytes int
	lastAccess time.Time
	now        func() time.Time
}

// SessionOption customizes a SessionKeyValueStore.
type SessionOption func(*SessionKeyValueStore)

// WithIdleTTL ends the session after d without access. Zero disables expiry.
func WithIdleTTL(d time.Duration) SessionOption {
	return func(s *SessionKeyValueStore) { s.idleTTL = d }
}

// WithQuota caps the summed size of all values.
func WithQuota(bytes int) SessionOption {
	return func(s *SessionKeyValueStore) { s.quotaBytes = bytes }
}

// WithSessionClock overrides the time source.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionKeyValueStore) { s.now = now }
}

func NewSessionKeyValueStore(opts ...SessionOption) *SessionKeyValueStore {
	s := &SessionKeyValueStore{values: make(map[string]string), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.lastAccess = s.now()
	return s
}

// touch must be called with mu held.
func (s *SessionKeyValueStore) touch() {
	now := s.now()
	if s.idleTTL > 0 && now.Sub(s.lastAccess) > s.idleTTL {
		s.values = make(map[string]string)
	}
	s.lastAccess = now
}

func (s *SessionKeyValueStore) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *SessionKeyValueStore) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.quotaBytes > 0 {
		used := len(value)
		for k, v := range s.values {
			if k != key {
				used += len(v)
			}
		}
		if used > s.quotaBytes {
			return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, used, s.quotaBytes)
		}
	}
	s.values[key] = value
	return nil
}

func (s *SessionKeyValueStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	delete(s.values, key)
	return nil
}

// End closes the session, dropping every value.
func (s *SessionKeyValueStore) End() {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()
}

// Len reports how many keys the session holds.
func (s *SessionKeyValueStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
