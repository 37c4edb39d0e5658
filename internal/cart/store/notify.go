package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Subscribe registers fn for a Snapshot after every change, including loading and error
// slot changes. The returned function unsubscribes. fn must not modify the snapshot.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Observe registers fn for every transition, in commit order. Listeners are called in
// registration order.
func (s *Store) Observe(fn func(Transition)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.observers[id] = fn
	return func() {
		s.subsMu.Lock()
		delete(s.observers, id)
		s.subsMu.Unlock()
	}
}

// publishLocked queues a notification; mu must be held so the queue follows commit order.
func (s *Store) publishLocked(t *Transition) {
	snapshot := Snapshot{State: s.state.Clone(), Phase: s.phase, Err: s.err}
	if t != nil {
		t.State = snapshot.State
	}
	s.notifyMu.Lock()
	s.outbox = append(s.outbox, notification{snapshot: snapshot, transition: t})
	s.notifyMu.Unlock()
}

// flush delivers queued notifications. Only one goroutine delivers at a time; a listener
// that mutates the store has its own notifications delivered by the same loop once it
// returns.
func (s *Store) flush() {
	s.notifyMu.Lock()
	if s.draining {
		s.notifyMu.Unlock()
		return
	}
	s.draining = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.notifyMu.Unlock()
		for _, n := range batch {
			s.deliver(n)
		}
		s.notifyMu.Lock()
	}
	s.draining = false
	s.notifyMu.Unlock()
}

func (s *Store) deliver(n notification) {
	s.subsMu.RLock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		subs = append(subs, s.subs[id])
	}
	observers := make([]func(Transition), 0, len(s.observers))
	if n.transition != nil {
		for _, id := range slices.Sorted(maps.Keys(s.observers)) {
			observers = append(observers, s.observers[id])
		}
	}
	s.subsMu.RUnlock()

	for _, fn := range subs {
		s.safeCall(func() { fn(n.snapshot) })
	}
	for _, fn := range observers {
		s.safeCall(func() { fn(*n.transition) })
	}
}

func (s *Store) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(s.logContext(context.Background(), "notify"), "cart listener panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}
