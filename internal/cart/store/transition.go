package store

import (
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

// Phase is the lifecycle of a store.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// TransitionKind names what a mutation did.
type TransitionKind string

const (
	TransitionItemAdded   TransitionKind = "item_added"
	TransitionItemUpdated TransitionKind = "item_updated"
	TransitionItemRemoved TransitionKind = "item_removed"
	TransitionCartCleared TransitionKind = "cart_cleared"
	TransitionCartLoaded  TransitionKind = "cart_loaded"
	TransitionError       TransitionKind = "error"
)

// Transition is one entry of the store's transition log. Item is the resulting line for
// adds and updates and the removed line for removals. PreviousID is set when an update
// changed the item's identity.
type Transition struct {
	Kind       TransitionKind
	Item       *cart.Item
	ItemID     string
	PreviousID string
	State      cart.State
	Err        error
	At         time.Time
}

// Snapshot is what state subscribers receive after every change.
type Snapshot struct {
	State cart.State
	Phase Phase
	Err   error
}

// Loading reports whether Initialize is in flight.
func (s Snapshot) Loading() bool { return s.Phase == PhaseLoading }

type notification struct {
	snapshot   Snapshot
	transition *Transition
}
