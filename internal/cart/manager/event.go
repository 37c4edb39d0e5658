package manager

import (
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/store"
)

// EventType is the kind of cart change an Event reports.
type EventType string

const (
	EventItemAdded   EventType = "item_added"
	EventItemRemoved EventType = "item_removed"
	EventItemUpdated EventType = "item_updated"
	EventCartCleared EventType = "cart_cleared"
	EventCartLoaded  EventType = "cart_loaded"
	EventError       EventType = "error"
)

var validEventTypes = []EventType{
	EventItemAdded,
	EventItemRemoved,
	EventItemUpdated,
	EventCartCleared,
	EventCartLoaded,
	EventError,
}

// IsValid reports whether the value is a known event type.
func (t EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseEventType converts raw input into EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart event type %q", value)
}

// Event is delivered to listeners after every cart change. Cart is the state right after
// the change.
type Event struct {
	ID         string     `json:"eventId"`
	Type       EventType  `json:"type"`
	Item       *cart.Item `json:"item,omitempty"`
	ItemID     string     `json:"itemId,omitempty"`
	PreviousID string     `json:"previousItemId,omitempty"`
	Cart       cart.State `json:"cart"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`

	Err error `json:"-"`
}

var eventTypeByTransition = map[store.TransitionKind]EventType{
	store.TransitionItemAdded:   EventItemAdded,
	store.TransitionItemUpdated: EventItemUpdated,
	store.TransitionItemRemoved: EventItemRemoved,
	store.TransitionCartCleared: EventCartCleared,
	store.TransitionCartLoaded:  EventCartLoaded,
	store.TransitionError:       EventError,
}

func eventFromTransition(id string, t store.Transition) (Event, bool) {
	typ, ok := eventTypeByTransition[t.Kind]
	if !ok {
		return Event{}, false
	}
	ev := Event{
		ID:         id,
		Type:       typ,
		Item:       t.Item,
		ItemID:     t.ItemID,
		PreviousID: t.PreviousID,
		Cart:       t.State,
		Timestamp:  t.At,
		Err:        t.Err,
	}
	if t.Err != nil {
		ev.Error = t.Err.Error()
	}
	return ev, true
}
