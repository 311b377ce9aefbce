// Package realtime fans out entity change events to connected clients so they refetch.
// Events carry no payload beyond the entity identity.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entity kinds carried by events
const (
	EntityObject       = "object"
	EntityTask         = "task"
	EntityClient       = "client"
	EntityProposal     = "proposal"
	EntityInvoice      = "invoice"
	EntityNotification = "notification"
	EntityFile         = "file"
)

// Actions carried by events
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event tells subscribers that an entity changed
type Event struct {
	Entity string    `json:"entity"`
	ID     uuid.UUID `json:"id"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// NewEvent stamps an event with the current time
func NewEvent(entity string, id uuid.UUID, action string) Event {
	return Event{Entity: entity, ID: id, Action: action, At: time.Now().UTC()}
}

// Publisher broadcasts change events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Hub is the in-process fan-out to subscribers on this instance. It also serves as the
// publisher when no broker is configured.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer pending events
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. The returned func unregisters it and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers event to every subscriber. Slow subscribers miss events rather than
// block the publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of registered subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func decode(payload string) (Event, error) {
	var event Event
	err := json.Unmarshal([]byte(payload), &event)
	return event, err
}
