// Package events provides a typed publish/subscribe bus for registry, health,
// and tool lifecycle notifications. Events are delivered to every subscriber
// registered at publish time; subscribers registered afterwards do not receive
// earlier events. Each subscriber owns a bounded buffer, and a full buffer
// drops the event for that subscriber rather than blocking the publisher.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const (
	TypeServerRegistered   Type = "server.registered"
	TypeServerUpdated      Type = "server.updated"
	TypeServerUnregistered Type = "server.unregistered"
	TypeStatusChanged      Type = "status.changed"
	TypeHealthChecked      Type = "health.checked"
	TypeToolExecuted       Type = "tool.executed"
	TypeToolError          Type = "tool.error"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity.
const DefaultSubscriberBuffer = 64

// Type identifies the kind of domain event.
type Type string

// Event is one domain notification. Payload carries a type-specific value
// (e.g. StatusChange for TypeStatusChanged).
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ServerID  string    `json:"serverId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// StatusChange is the payload for TypeStatusChanged.
type StatusChange struct {
	NewStatus string `json:"newStatus"`
	OldStatus string `json:"oldStatus"`
}

// HealthChecked is the payload for TypeHealthChecked.
type HealthChecked struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// ToolExecuted is the payload for TypeToolExecuted and TypeToolError.
type ToolExecuted struct {
	ToolName string        `json:"toolName"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Subscription is one subscriber's view of the bus. Close it when done to
// release the bus-side registration.
type Subscription struct {
	ch     chan Event
	types  map[Type]struct{}
	cancel func()
	once   sync.Once
}

// Events returns the channel events are delivered on. The channel is closed
// when the subscription or the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

func (s *Subscription) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	logger hclog.Logger

	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus(logger hclog.Logger) *Bus {
	return &Bus{
		logger: logger.Named("events"),
		subs:   make(map[int]*Subscription),
	}
}

// Subscribe registers a new subscriber. With no types given, the subscriber
// receives every event; otherwise only the named types.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &Subscription{
		ch:    make(chan Event, DefaultSubscriberBuffer),
		types: make(map[Type]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subs[id] = sub
	return sub
}

// Publish delivers an event to all current subscribers interested in its type.
// Publishing never blocks: a subscriber with a full buffer misses the event.
func (b *Bus) Publish(t Type, serverID string, payload any) {
	evt := Event{
		ID:        uuid.NewString(),
		Type:      t,
		ServerID:  serverID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.wants(t) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("Dropping event for slow subscriber", "type", t, "server", serverID)
		}
	}
}

// Close shuts the bus down, closing every subscriber channel. Publish becomes
// a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
