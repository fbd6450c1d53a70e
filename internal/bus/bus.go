package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/id"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

// DefaultBuffer is the per-subscriber channel depth
const DefaultBuffer = 64

// Event is one broadcast message
type Event struct {
	Type      types.EventType        `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Subscription receives events for one consumer
type Subscription struct {
	id string
	ch chan Event
}

// ID returns the subscription identifier
func (s *Subscription) ID() string {
	return s.id
}

// Events is the subscriber's receive channel. It closes on Unsubscribe or
// when the bus shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Stats is a point-in-time snapshot of bus activity
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Bus fans events out to subscribers. Publish never blocks and never
// fails: publishing with no subscribers is a no-op, and a subscriber whose
// buffer is full loses the event while everyone else still receives it.
type Bus struct {
	log *logging.Logger

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates an empty bus
func New(log *logging.Logger) *Bus {
	return &Bus{
		log:  log.Named("bus"),
		subs: make(map[string]*Subscription),
	}
}

// Subscribe registers a consumer. A buffer of 0 or less gets the default
// depth. The returned subscription's channel is already closed when the
// bus has shut down.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		id: id.Default().GenerateWithPrefix("sub"),
		ch: make(chan Event, buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Publish broadcasts an event to every subscriber without blocking
func (b *Bus) Publish(eventType types.EventType, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	b.published.Add(1)
	for subID, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			b.log.Debug("Dropping event for slow subscriber",
				zap.String("subscriber", subID),
				zap.String("event", string(eventType)),
			)
		}
	}
}

// Stats reports subscriber count and delivery counters
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subscribers := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Subscribers: subscribers,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}

// Close shuts the bus down and closes every subscription channel. Publish
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for subID, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, subID)
	}
}
