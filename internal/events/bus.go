package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	now    func() time.Time
	log    zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		now:  time.Now,
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe returns a channel of future events and a function that cancels the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers data to every current subscriber.
func (b *Bus) Publish(module string, data EventData) {
	event := Event{
		Type:      data.EventType(),
		Timestamp: b.now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.Warn().Int("subscriber", id).Str("event_type", string(event.Type)).Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
