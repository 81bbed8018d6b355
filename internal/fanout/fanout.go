// Package fanout provides the in-memory event bus distributing
// detection and analysis events to push subscribers and sinks.
package fanout

import (
	"sync"
	"time"

	"whalewatch/internal/domain"
)

// DefaultBuffer is the per-subscriber channel buffer.
const DefaultBuffer = 256

// Bus is a broadcast channel: every published event goes to every
// subscriber. Sends never block; a slow subscriber drops events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
	buffer int
}

// New creates a Bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[int]chan domain.Event),
		buffer: DefaultBuffer,
	}
}

// Subscribe registers a subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan domain.Event, b.buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish wraps data in a typed envelope and broadcasts it.
func (b *Bus) Publish(t domain.EventType, data interface{}) {
	ev := domain.Event{Type: t, Data: data, Timestamp: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
