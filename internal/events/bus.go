// Package events implements the in-process event bus that fans out the
// coordination core's observable event stream to any number of subscribers
// (the HTTP websocket adapter, the TUI watcher, tests).
package events

import (
	"sync"

	"github.com/Pharbi/arachnid/internal/ports"
)

// Event is an alias for ports.Event so callers of this package don't need a
// second import for the payload type.
type Event = ports.Event

// Bus is a simple fan-out publisher: Publish never blocks on a slow
// subscriber past a small buffer, matching the "must not block on I/O"
// rule for the propagator/lifecycle/spawn/convergence callers that publish
// through it.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: map[int]chan Event{}}
}

// Publish fans e out to all current subscribers. A subscriber whose buffer is
// full drops the event rather than blocking the publisher.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}
