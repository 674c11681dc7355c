// Package events provides a channel-based pub-sub bus used as the
// observability surface for the coordination core. Failures in this module
// are otherwise swallowed at component boundaries, so the bus is how
// operators notice degraded delivery or blocked tasks.
package events

import (
	"sync"
)

// defaultBufSize is used when a subscriber does not request a buffer size.
const defaultBufSize = 128

// Bus is a topic-based pub-sub event bus. Publishing never blocks: events
// are dropped for subscribers whose buffers are full.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event            // subscribers to every topic
	closed  bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe registers for events on one topic. The returned channel is
// closed when the bus closes.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// SubscribeAll registers for events on every topic through one channel.
func (b *Bus) SubscribeAll(bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Publish delivers an event to every subscriber of the topic and every
// all-topic subscriber. Full channels drop the event rather than block the
// publisher.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}
