// Package memory implements the event bus with in-process fan-out and
// a bounded replay buffer for late subscribers.
package memory

import (
	"context"
	"sync"

	"github.com/audiostudio/conductor/pkg/ports"
)

// Bus distributes events to in-process subscribers. Handlers run
// asynchronously; a slow handler never blocks publication. Recent
// events are kept in a bounded buffer so polling consumers can catch
// up with Since.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	nextID      int
	nextSeq     int64
	maxEvents   int
	buffer      []sequenced
}

type subscription struct {
	id      int
	handler ports.EventHandler
}

type sequenced struct {
	Seq   int64
	Topic string
	Event ports.Event
}

var _ ports.EventBus = (*Bus)(nil)

// NewBus creates a bus buffering up to maxEvents recent events.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Bus{
		subscribers: make(map[string][]subscription),
		maxEvents:   maxEvents,
	}
}

// Publish delivers the event to all subscribers of the topic and
// appends it to the replay buffer.
func (b *Bus) Publish(ctx context.Context, topic string, event ports.Event) error {
	b.mu.Lock()
	b.nextSeq++
	b.buffer = append(b.buffer, sequenced{Seq: b.nextSeq, Topic: topic, Event: event})
	if len(b.buffer) > b.maxEvents {
		trim := len(b.buffer) - b.maxEvents
		b.buffer = append([]sequenced(nil), b.buffer[trim:]...)
	}
	handlers := make([]ports.EventHandler, 0, len(b.subscribers[topic]))
	for _, sub := range b.subscribers[topic] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		go func(h ports.EventHandler) {
			_ = h(ctx, event)
		}(handler)
	}
	return nil
}

// Subscribe registers a handler for a topic. The subscription is
// removed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[topic] = append(b.subscribers[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, id)
	}()
	return nil
}

// Since returns buffered events with sequence strictly greater than
// seq, optionally filtered by topic ("" matches all).
func (b *Bus) Since(seq int64, topic string) ([]ports.Event, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	last := seq
	var out []ports.Event
	for _, entry := range b.buffer {
		if entry.Seq <= seq {
			continue
		}
		if topic != "" && entry.Topic != topic {
			continue
		}
		out = append(out, entry.Event)
		last = entry.Seq
	}
	return out, last
}

// Close drops all subscriptions and the buffer.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string][]subscription)
	b.buffer = nil
	return nil
}

func (b *Bus) unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
