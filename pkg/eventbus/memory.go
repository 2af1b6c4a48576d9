package eventbus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Publisher that fans events out to registered
// subscribers synchronously. Used in tests and single-process deployments.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
	all  []Subscriber
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]Subscriber)}
}

// Subscribe registers a subscriber for a specific event name.
func (b *MemoryBus) Subscribe(eventName string, sub Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], sub)
}

// SubscribeAll registers a subscriber for every event.
func (b *MemoryBus) SubscribeAll(sub Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, sub)
}

// Publish delivers the event to all matching subscribers in registration
// order. Subscriber panics are not recovered; subscribers are trusted
// in-process code.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	matched := make([]Subscriber, 0, len(b.all)+len(b.subs[event.EventName()]))
	matched = append(matched, b.all...)
	matched = append(matched, b.subs[event.EventName()]...)
	b.mu.RUnlock()

	for _, sub := range matched {
		sub(ctx, event)
	}
	return nil
}
