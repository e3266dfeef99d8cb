// Package events provides the process-wide lifecycle event bus.
//
// Delivery is synchronous relative to Publish: handlers run inline, in
// subscription order. A handler panic is recovered and logged so it never
// propagates to the publisher.
package events

import (
	"log/slog"
	"strings"
	"sync"
)

// Handler receives a published event. The event name is passed explicitly
// so family subscriptions ("email:*") can tell concrete events apart.
type Handler func(event string, payload map[string]interface{})

// Bus is a many-subscriber notification channel keyed by event name.
// Subscriptions ending in ":*" match every event of that family
// (e.g. "email:*" matches "email:sent").
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]subscription
	logger   *slog.Logger
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates an event bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name or a ":*" family pattern
// and returns a function that removes the subscription.
func (b *Bus) Subscribe(name string, handler Handler) (cancel func()) {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[name]
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers payload to every matching subscriber inline.
func (b *Bus) Publish(name string, payload map[string]interface{}) {
	b.mu.RLock()
	matched := make([]Handler, 0, 4)
	for pattern, subs := range b.handlers {
		if matches(pattern, name) {
			for _, sub := range subs {
				matched = append(matched, sub.handler)
			}
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		b.deliver(name, h, payload)
	}
}

func (b *Bus) deliver(name string, h Handler, payload map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", name, "panic", r)
		}
	}()
	h(name, payload)
}

func matches(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ":*"); ok {
		return strings.HasPrefix(name, prefix+":")
	}
	return false
}
