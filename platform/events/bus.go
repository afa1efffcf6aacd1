package events

import (
	"context"
	"fmt"
	"sync"

	"swipelink_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Handlers for the same
// event name run in registration order; Publish runs them on a goroutine,
// PublishSync runs them inline and returns the first error.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event asynchronously. Handler errors and panics are
// logged, never propagated; a publisher must not fail because a subscriber did.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	go func() {
		for _, h := range handlers {
			b.run(ctx, event, h)
		}
	}()
}

// PublishSync dispatches the event inline and returns the first handler error.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.run(ctx, event, h); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBus) run(ctx context.Context, event Event, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
			if b.log != nil {
				b.log.Error("event handler panic", "event", event.EventName(), "panic", fmt.Sprint(r))
			}
		}
	}()

	if err := h.Handle(ctx, event); err != nil {
		if b.log != nil {
			b.log.Error("event handler failed", "event", event.EventName(), "error", err)
		}
		return err
	}
	return nil
}
