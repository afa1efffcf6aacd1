// Package events carries the in-process publish/subscribe plumbing the
// engagement pipeline uses to fan evaluation outcomes out to notifications
// without coupling the modules to each other.
package events

import (
	"context"
	"time"
)

// Event is anything the bus can carry. Concrete events live with the domain
// that publishes them; the bus routes purely on EventName.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp half of the Event contract. Embed it and
// add EventName on the concrete type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events. A returned error only matters to PublishSync;
// async delivery logs and moves on.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to the handlers subscribed under the event's name.
type Bus interface {
	// Publish delivers asynchronously; the caller does not wait.
	Publish(ctx context.Context, event Event)
	// PublishSync delivers inline and returns the first handler error.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe registers a handler under eventName, which must match the
	// value the event's EventName returns.
	Subscribe(eventName string, handler Handler)
}
