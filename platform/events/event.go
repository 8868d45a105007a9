// Package events carries the in-process event plumbing the engagement
// modules talk over. The conversation router, the background engines and
// the notifier never import each other; they publish and subscribe here.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event put on the bus. Concrete
// event types live with the module that owns them.
type Event interface {
	// EventName returns the stable identifier handlers subscribe on,
	// such as "leads.escalated".
	EventName() string
	// OccurredAt returns when the event happened.
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp bookkeeping shared by all events.
// Embed it and implement EventName to get a complete Event.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one subscribed type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish fans the event out asynchronously. A slow handler, such as
	// the SMTP escalation notifier, never delays the publishing request.
	Publish(ctx context.Context, event Event)

	// PublishSync fans the event out and waits for every handler.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name the event type
	// reports from EventName.
	Subscribe(eventName string, handler Handler)
}
