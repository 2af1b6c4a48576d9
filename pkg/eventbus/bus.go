package eventbus

import "context"

// Event is anything that can be published on the bus. Name is used as the
// topic/channel and should be a stable, dot-separated identifier such as
// "subscription.timeline.changed" or "overdue.state.changed".
type Event interface {
	EventName() string
}

// Publisher delivers events to interested parties on a best-effort basis.
// Publish errors must never roll back the state change that produced the
// event; callers are expected to log and continue.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events published on an in-process bus.
type Subscriber func(ctx context.Context, event Event)
