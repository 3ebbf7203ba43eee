package ports

import (
	"StandMatch/internal/core/domain"
	"context"
)

// EventHandler is a function that can handle a domain event. An error is
// logged by the bus and isolated; it never reaches the publisher or the
// other subscribers.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus is the in-process change-notification stream. One topic, no
// persistence, no replay: a subscriber that joins after an event was
// published never sees it.
type EventBus interface {
	// Publish hands the event to every current subscriber in
	// subscription order. Delivery is decoupled from the publisher via
	// per-subscriber queues, so a slow handler cannot block this call.
	Publish(ctx context.Context, event domain.Event)

	// Subscribe registers a handler and returns its unsubscribe func.
	Subscribe(handler EventHandler) (unsubscribe func())
}
