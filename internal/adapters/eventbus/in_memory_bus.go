package eventbus

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// queueSize is the per-subscriber buffer. A subscriber that falls this
// far behind starts dropping events rather than blocking the publisher.
const queueSize = 256

// subscriber owns one delivery queue and the goroutine draining it.
type subscriber struct {
	id      uint64
	queue   chan domain.Event
	handler ports.EventHandler
	once    sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.queue) })
}

// InMemoryBus implements ports.EventBus. Events fan out to a queue per
// subscriber, in subscription order, so one slow handler delays only
// itself. There is no persistence and no replay: whoever subscribes
// after an event was published never sees it.
type InMemoryBus struct {
	log    zerolog.Logger
	mu     sync.Mutex
	subs   []*subscriber
	nextID uint64
	closed bool
}

var _ ports.EventBus = (*InMemoryBus)(nil)

// NewInMemoryBus creates a new, empty event bus.
func NewInMemoryBus(baseLogger *zerolog.Logger) *InMemoryBus {
	return &InMemoryBus{
		log: baseLogger.With().Str("component", "event_bus").Logger(),
	}
}

// Publish enqueues the event for every current subscriber and returns.
// A full subscriber queue drops the event for that subscriber only.
func (b *InMemoryBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return
	}
	if len(subs) == 0 {
		b.log.Debug().Str("type", string(event.Type)).Msg("Published event with no subscribers")
		return
	}

	for _, sub := range subs {
		select {
		case sub.queue <- event:
		default:
			b.log.Warn().Str("type", string(event.Type)).Uint64("subscriber", sub.id).Msg("Subscriber queue full, event dropped")
		}
	}
}

// Subscribe registers a handler and starts its delivery goroutine. The
// returned func removes the subscription; calling it twice is safe.
func (b *InMemoryBus) Subscribe(handler ports.EventHandler) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscriber{
		id:      b.nextID,
		queue:   make(chan domain.Event, queueSize),
		handler: handler,
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go b.deliver(sub)
	b.log.Debug().Uint64("subscriber", sub.id).Msg("New handler subscribed")

	return func() {
		b.mu.Lock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		sub.close()
	}
}

// Close tears the bus down; pending queues are abandoned.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.closed = true
	b.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

// deliver drains one subscriber's queue. Handler errors and panics are
// logged and isolated; they never reach the publisher or the other
// subscribers.
func (b *InMemoryBus) deliver(sub *subscriber) {
	for event := range sub.queue {
		b.dispatch(sub, event)
	}
}

func (b *InMemoryBus) dispatch(sub *subscriber, event domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error().Uint64("subscriber", sub.id).Str("type", string(event.Type)).Interface("panic", rec).Msg("Event handler panicked")
		}
	}()
	// Handlers get a fresh context: delivery outlives the publisher's
	// request.
	if err := sub.handler(context.Background(), event); err != nil {
		b.log.Error().Err(err).Uint64("subscriber", sub.id).Str("type", string(event.Type)).Msg("Event handler failed")
	}
}
