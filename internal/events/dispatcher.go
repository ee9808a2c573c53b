package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the in-memory buffer cannot take more events.
var ErrQueueFull = errors.New("event queue full")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// Queue is a Dispatcher whose deliveries happen in Run.
type Queue interface {
	Dispatcher
	// Run delivers queued events until ctx is cancelled.
	Run(ctx context.Context) error
}

type registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

func newRegistry() *registry {
	return &registry{listeners: make(map[EventType][]EventHandler)}
}

// Subscribe registers a handler for the given event type.
func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

// deliver invokes every handler for the event; handler errors are logged
// and never stop the remaining handlers.
func (r *registry) deliver(ctx context.Context, event Event, logger *zap.Logger) {
	r.mu.RLock()
	handlers := append([]EventHandler{}, r.listeners[event.Type]...)
	r.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// inMemoryDispatcher buffers events on a channel drained by Run.
type inMemoryDispatcher struct {
	*registry
	queue  chan Event
	logger *zap.Logger
}

// NewInMemoryDispatcher creates a queue holding up to buffer pending events.
func NewInMemoryDispatcher(buffer int, logger *zap.Logger) Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemoryDispatcher{
		registry: newRegistry(),
		queue:    make(chan Event, buffer),
		logger:   logger,
	}
}

// Publish enqueues without blocking.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	select {
	case d.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (d *inMemoryDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-d.queue:
			d.deliver(ctx, event, d.logger)
		}
	}
}
