package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pollbot/internal/shared/events"
)

const (
	defaultBufferSize     = 128
	defaultHandlerTimeout = 30 * time.Second
)

// Bus is an in-process publish/subscribe adapter. Each subscription runs a
// fixed number of handler goroutines over a buffered channel, so events for
// different polls are processed concurrently.
//
// Cancelling a subscription context stops new deliveries to it; events
// already queued are still handled before Wait returns. Handlers get a
// context detached from the subscription so an interaction acknowledged
// before shutdown is not cut off mid-flight.
type Bus struct {
	mu             sync.RWMutex
	subscribers    map[string][]chan events.Envelope
	workers        int
	handlerTimeout time.Duration
	wg             sync.WaitGroup
	logger         *slog.Logger
}

func NewBus(workers int, logger *slog.Logger) *Bus {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers:    make(map[string][]chan events.Envelope),
		workers:        workers,
		handlerTimeout: defaultHandlerTimeout,
		logger:         logger,
	}
}

// Publish delivers event to every subscriber of topic. It blocks while a
// subscriber's buffer is full and gives up when ctx is done.
func (b *Bus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	// The read lock is held across the sends so a subscription cannot close
	// its channel underneath them.
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.subscribers[topic]
	if len(subs) == 0 {
		b.logger.Warn("event published without subscribers",
			"event", "bus_publish_unrouted",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
		)
		return nil
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		}
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	ch := make(chan events.Envelope, defaultBufferSize)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-ctx.Done()
		b.removeSubscriber(topic, ch)
	}()

	handlerCtx := context.WithoutCancel(ctx)
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for event := range ch {
				b.handle(handlerCtx, topic, consumerGroup, handler, event)
			}
		}()
	}
	return nil
}

func (b *Bus) handle(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
	event events.Envelope,
) {
	ctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
	defer cancel()
	if err := handler(ctx, event); err != nil {
		b.logger.Error("consumer handler failed",
			"event", "bus_consume_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
	}
}

// Wait blocks until every subscription was cancelled and its queued events
// were handled.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) removeSubscriber(topic string, target chan events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
	close(target)
}
