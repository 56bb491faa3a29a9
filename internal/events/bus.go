package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc handles a single event. Handlers must be safe for
// concurrent use; the bus runs each one on its own goroutine.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus is an asynchronous publish-subscribe fan-out. The lobby
// coordinator, relays and health manager publish; telemetry, the
// websocket hub and the history recorder subscribe.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	stopCh   chan struct{}
	stopped  bool
	wg       sync.WaitGroup
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]handlerEntry),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers a named handler for one event type. The name
// shows up in logs and allows later removal via Unsubscribe.
func (b *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handlerEntry{
		name:    name,
		handler: handler,
	})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// Unsubscribe removes every handler registered under name for the
// given event type.
func (b *EventBus) Unsubscribe(eventType EventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, exists := b.handlers[eventType]
	if !exists {
		return
	}

	filtered := make([]handlerEntry, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	b.handlers[eventType] = filtered

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("unsubscribed from event")
}

// Emit publishes an event to all subscribed handlers without waiting
// for them. A panicking or failing handler never affects the caller.
func (b *EventBus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return
	}

	handlers := b.handlers[event.Type]
	if len(handlers) == 0 {
		return
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(handlers)).
		Msg("emitting event")

	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			dispatch(ctx, h, event)
		}()
	}
}

// EmitSync publishes an event and waits for every handler to finish.
// It returns the first handler error, if any.
func (b *EventBus) EmitSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return nil
	}

	handlers := b.handlers[event.Type]
	if len(handlers) == 0 {
		b.mu.RUnlock()
		return nil
	}

	// Copy so the lock is not held while handlers run.
	handlersCopy := make([]handlerEntry, len(handlers))
	copy(handlersCopy, handlers)
	b.mu.RUnlock()

	var firstErr error
	var errOnce sync.Once
	var wg sync.WaitGroup

	for _, h := range handlersCopy {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dispatch(ctx, h, event); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// dispatch runs one handler, converting panics into logged errors.
func dispatch(ctx context.Context, h handlerEntry, event Event) error {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err := h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
		return err
	}
	return nil
}

// Stop rejects further events and waits for in-flight handlers.
func (b *EventBus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()
	log.Info().Msg("event bus stopped")
}

// StopCh returns a channel closed when the bus stops.
func (b *EventBus) StopCh() <-chan struct{} {
	return b.stopCh
}

// HandlerCount reports how many handlers are registered for one type.
func (b *EventBus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
