// Package eventbus fans engine events out to renderers and observers.
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"thoughtstream/internal/domain"
)

type subscription struct {
	id      uint64
	handler domain.EventHandler
}

// Bus is an in-process, goroutine-safe event bus. Handlers run concurrently,
// so delivery order between two publishes is not guaranteed; snapshot
// consumers order by Snapshot.Seq.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]subscription
	allSubs []subscription
	latest  map[domain.EventType]domain.Event
	retain  map[domain.EventType]bool
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// New creates an event bus. Events of the retained types are remembered so
// that late subscribers can be primed with the most recent one.
func New(logger *slog.Logger, retained ...domain.EventType) *Bus {
	b := &Bus{
		typed:  make(map[domain.EventType][]subscription),
		latest: make(map[domain.EventType]domain.Event),
		retain: make(map[domain.EventType]bool, len(retained)),
		logger: logger,
	}
	for _, t := range retained {
		b.retain[t] = true
	}
	return b
}

// NewEvent builds an event with a JSON-encoded payload.
func NewEvent(eventType domain.EventType, payload any) (domain.Event, error) {
	ev := domain.Event{Type: eventType, Timestamp: time.Now()}
	if payload == nil {
		return ev, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ev, err
	}
	ev.Payload = raw
	return ev, nil
}

// Emit encodes payload and publishes it. Encoding failures are logged.
func (b *Bus) Emit(ctx context.Context, eventType domain.EventType, payload any) {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		b.logger.Error("event payload encode failed", "event", string(eventType), "error", err)
		return
	}
	b.Publish(ctx, ev)
}

// Publish fans out an event to matching typed subscribers and all-event subscribers.
// Each handler is invoked in its own goroutine. Panicking handlers are recovered.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	if b.retain[event.Type] {
		b.mu.Lock()
		b.latest[event.Type] = event
		b.mu.Unlock()
	}

	b.mu.RLock()
	typed := make([]subscription, len(b.typed[event.Type]))
	copy(typed, b.typed[event.Type])
	allSubs := make([]subscription, len(b.allSubs))
	copy(allSubs, b.allSubs)
	b.mu.RUnlock()

	for _, sub := range typed {
		b.dispatch(ctx, event, sub)
	}
	for _, sub := range allSubs {
		b.dispatch(ctx, event, sub)
	}
}

// Latest returns the most recent retained event of the given type.
func (b *Bus) Latest(eventType domain.EventType) (domain.Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.latest[eventType]
	return ev, ok
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event, sub subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event", string(event.Type),
					"panic", r,
				)
			}
		}()
		sub.handler(ctx, event)
	}()
}

// Subscribe registers a handler for a specific event type. If the type is
// retained and an event has already been published, the handler receives it
// immediately. Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	last, primed := b.latest[eventType]
	b.mu.Unlock()

	if primed && !b.closed.Load() {
		b.dispatch(context.Background(), last, sub)
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.typed[eventType]
		for i, s := range subs {
			if s.id == id {
				b.typed[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.allSubs {
			if s.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

// Close prevents new publishes and waits for all in-flight handlers to finish.
// Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}
