// Package events provides the typed publish/subscribe bus the engine emits lifecycle
// events on. Subscribers register per event kind or for every kind.
package events

import (
	"context"
	"fmt"
	"sync"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

// Handler receives a published event. Handlers run synchronously on the publisher's
// goroutine and must not block for long.
type Handler func(ctx context.Context, ev domain.Event)

type subscription struct {
	id    uint64
	kinds map[domain.EventKind]bool // nil means every kind
	fn    Handler
}

// Bus is a synchronous fan-out event bus. The zero value is not usable; use NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger ports.Logger
}

// NewBus creates an empty bus. Panicking handlers are logged and skipped.
func NewBus(logger ports.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers fn for the given kinds, or for every kind when none are given.
// The returned function removes the subscription.
func (b *Bus) Subscribe(fn Handler, kinds ...domain.EventKind) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, fn: fn}
	if len(kinds) > 0 {
		sub.kinds = make(map[domain.EventKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every matching subscriber in registration order.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kinds == nil || s.kinds[ev.Kind()] {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		b.deliver(ctx, fn, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, fn Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Event handler panicked", map[string]interface{}{"event": ev.Kind()})
		}
	}()
	fn(ctx, ev)
}

// Recorder collects every event it sees. Useful for tests and for the CLI's dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Publish implements ports.EventPublisher.
func (r *Recorder) Publish(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(kind domain.EventKind) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) {}

var (
	_ ports.EventPublisher = (*Bus)(nil)
	_ ports.EventPublisher = (*Recorder)(nil)
	_ ports.EventPublisher = Nop{}
)
