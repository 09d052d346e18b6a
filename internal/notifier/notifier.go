// Package notifier contains the synchronous notification bus connecting the
// dispatch pipeline with its subscribers.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/golibs/errors"
)

// Handler handles the events of the dispatch pipeline.
type Handler interface {
	// HandleEvent handles a single event.  ev must not be nil.  Handlers
	// must ignore the events they are not interested in.
	HandleEvent(ctx context.Context, ev cblocker.Event) (err error)
}

// HandlerFunc is a function that implements the [Handler] interface.
type HandlerFunc func(ctx context.Context, ev cblocker.Event) (err error)

// type check
var _ Handler = HandlerFunc(nil)

// HandleEvent implements the [Handler] interface for HandlerFunc.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev cblocker.Event) (err error) {
	return f(ctx, ev)
}

// Publisher publishes the events of the dispatch pipeline.
type Publisher interface {
	// Publish sends ev to all subscribers.  ev must not be nil.  err is not
	// nil if any of the subscribers has failed to handle the event.
	Publish(ctx context.Context, ev cblocker.Event) (err error)
}

// EmptyPublisher is the [Publisher] that drops all events.
type EmptyPublisher struct{}

// type check
var _ Publisher = EmptyPublisher{}

// Publish implements the [Publisher] interface for EmptyPublisher.  It always
// returns nil.
func (EmptyPublisher) Publish(_ context.Context, _ cblocker.Event) (err error) {
	return nil
}

// Bus is a [Publisher] that calls its subscribers synchronously in the order
// of their subscription.  Handlers may publish events themselves.
type Bus struct {
	mu       *sync.RWMutex
	handlers []Handler
}

// New returns a new properly initialized *Bus.
func New() (b *Bus) {
	return &Bus{
		mu: &sync.RWMutex{},
	}
}

// Subscribe adds h to the subscribers of b.  h must not be nil.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
}

// type check
var _ Publisher = (*Bus)(nil)

// Publish implements the [Publisher] interface for *Bus.  All handlers are
// called even if some of them fail.
func (b *Bus) Publish(ctx context.Context, ev cblocker.Event) (err error) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	var errs []error
	for i, h := range handlers {
		hErr := h.HandleEvent(ctx, ev)
		if hErr != nil {
			errs = append(errs, fmt.Errorf("handler at index %d: %w", i, hErr))
		}
	}

	return errors.Join(errs...)
}
