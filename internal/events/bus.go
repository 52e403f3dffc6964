// Package events implements the extension event bus: synchronous listener
// invocation before each request (listeners may rewrite the resolved
// options) and after each response (read-only outcome). Listener failures
// are isolated and logged; they never abort the caller's request, and
// cancellation of a call from a listener is by design not possible.
package events

import (
	"context"
	"sync"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
)

// BeforeRequestListener observes (and may rewrite) the resolved options of
// an outgoing call.
type BeforeRequestListener func(ctx context.Context, ev *domain.BeforeRequestEvent)

// AfterResponseListener observes the outcome of a settled call.
type AfterResponseListener func(ctx context.Context, ev *domain.AfterResponseEvent)

// Bus is a synchronous, in-process listener registry implementing
// domain.EventBus. Listeners are registered at startup; publishing is safe
// for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	before []BeforeRequestListener
	after  []AfterResponseListener
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		mu:     sync.RWMutex{},
		before: nil,
		after:  nil,
	}
}

// OnBeforeRequest registers a before-request listener.
func (b *Bus) OnBeforeRequest(listener BeforeRequestListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.before = append(b.before, listener)
}

// OnAfterResponse registers an after-response listener.
func (b *Bus) OnAfterResponse(listener AfterResponseListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.after = append(b.after, listener)
}

// PublishBefore invokes every before-request listener in registration
// order. A panicking listener is logged and skipped.
func (b *Bus) PublishBefore(ctx context.Context, ev *domain.BeforeRequestEvent) {
	b.mu.RLock()
	listeners := b.before
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.invokeBefore(ctx, listener, ev)
	}
}

// PublishAfter invokes every after-response listener in registration order.
func (b *Bus) PublishAfter(ctx context.Context, ev *domain.AfterResponseEvent) {
	b.mu.RLock()
	listeners := b.after
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.invokeAfter(ctx, listener, ev)
	}
}

func (b *Bus) invokeBefore(ctx context.Context, listener BeforeRequestListener, ev *domain.BeforeRequestEvent) {
	defer func() {
		if r := recover(); r != nil {
			observability.FromContext(ctx).Warn("before-request listener panicked",
				observability.String("feature", ev.Feature))
		}
	}()
	listener(ctx, ev)
}

func (b *Bus) invokeAfter(ctx context.Context, listener AfterResponseListener, ev *domain.AfterResponseEvent) {
	defer func() {
		if r := recover(); r != nil {
			observability.FromContext(ctx).Warn("after-response listener panicked",
				observability.String("feature", ev.Feature))
		}
	}()
	listener(ctx, ev)
}
