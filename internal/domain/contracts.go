package domain

import (
	"context"
	"time"
)

// Provider is the base contract every adapter implements: blocking chat
// completion plus identity. Optional capabilities are separate interfaces
// detected by type assertion (see Streamer, Embedder), so an adapter only
// carries the surfaces it genuinely supports and the orchestrator can ask
// "does this adapter stream?" without a boolean flag.
type Provider interface {
	// Complete sends a blocking completion request. Failures are reported
	// through the shared error taxonomy (*Error). Adapters never retry;
	// retrying is the orchestrator's concern.
	Complete(ctx context.Context, messages []Message, opts *ResolvedOptions) (*CompletionResponse, error)

	// Name returns the provider identifier.
	Name() string
}

// Streamer is the optional streaming capability. Adapters that implement
// it deliver the response as an ordered, finite, single-pass sequence of
// chunks; the channel closes after the done (or error) chunk. The channel
// is unbuffered: at most one chunk is materialized ahead of the consumer.
type Streamer interface {
	Provider
	Stream(ctx context.Context, messages []Message, opts *ResolvedOptions) (<-chan StreamChunk, error)
}

// Embedder is the optional embedding capability.
type Embedder interface {
	Provider
	Embed(ctx context.Context, inputs []string, opts *ResolvedOptions) (*EmbeddingResponse, error)
}

// ProviderRegistry manages configured providers and implements the
// documented selection hierarchy.
type ProviderRegistry interface {
	// SelectExplicit returns the provider registered under id. Fails with
	// KindProviderNotFound if absent, KindConfiguration if present but
	// inactive or missing a credential.
	SelectExplicit(id string) (Provider, *ProviderDescriptor, error)

	// SelectDefault returns the provider flagged default among usable
	// providers; fails with KindNoProviderAvailable if none.
	SelectDefault() (Provider, *ProviderDescriptor, error)

	// ByPriority returns usable providers in descending priority, ties
	// broken by registration order. This ordering is the fallback chain.
	ByPriority() []Provider

	// Select resolves a provider for the given options using the fixed
	// hierarchy: explicit id, then configured default, then highest
	// priority, then KindNoProviderAvailable.
	Select(opts *ResolvedOptions) (Provider, *ProviderDescriptor, error)
}

// ResponseCache is the content-addressed response cache consulted for
// deterministic call shapes. Get returns ErrCacheMiss when absent.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// CostCalculator estimates call cost from usage and model pricing.
type CostCalculator interface {
	Calculate(ctx context.Context, model string, usage Usage) (float64, error)
}

// UsageRecorder is the fire-and-forget usage sink notified after each
// completed call. Implementations must never fail the caller's request.
type UsageRecorder interface {
	Record(ctx context.Context, rec UsageRecord)
}

// UsageRecord is the payload handed to the usage recorder.
type UsageRecord struct {
	Feature  string // "completion", "embedding", "stream"
	Provider string
	Model    string
	Usage    Usage
	Duration time.Duration
}

// BeforeRequestEvent is published before dispatch. Listeners may rewrite
// Options; they cannot cancel the call.
type BeforeRequestEvent struct {
	Feature  string
	Provider string
	Messages []Message
	Options  *ResolvedOptions
}

// AfterResponseEvent is published after the call settles, whether it
// succeeded, failed, or was answered from cache. Completion calls populate
// Response and embedding calls populate Embedding; for streaming calls both
// are nil, as only incremental deltas are observable mid-stream.
type AfterResponseEvent struct {
	Feature   string
	Provider  string
	Response  *CompletionResponse
	Embedding *EmbeddingResponse
	Err       error
	Duration  time.Duration
	CacheHit  bool
}

// EventBus invokes extension listeners synchronously around every call.
// Listener failures are isolated: they are logged, never propagated.
type EventBus interface {
	PublishBefore(ctx context.Context, ev *BeforeRequestEvent)
	PublishAfter(ctx context.Context, ev *AfterResponseEvent)
}
