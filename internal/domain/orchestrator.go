package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emberhq/ember/internal/observability"
)

const (
	FeatureCompletion = "completion"
	FeatureEmbedding  = "embedding"
	FeatureStream     = "stream"

	backoffBase = 200 * time.Millisecond
	backoffCap  = 5 * time.Second

	defaultRetryBudget = 2
)

// OrchestratorConfig carries the orchestrator's own tunables. Per-provider
// timeout and retry budget live on the ProviderDescriptor.
type OrchestratorConfig struct {
	Defaults OptionDefaults

	// CacheTTL bounds the lifetime of cached responses.
	CacheTTL time.Duration

	// StreamIdleTimeout bounds both time-to-first-chunk and inter-chunk
	// silence; exceeding either aborts the stream at its current position.
	StreamIdleTimeout time.Duration
}

// Orchestrator is the single entry point for completion, streaming, and
// embedding calls. It is stateless across calls: the registry and cache
// are the only shared resources, and both are safe for concurrent use.
type Orchestrator struct {
	registry ProviderRegistry
	catalog  *ModelCatalog
	costs    CostCalculator
	cache    ResponseCache // nil disables caching
	events   EventBus      // nil disables extension events
	usage    UsageRecorder // nil disables usage recording
	cfg      OrchestratorConfig
}

// NewOrchestrator creates the orchestrator (DI constructor).
func NewOrchestrator(
	registry ProviderRegistry,
	catalog *ModelCatalog,
	costs CostCalculator,
	cache ResponseCache,
	events EventBus,
	usage UsageRecorder,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.Defaults == (OptionDefaults{}) {
		cfg.Defaults = StandardDefaults()
	}
	return &Orchestrator{
		registry: registry,
		catalog:  catalog,
		costs:    costs,
		cache:    cache,
		events:   events,
		usage:    usage,
		cfg:      cfg,
	}
}

// Complete handles a blocking completion request end to end: option
// resolution, provider selection, extension events, cache, dispatch with
// retries, error normalization, cost annotation.
func (o *Orchestrator) Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResponse, error) {
	if len(messages) == 0 {
		return nil, NewError(KindConfiguration, "", "messages cannot be empty")
	}

	provider, desc, resolved, err := o.prepare(ctx, FeatureCompletion, messages, opts)
	if err != nil {
		return nil, err
	}

	if capErr := o.checkRequestShape(desc.ID, messages, resolved); capErr != nil {
		o.publishAfter(ctx, FeatureCompletion, desc.ID, nil, capErr, 0, false)
		return nil, capErr
	}

	logger := observability.FromContext(ctx)
	start := time.Now()

	// Cache lookup. Only deterministic call shapes are cacheable; the
	// policy is fixed, not negotiable by callers.
	cacheable := o.cache != nil && resolved.Temperature == 0 && !resolved.HasTools()
	cacheKey := ""
	if cacheable {
		cacheKey = CacheKey(FeatureCompletion, desc.ID, resolved.Model, Fingerprint(messages, resolved))
		if resp := o.cachedCompletion(ctx, cacheKey); resp != nil {
			logger.Info("completion cache hit",
				observability.String("provider", desc.ID),
				observability.String("model", resolved.Model))
			o.publishAfter(ctx, FeatureCompletion, desc.ID, resp, nil, time.Since(start), true)
			o.recordUsage(ctx, FeatureCompletion, desc.ID, resolved.Model, resp.Usage, time.Since(start))
			return resp, nil
		}
	}

	var resp *CompletionResponse
	dispatchErr := o.withRetries(ctx, desc, func(attemptCtx context.Context) error {
		var callErr error
		resp, callErr = provider.Complete(attemptCtx, messages, resolved)
		return callErr
	})
	if dispatchErr != nil {
		logger.Error("completion failed",
			observability.String("provider", desc.ID),
			observability.Error(dispatchErr))
		o.publishAfter(ctx, FeatureCompletion, desc.ID, nil, dispatchErr, time.Since(start), false)
		return nil, dispatchErr
	}

	cost, _ := o.costs.Calculate(ctx, resolved.Model, resp.Usage)
	resp.Usage.Cost = cost

	elapsed := time.Since(start)
	o.publishAfter(ctx, FeatureCompletion, desc.ID, resp, nil, elapsed, false)
	o.recordUsage(ctx, FeatureCompletion, desc.ID, resolved.Model, resp.Usage, elapsed)

	if cacheable {
		o.storeCache(ctx, cacheKey, resp)
	}

	return resp, nil
}

// Stream handles a streaming completion request. The returned channel is a
// finite, single-pass, forward-only sequence; re-iterating requires a new
// call. Streaming responses are never cached.
func (o *Orchestrator) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	if len(messages) == 0 {
		return nil, NewError(KindConfiguration, "", "messages cannot be empty")
	}

	provider, desc, resolved, err := o.prepare(ctx, FeatureStream, messages, opts)
	if err != nil {
		return nil, err
	}

	streamer, ok := provider.(Streamer)
	if !ok {
		capErr := NewError(KindConfiguration, desc.ID,
			"provider does not support the streaming capability")
		o.publishAfter(ctx, FeatureStream, desc.ID, nil, capErr, 0, false)
		return nil, capErr
	}

	if capErr := o.checkRequestShape(desc.ID, messages, resolved); capErr != nil {
		o.publishAfter(ctx, FeatureStream, desc.ID, nil, capErr, 0, false)
		return nil, capErr
	}

	start := time.Now()

	// Establishment runs under the attempt deadline like any other
	// dispatch, but the stream must outlive the attempt. Each attempt gets
	// its own cancelable stream context; the deadline propagates into it
	// only until the adapter returns, after which the idle watchdog is the
	// stream's only timer and cancels it to abort the network read.
	var upstream <-chan StreamChunk
	var streamCancel context.CancelFunc
	dispatchErr := o.withRetries(ctx, desc, func(attemptCtx context.Context) error {
		streamCtx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(attemptCtx, cancel)

		up, callErr := streamer.Stream(streamCtx, messages, resolved)

		if !stop() && callErr == nil {
			// The deadline fired while the adapter was returning.
			callErr = attemptCtx.Err()
		}
		if callErr != nil {
			cancel()
			return callErr
		}

		upstream = up
		streamCancel = cancel
		return nil
	})
	if dispatchErr != nil {
		o.publishAfter(ctx, FeatureStream, desc.ID, nil, dispatchErr, time.Since(start), false)
		return nil, dispatchErr
	}

	out := make(chan StreamChunk)
	go o.pumpStream(ctx, streamCancel, desc, resolved, upstream, out, start)
	return out, nil
}

// Embed handles an embedding request. Embeddings are deterministic and are
// always cacheable.
func (o *Orchestrator) Embed(ctx context.Context, inputs []string, opts Options) (*EmbeddingResponse, error) {
	if len(inputs) == 0 {
		return nil, NewError(KindConfiguration, "", "inputs cannot be empty")
	}

	provider, desc, resolved, err := o.prepare(ctx, FeatureEmbedding, nil, opts)
	if err != nil {
		return nil, err
	}

	embedder, ok := provider.(Embedder)
	if !ok {
		capErr := NewError(KindConfiguration, desc.ID,
			"provider does not support the embedding capability")
		o.publishAfterEmbed(ctx, desc.ID, nil, capErr, 0, false)
		return nil, capErr
	}

	start := time.Now()

	cacheKey := ""
	if o.cache != nil {
		cacheKey = CacheKey(FeatureEmbedding, desc.ID, resolved.Model, EmbeddingFingerprint(inputs, resolved))
		if resp := o.cachedEmbedding(ctx, cacheKey); resp != nil {
			o.publishAfterEmbed(ctx, desc.ID, resp, nil, time.Since(start), true)
			o.recordUsage(ctx, FeatureEmbedding, desc.ID, resolved.Model, resp.Usage, time.Since(start))
			return resp, nil
		}
	}

	var resp *EmbeddingResponse
	dispatchErr := o.withRetries(ctx, desc, func(attemptCtx context.Context) error {
		var callErr error
		resp, callErr = embedder.Embed(attemptCtx, inputs, resolved)
		return callErr
	})
	if dispatchErr != nil {
		o.publishAfterEmbed(ctx, desc.ID, nil, dispatchErr, time.Since(start), false)
		return nil, dispatchErr
	}

	cost, _ := o.costs.Calculate(ctx, resolved.Model, resp.Usage)
	resp.Usage.Cost = cost

	elapsed := time.Since(start)
	o.publishAfterEmbed(ctx, desc.ID, resp, nil, elapsed, false)
	o.recordUsage(ctx, FeatureEmbedding, desc.ID, resolved.Model, resp.Usage, elapsed)

	if o.cache != nil {
		if data, marshalErr := json.Marshal(resp); marshalErr == nil {
			if setErr := o.cache.Set(ctx, cacheKey, data, o.cfg.CacheTTL); setErr != nil {
				observability.FromContext(ctx).Warn("failed to store embedding in cache",
					observability.Error(setErr))
			}
		}
	}

	return resp, nil
}

// prepare resolves options, selects a provider, fills in the model default,
// and publishes the before-request event. A listener that rewrites the
// provider id triggers explicit re-selection.
func (o *Orchestrator) prepare(
	ctx context.Context,
	feature string,
	messages []Message,
	opts Options,
) (Provider, *ProviderDescriptor, *ResolvedOptions, error) {
	resolved := opts.Resolve(o.cfg.Defaults)

	provider, desc, err := o.registry.Select(resolved)
	if err != nil {
		return nil, nil, nil, err
	}
	resolved.Provider = desc.ID
	if resolved.Model == "" {
		resolved.Model = o.catalog.DefaultModel(desc.ID)
	}

	if o.events != nil {
		o.events.PublishBefore(ctx, &BeforeRequestEvent{
			Feature:  feature,
			Provider: desc.ID,
			Messages: messages,
			Options:  resolved,
		})

		if resolved.Provider != desc.ID {
			provider, desc, err = o.registry.SelectExplicit(resolved.Provider)
			if err != nil {
				return nil, nil, nil, err
			}
			if resolved.Model == "" {
				resolved.Model = o.catalog.DefaultModel(desc.ID)
			}
		}
	}

	return provider, desc, resolved, nil
}

// checkRequestShape validates data-driven capabilities (vision parts, tool
// definitions, JSON mode) against the model catalog. Using an unsupported
// capability is a programming error surfaced here, never a silent
// downgrade. Models absent from the catalog are not constrained.
func (o *Orchestrator) checkRequestShape(providerID string, messages []Message, resolved *ResolvedOptions) error {
	if _, known := o.catalog.Get(resolved.Model); !known {
		return nil
	}

	hasParts := false
	for _, m := range messages {
		if m.HasParts() {
			hasParts = true
			break
		}
	}

	if hasParts && !o.catalog.Supports(resolved.Model, CapVision) {
		return NewError(KindConfiguration, providerID,
			fmt.Sprintf("model %s does not support the vision capability", resolved.Model))
	}
	if resolved.HasTools() && !o.catalog.Supports(resolved.Model, CapTools) {
		return NewError(KindConfiguration, providerID,
			fmt.Sprintf("model %s does not support the tools capability", resolved.Model))
	}
	if resolved.ResponseFormat == FormatJSON && !o.catalog.Supports(resolved.Model, CapJSONMode) {
		return NewError(KindConfiguration, providerID,
			fmt.Sprintf("model %s does not support the json_mode capability", resolved.Model))
	}

	return nil
}

// withRetries dispatches fn under the provider's timeout and retry budget.
// The retry counter is scoped to this call alone. A deadline that fires
// locally is re-kinded to Timeout regardless of what the transport
// reported.
func (o *Orchestrator) withRetries(ctx context.Context, desc *ProviderDescriptor, fn func(context.Context) error) error {
	budget := desc.RetryBudget
	if budget < 0 {
		budget = defaultRetryBudget
	}

	var lastErr error
	for attempt := 0; attempt <= budget; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if desc.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, desc.Timeout)
		}

		err := fn(attemptCtx)
		deadlineFired := attemptCtx.Err() != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = o.normalizeError(desc.ID, err, deadlineFired)
		if !Retryable(lastErr) || attempt == budget {
			break
		}

		if waitErr := sleepBackoff(ctx, attempt, retryAfterHint(lastErr)); waitErr != nil {
			return o.normalizeError(desc.ID, waitErr, false)
		}
	}

	return lastErr
}

// normalizeError guarantees every terminal failure is a taxonomy error
// carrying the provider id.
func (o *Orchestrator) normalizeError(providerID string, err error, deadlineFired bool) error {
	if deadlineFired || errors.Is(err, context.DeadlineExceeded) {
		e := WrapError(KindTimeout, providerID, err)
		e.Message = "deadline exceeded"
		return e
	}

	if e := AsError(err); e != nil {
		if e.Provider == "" {
			e.Provider = providerID
		}
		return e
	}

	return WrapError(KindVendor, providerID, err)
}

func (o *Orchestrator) cachedCompletion(ctx context.Context, key string) *CompletionResponse {
	data, err := o.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			observability.FromContext(ctx).Warn("cache get failed, continuing without cache",
				observability.Error(err))
		}
		return nil
	}

	var resp CompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		observability.FromContext(ctx).Warn("failed to decode cached completion",
			observability.Error(err))
		return nil
	}
	return &resp
}

func (o *Orchestrator) cachedEmbedding(ctx context.Context, key string) *EmbeddingResponse {
	data, err := o.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			observability.FromContext(ctx).Warn("cache get failed, continuing without cache",
				observability.Error(err))
		}
		return nil
	}

	var resp EmbeddingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}
	return &resp
}

func (o *Orchestrator) storeCache(ctx context.Context, key string, resp *CompletionResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if setErr := o.cache.Set(ctx, key, data, o.cfg.CacheTTL); setErr != nil {
		observability.FromContext(ctx).Warn("failed to store in cache",
			observability.Error(setErr))
	}
}

func (o *Orchestrator) publishAfter(
	ctx context.Context,
	feature, providerID string,
	resp *CompletionResponse,
	err error,
	elapsed time.Duration,
	cacheHit bool,
) {
	if o.events == nil {
		return
	}
	o.events.PublishAfter(ctx, &AfterResponseEvent{
		Feature:  feature,
		Provider: providerID,
		Response: resp,
		Err:      err,
		Duration: elapsed,
		CacheHit: cacheHit,
	})
}

func (o *Orchestrator) publishAfterEmbed(
	ctx context.Context,
	providerID string,
	resp *EmbeddingResponse,
	err error,
	elapsed time.Duration,
	cacheHit bool,
) {
	if o.events == nil {
		return
	}
	o.events.PublishAfter(ctx, &AfterResponseEvent{
		Feature:   FeatureEmbedding,
		Provider:  providerID,
		Embedding: resp,
		Err:       err,
		Duration:  elapsed,
		CacheHit:  cacheHit,
	})
}

func (o *Orchestrator) recordUsage(ctx context.Context, feature, providerID, model string, usage Usage, elapsed time.Duration) {
	if o.usage == nil {
		return
	}
	o.usage.Record(ctx, UsageRecord{
		Feature:  feature,
		Provider: providerID,
		Model:    model,
		Usage:    usage,
		Duration: elapsed,
	})
}

// pumpStream forwards chunks from the adapter to the consumer, enforcing
// the idle timeout on time-to-first-chunk and on every inter-chunk gap.
// Partial content already yielded is never retracted: a timeout surfaces as
// a final error chunk at the stream's current position.
func (o *Orchestrator) pumpStream(
	ctx context.Context,
	cancel context.CancelFunc,
	desc *ProviderDescriptor,
	resolved *ResolvedOptions,
	upstream <-chan StreamChunk,
	out chan<- StreamChunk,
	start time.Time,
) {
	defer close(out)
	defer cancel()

	idle := o.cfg.StreamIdleTimeout
	var timer *time.Timer
	var timeout <-chan time.Time
	if idle > 0 {
		timer = time.NewTimer(idle)
		defer timer.Stop()
		timeout = timer.C
	}

	var finalUsage Usage
	var streamErr error

	for {
		select {
		case chunk, ok := <-upstream:
			if !ok {
				o.finishStream(ctx, desc, resolved, finalUsage, streamErr, start)
				return
			}

			if timer != nil {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(idle)
			}

			if chunk.Err != nil {
				streamErr = o.normalizeError(desc.ID, chunk.Err, false)
				chunk.Err = streamErr
			}
			if chunk.Usage != nil {
				finalUsage = *chunk.Usage
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				streamErr = o.normalizeError(desc.ID, ctx.Err(), false)
				o.finishStream(ctx, desc, resolved, finalUsage, streamErr, start)
				return
			}

			if chunk.Done || chunk.Err != nil {
				o.finishStream(ctx, desc, resolved, finalUsage, streamErr, start)
				return
			}

		case <-timeout:
			// Abort the underlying network read, then tell the consumer.
			cancel()
			streamErr = NewError(KindTimeout, desc.ID, "stream idle timeout exceeded")
			select {
			case out <- StreamChunk{Err: streamErr}:
			case <-ctx.Done():
			}
			o.finishStream(ctx, desc, resolved, finalUsage, streamErr, start)
			return

		case <-ctx.Done():
			streamErr = o.normalizeError(desc.ID, ctx.Err(), false)
			o.finishStream(ctx, desc, resolved, finalUsage, streamErr, start)
			return
		}
	}
}

func (o *Orchestrator) finishStream(
	ctx context.Context,
	desc *ProviderDescriptor,
	resolved *ResolvedOptions,
	usage Usage,
	streamErr error,
	start time.Time,
) {
	elapsed := time.Since(start)
	o.publishAfter(ctx, FeatureStream, desc.ID, nil, streamErr, elapsed, false)
	if streamErr == nil {
		o.recordUsage(ctx, FeatureStream, desc.ID, resolved.Model, usage, elapsed)
	}
}

func retryAfterHint(err error) time.Duration {
	if e := AsError(err); e != nil {
		return e.RetryAfter
	}
	return 0
}

// sleepBackoff waits for the vendor's retry-after hint, or an exponential
// backoff when no hint is present. Cancellation wins over the wait.
func sleepBackoff(ctx context.Context, attempt int, hint time.Duration) error {
	wait := hint
	if wait <= 0 {
		wait = backoffBase << attempt
		if wait > backoffCap {
			wait = backoffCap
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
