// Package anthropic provides the adapter for the Anthropic messages API.
// Anthropic authenticates with an x-api-key header (not a bearer token),
// carries the system prompt as a top-level field, and shapes responses as
// content blocks (content[0].text) rather than choices.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
	"github.com/emberhq/ember/internal/provider/sse"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	providerName   = "anthropic"
)

// Config contains Anthropic provider configuration.
type Config struct {
	APIKey      string `env:"ANTHROPIC_API_KEY"`
	BaseURL     string `env:"ANTHROPIC_BASE_URL"     envDefault:"https://api.anthropic.com"`
	Timeout     int    `env:"ANTHROPIC_TIMEOUT"      envDefault:"60"` // seconds
	RetryBudget int    `env:"ANTHROPIC_RETRY_BUDGET" envDefault:"2"`
	Priority    int    `env:"ANTHROPIC_PRIORITY"     envDefault:"40"`
}

// Adapter implements domain.Provider and domain.Streamer for Anthropic.
// It deliberately does not implement domain.Embedder: Anthropic exposes no
// embeddings endpoint.
type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAdapter creates an Anthropic adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// The HTTP client carries no timeout of its own; per-attempt deadlines
	// arrive via context so that streaming reads are not cut short.
	return &Adapter{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return providerName
}

// Complete sends a blocking completion request.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, opts *domain.ResolvedOptions) (*domain.CompletionResponse, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Anthropic API")

	req := a.toWireRequest(messages, opts, false)

	resp, err := a.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire messagesResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&wire); decodeErr != nil {
		return nil, domain.WrapError(domain.KindVendor, providerName,
			fmt.Errorf("failed to decode response: %w", decodeErr))
	}

	return a.toResponse(&wire), nil
}

// Stream sends a streaming completion request and decodes the SSE
// transport into ordered chunks.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts *domain.ResolvedOptions) (<-chan domain.StreamChunk, error) {
	req := a.toWireRequest(messages, opts, true)

	resp, err := a.send(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan domain.StreamChunk)
	go a.pumpSSE(ctx, resp, chunks)
	return chunks, nil
}

// send marshals and executes one HTTP request, mapping any non-2xx status
// into a typed error. The response body is left open for the caller.
func (a *Adapter) send(ctx context.Context, req messagesRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindVendor, providerName,
			fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.KindTransport, providerName, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.KindTimeout, providerName, err)
		}
		return nil, domain.WrapError(domain.KindTransport, providerName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, a.statusError(resp)
	}

	return resp, nil
}

// statusError maps a non-2xx response to the most specific taxonomy kind
// the status and body allow. A non-2xx status always becomes a typed
// error, never a zero-value success.
func (a *Adapter) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var wire errorResponse
	_ = json.Unmarshal(raw, &wire)

	message := wire.Error.Message
	if message == "" {
		message = fmt.Sprintf("vendor returned status %d", resp.StatusCode)
	}

	kind := domain.KindFromStatus(resp.StatusCode)
	// The body can be more specific than the status.
	if wire.Error.Type == "overloaded_error" {
		kind = domain.KindRateLimited
	}

	e := &domain.Error{
		Kind:       kind,
		Provider:   providerName,
		HTTPStatus: resp.StatusCode,
		Message:    message,
	}
	if kind == domain.KindRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return e
}

// pumpSSE decodes the SSE transport into domain chunks, in transport
// order, one event at a time.
func (a *Adapter) pumpSSE(ctx context.Context, resp *http.Response, chunks chan<- domain.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	decoder := sse.NewDecoder(resp.Body)

	var usage wireUsage
	finishReason := domain.FinishStop

	for {
		event, err := decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			a.yield(ctx, chunks, domain.StreamChunk{Err: domain.WrapError(domain.KindTransport, providerName, err)})
			return
		}

		switch event.Type {
		case "message_start":
			var start streamMessageStart
			if json.Unmarshal([]byte(event.Data), &start) == nil {
				usage.InputTokens = start.Message.Usage.InputTokens
			}

		case "content_block_delta":
			var delta streamDelta
			if json.Unmarshal([]byte(event.Data), &delta) != nil {
				continue
			}
			if delta.Delta.Text == "" {
				continue
			}
			if !a.yield(ctx, chunks, domain.StreamChunk{Delta: delta.Delta.Text}) {
				return
			}

		case "message_delta":
			var delta streamDelta
			if json.Unmarshal([]byte(event.Data), &delta) == nil {
				usage.OutputTokens = delta.Usage.OutputTokens
				if delta.Delta.StopReason != "" {
					finishReason = mapStopReason(delta.Delta.StopReason)
				}
			}

		case "message_stop":
			u := domain.NewUsage(usage.InputTokens, usage.OutputTokens)
			a.yield(ctx, chunks, domain.StreamChunk{
				Done:         true,
				FinishReason: finishReason,
				Usage:        &u,
			})
			return

		case "error":
			var wire errorResponse
			_ = json.Unmarshal([]byte(event.Data), &wire)
			a.yield(ctx, chunks, domain.StreamChunk{
				Err: domain.NewError(domain.KindVendor, providerName, wire.Error.Message),
			})
			return
		}
		// ping and content_block_start/stop events carry nothing we need.
	}
}

func (a *Adapter) yield(ctx context.Context, chunks chan<- domain.StreamChunk, chunk domain.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// toWireRequest converts uniform messages/options to the messages API
// shape. Consecutive roles are preserved as given: message order is the
// caller's contract.
func (a *Adapter) toWireRequest(messages []domain.Message, opts *domain.ResolvedOptions, stream bool) messagesRequest {
	req := messagesRequest{
		Model:       opts.Model,
		System:      opts.SystemPrompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: &opts.Temperature,
		TopP:        &opts.TopP,
		Stream:      stream,
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			// Anthropic takes the system prompt as a top-level field; the
			// last system message wins if options did not set one.
			if req.System == "" {
				req.System = msg.Content
			}
		case domain.RoleTool:
			req.Messages = append(req.Messages, wireMessage{
				Role: "user",
				Content: []contentPart{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		case domain.RoleAssistant:
			req.Messages = append(req.Messages, wireMessage{
				Role:    "assistant",
				Content: assistantParts(msg),
			})
		default:
			req.Messages = append(req.Messages, wireMessage{
				Role:    string(msg.Role),
				Content: toWireParts(msg),
			})
		}
	}

	for _, tool := range opts.Tools {
		schema := tool.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		req.Tools = append(req.Tools, wireTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	return req
}

// assistantParts renders an assistant turn. Prior tool calls are replayed
// as tool_use blocks so a following tool_result message references a call
// the vendor has seen.
func assistantParts(msg domain.Message) []contentPart {
	var parts []contentPart
	if msg.HasParts() {
		parts = toWireParts(msg)
	} else if msg.Content != "" || len(msg.ToolCalls) == 0 {
		parts = []contentPart{{Type: "text", Text: msg.Content}}
	}

	for _, tc := range msg.ToolCalls {
		input := map[string]any{}
		if tc.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Arguments), &input)
		}
		parts = append(parts, contentPart{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: input,
		})
	}
	return parts
}

func toWireParts(msg domain.Message) []contentPart {
	if !msg.HasParts() {
		return []contentPart{{Type: "text", Text: msg.Content}}
	}

	parts := make([]contentPart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case domain.PartImageURL:
			parts = append(parts, contentPart{
				Type:   "image",
				Source: &imageSource{Type: "url", URL: p.ImageURL},
			})
		default:
			parts = append(parts, contentPart{Type: "text", Text: p.Text})
		}
	}
	return parts
}

// toResponse converts a wire response to a domain response. Missing
// optional fields degrade to explicit zero values.
func (a *Adapter) toResponse(wire *messagesResponse) *domain.CompletionResponse {
	content := ""
	var toolCalls []domain.ToolCall

	for _, part := range wire.Content {
		switch part.Type {
		case "text":
			content += part.Text
		case "tool_use":
			args, _ := json.Marshal(part.Input)
			toolCalls = append(toolCalls, domain.ToolCall{
				ID:        part.ID,
				Name:      part.Name,
				Arguments: string(args),
			})
		}
	}

	return &domain.CompletionResponse{
		ID:           wire.ID,
		Model:        wire.Model,
		Provider:     providerName,
		Content:      content,
		FinishReason: mapStopReason(wire.StopReason),
		ToolCalls:    toolCalls,
		Usage:        domain.NewUsage(wire.Usage.InputTokens, wire.Usage.OutputTokens),
		FinishTime:   time.Now(),
	}
}

func mapStopReason(reason string) domain.FinishReason {
	switch reason {
	case "max_tokens":
		return domain.FinishLength
	case "tool_use":
		return domain.FinishToolCalls
	case "refusal":
		return domain.FinishContentFilter
	default:
		return domain.FinishStop
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
