// Package openai provides the adapter for OpenAI-dialect APIs using the
// official SDK. It translates uniform messages/options into SDK parameters
// and SDK responses/errors back into domain objects. The same adapter
// serves every OpenAI-compatible vendor (Azure, OpenRouter, Groq, Mistral,
// Ollama) through dialect configuration.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
)

// Adapter implements domain.Provider, domain.Streamer, and domain.Embedder
// for OpenAI-dialect vendors.
type Adapter struct {
	client openai.Client
	name   string
}

// NewAdapter creates an OpenAI-dialect adapter. The SDK's internal retries
// are disabled: retrying is the orchestrator's concern.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	name := cfg.Name
	if name == "" {
		name = string(domain.DialectOpenAI)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}

	if baseURL := cfg.resolveBaseURL(); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}
	if cfg.Dialect == domain.DialectAzure {
		// Azure authenticates with an api-key header and versions via query.
		opts = append(opts,
			option.WithHeader("api-key", cfg.APIKey),
			option.WithQueryAdd("api-version", cfg.AzureAPIVersion),
		)
	}

	return &Adapter{
		client: openai.NewClient(opts...),
		name:   name,
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return a.name
}

// Complete sends a blocking completion request.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, opts *domain.ResolvedOptions) (*domain.CompletionResponse, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI-dialect API")

	params := a.toParams(messages, opts)

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.mapError(err)
	}

	logger.Debug("OpenAI-dialect call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return a.toResponse(resp), nil
}

// Stream sends a streaming completion request. Chunks are delivered in
// transport order on an unbuffered channel; the channel closes after the
// done (or error) chunk.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts *domain.ResolvedOptions) (<-chan domain.StreamChunk, error) {
	params := a.toParams(messages, opts)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, a.mapError(err)
	}

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)
		defer stream.Close()

		var finishReason domain.FinishReason
		var usage *domain.Usage

		for stream.Next() {
			chunk := stream.Current()

			if chunk.Usage.TotalTokens > 0 {
				u := domain.NewUsage(int(chunk.Usage.PromptTokens), int(chunk.Usage.CompletionTokens))
				usage = &u
			}

			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				finishReason = mapFinishReason(choice.FinishReason)
				continue
			}
			if choice.Delta.Content == "" {
				continue
			}

			select {
			case chunks <- domain.StreamChunk{Delta: choice.Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			select {
			case chunks <- domain.StreamChunk{Err: a.mapError(err)}:
			case <-ctx.Done():
			}
			return
		}

		if finishReason == "" {
			finishReason = domain.FinishStop
		}
		select {
		case chunks <- domain.StreamChunk{Done: true, FinishReason: finishReason, Usage: usage}:
		case <-ctx.Done():
		}
	}()

	return chunks, nil
}

// Embed generates embeddings for the inputs, one vector per input in input
// order.
func (a *Adapter) Embed(ctx context.Context, inputs []string, opts *domain.ResolvedOptions) (*domain.EmbeddingResponse, error) {
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(opts.Model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, a.mapError(err)
	}

	vectors := make([][]float64, len(resp.Data))
	for _, item := range resp.Data {
		if int(item.Index) < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}

	return &domain.EmbeddingResponse{
		Vectors:  vectors,
		Model:    resp.Model,
		Provider: a.name,
		Usage:    domain.NewUsage(int(resp.Usage.PromptTokens), 0),
	}, nil
}

// toParams converts uniform messages/options to SDK parameters.
func (a *Adapter) toParams(messages []domain.Message, opts *domain.ResolvedOptions) openai.ChatCompletionNewParams {
	sdkMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)

	if opts.SystemPrompt != "" {
		sdkMessages = append(sdkMessages, openai.SystemMessage(opts.SystemPrompt))
	}

	for _, msg := range messages {
		sdkMessages = append(sdkMessages, toSDKMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(opts.Model),
		Messages:         sdkMessages,
		Temperature:      openai.Float(opts.Temperature),
		TopP:             openai.Float(opts.TopP),
		FrequencyPenalty: openai.Float(opts.FrequencyPenalty),
		PresencePenalty:  openai.Float(opts.PresencePenalty),
		MaxTokens:        openai.Int(int64(opts.MaxTokens)),
	}

	for _, tool := range opts.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Parameters),
			},
		})
	}

	if opts.ResponseFormat == domain.FormatJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params
}

func toSDKMessage(msg domain.Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case domain.RoleSystem:
		return openai.SystemMessage(msg.Content)
	case domain.RoleAssistant:
		return assistantSDKMessage(msg)
	case domain.RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID)
	case domain.RoleUser:
		if msg.HasParts() {
			return openai.UserMessage(toSDKParts(msg.Parts))
		}
		return openai.UserMessage(msg.Content)
	default:
		return openai.UserMessage(msg.Content)
	}
}

// assistantSDKMessage renders an assistant turn. Prior tool calls are
// replayed as tool_calls entries so a following tool-role result message
// references a call the vendor has seen.
func assistantSDKMessage(msg domain.Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}

	assistant := openai.ChatCompletionAssistantMessageParam{
		ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls)),
	}
	if msg.Content != "" {
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(msg.Content),
		}
	}
	for _, tc := range msg.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func toSDKParts(parts []domain.Part) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case domain.PartImageURL:
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: p.ImageURL,
			}))
		default:
			out = append(out, openai.TextContentPart(p.Text))
		}
	}
	return out
}

// toResponse converts an SDK response to a domain response. Missing
// optional fields degrade to explicit zero values.
func (a *Adapter) toResponse(resp *openai.ChatCompletion) *domain.CompletionResponse {
	content := ""
	finishReason := domain.FinishStop
	var toolCalls []domain.ToolCall

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		content = choice.Message.Content
		finishReason = mapFinishReason(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			toolCalls = append(toolCalls, domain.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}

	return &domain.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Provider:     a.name,
		Content:      content,
		FinishReason: finishReason,
		ToolCalls:    toolCalls,
		Usage:        domain.NewUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens)),
		FinishTime:   time.Now(),
	}
}

func mapFinishReason(reason string) domain.FinishReason {
	switch reason {
	case "length":
		return domain.FinishLength
	case "content_filter":
		return domain.FinishContentFilter
	case "tool_calls", "function_call":
		return domain.FinishToolCalls
	default:
		return domain.FinishStop
	}
}

// mapError translates SDK failures into the shared taxonomy.
func (a *Adapter) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := &domain.Error{
			Kind:       domain.KindFromStatus(apiErr.StatusCode),
			Provider:   a.name,
			HTTPStatus: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
		if e.Message == "" {
			e.Message = fmt.Sprintf("vendor returned status %d", apiErr.StatusCode)
		}
		if apiErr.StatusCode == 429 && apiErr.Response != nil {
			e.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.KindTimeout, a.name, err)
	}

	return domain.WrapError(domain.KindTransport, a.name, err)
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
