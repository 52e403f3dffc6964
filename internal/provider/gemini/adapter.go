// Package gemini provides the adapter for the Google Gemini API. Gemini
// authenticates with the API key in a header (not a bearer token), names
// roles user/model instead of user/assistant, and shapes responses as
// candidates[0].content.parts. The adapter implements completion and
// embedding; it intentionally does not implement domain.Streamer, so the
// orchestrator's capability detection routes streaming calls elsewhere.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	providerName   = "gemini"
)

// Config contains Gemini provider configuration.
type Config struct {
	APIKey      string `env:"GEMINI_API_KEY"`
	BaseURL     string `env:"GEMINI_BASE_URL"     envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout     int    `env:"GEMINI_TIMEOUT"      envDefault:"60"` // seconds
	RetryBudget int    `env:"GEMINI_RETRY_BUDGET" envDefault:"2"`
	Priority    int    `env:"GEMINI_PRIORITY"     envDefault:"30"`
}

// Adapter implements domain.Provider and domain.Embedder for Gemini.
type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAdapter creates a Gemini adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

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
	logger.Debug("calling Gemini API")

	wire := a.toWireRequest(messages, opts)
	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, opts.Model)

	var resp generateResponse
	if err := a.post(ctx, url, wire, &resp); err != nil {
		return nil, err
	}

	return a.toResponse(&resp, opts.Model), nil
}

// Embed generates embeddings via batchEmbedContents, one vector per input
// in input order.
func (a *Adapter) Embed(ctx context.Context, inputs []string, opts *domain.ResolvedOptions) (*domain.EmbeddingResponse, error) {
	req := embedRequest{Requests: make([]embedItem, 0, len(inputs))}
	for _, input := range inputs {
		req.Requests = append(req.Requests, embedItem{
			Model:   "models/" + opts.Model,
			Content: wireContent{Parts: []wirePart{{Text: input}}},
		})
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", a.baseURL, opts.Model)

	var resp embedResponse
	if err := a.post(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	vectors := make([][]float64, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		vectors = append(vectors, e.Values)
	}

	// Gemini reports no token usage for embeddings; degrade to zero counts
	// rather than inventing numbers.
	return &domain.EmbeddingResponse{
		Vectors:  vectors,
		Model:    opts.Model,
		Provider: providerName,
		Usage:    domain.NewUsage(0, 0),
	}, nil
}

// post executes one JSON request/response cycle, mapping any non-2xx
// status into a typed error.
func (a *Adapter) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.KindVendor, providerName,
			fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.WrapError(domain.KindTransport, providerName, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.WrapError(domain.KindTimeout, providerName, err)
		}
		return domain.WrapError(domain.KindTransport, providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError(resp)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return domain.WrapError(domain.KindVendor, providerName,
			fmt.Errorf("failed to decode response: %w", decodeErr))
	}
	return nil
}

func (a *Adapter) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var wire errorResponse
	_ = json.Unmarshal(raw, &wire)

	message := wire.Error.Message
	if message == "" {
		message = fmt.Sprintf("vendor returned status %d", resp.StatusCode)
	}

	return &domain.Error{
		Kind:       domain.KindFromStatus(resp.StatusCode),
		Provider:   providerName,
		HTTPStatus: resp.StatusCode,
		Message:    message,
	}
}

// toWireRequest converts uniform messages/options to the generateContent
// shape, preserving message order.
func (a *Adapter) toWireRequest(messages []domain.Message, opts *domain.ResolvedOptions) generateRequest {
	req := generateRequest{
		GenerationConfig: generationConfig{
			Temperature:     &opts.Temperature,
			TopP:            &opts.TopP,
			MaxOutputTokens: opts.MaxTokens,
		},
	}

	if opts.ResponseFormat == domain.FormatJSON {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	if opts.SystemPrompt != "" {
		req.SystemInstruction = &wireContent{Parts: []wirePart{{Text: opts.SystemPrompt}}}
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			if req.SystemInstruction == nil {
				req.SystemInstruction = &wireContent{Parts: []wirePart{{Text: msg.Content}}}
			}
		case domain.RoleTool:
			req.Contents = append(req.Contents, wireContent{
				Role: "user",
				Parts: []wirePart{{FunctionResp: &functionResponse{
					Name:     msg.Name,
					Response: map[string]any{"content": msg.Content},
				}}},
			})
		case domain.RoleAssistant:
			req.Contents = append(req.Contents, wireContent{
				Role:  "model",
				Parts: assistantWireParts(msg),
			})
		default:
			req.Contents = append(req.Contents, wireContent{
				Role:  mapRole(msg.Role),
				Parts: toWireParts(msg),
			})
		}
	}

	if len(opts.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(opts.Tools))
		for _, tool := range opts.Tools {
			decls = append(decls, functionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		req.Tools = []wireTools{{FunctionDeclarations: decls}}
	}

	return req
}

func mapRole(role domain.Role) string {
	if role == domain.RoleAssistant {
		return "model"
	}
	return "user"
}

// assistantWireParts renders a model turn. Prior tool calls are replayed
// as functionCall parts so a following functionResponse refers to a call
// the vendor has seen.
func assistantWireParts(msg domain.Message) []wirePart {
	var parts []wirePart
	if msg.HasParts() {
		parts = toWireParts(msg)
	} else if msg.Content != "" || len(msg.ToolCalls) == 0 {
		parts = []wirePart{{Text: msg.Content}}
	}

	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
		}
		parts = append(parts, wirePart{FunctionCall: &functionCall{
			Name: tc.Name,
			Args: args,
		}})
	}
	return parts
}

func toWireParts(msg domain.Message) []wirePart {
	if !msg.HasParts() {
		return []wirePart{{Text: msg.Content}}
	}

	parts := make([]wirePart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case domain.PartImageURL:
			parts = append(parts, wirePart{FileData: &fileData{FileURI: p.ImageURL}})
		default:
			parts = append(parts, wirePart{Text: p.Text})
		}
	}
	return parts
}

// toResponse converts a wire response to a domain response. A response
// with no candidates degrades to empty content, never an error: missing
// optional fields are explicit zero values by contract.
func (a *Adapter) toResponse(wire *generateResponse, model string) *domain.CompletionResponse {
	content := ""
	finishReason := domain.FinishStop
	var toolCalls []domain.ToolCall

	if len(wire.Candidates) > 0 {
		cand := wire.Candidates[0]
		finishReason = mapFinishReason(cand.FinishReason)
		for _, part := range cand.Content.Parts {
			content += part.Text
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, domain.ToolCall{
					ID:        part.FunctionCall.Name,
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			}
		}
		if len(toolCalls) > 0 && finishReason == domain.FinishStop {
			finishReason = domain.FinishToolCalls
		}
	}

	respModel := wire.ModelVersion
	if respModel == "" {
		respModel = model
	}

	return &domain.CompletionResponse{
		ID:           "",
		Model:        respModel,
		Provider:     providerName,
		Content:      content,
		FinishReason: finishReason,
		ToolCalls:    toolCalls,
		Usage:        domain.NewUsage(wire.UsageMetadata.PromptTokenCount, wire.UsageMetadata.CandidatesTokenCount),
		FinishTime:   time.Now(),
	}
}

func mapFinishReason(reason string) domain.FinishReason {
	switch reason {
	case "MAX_TOKENS":
		return domain.FinishLength
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return domain.FinishContentFilter
	default:
		return domain.FinishStop
	}
}
