package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberhq/ember/internal/domain"
)

func testOpts(model string) *domain.ResolvedOptions {
	return domain.Options{Model: model}.Resolve(domain.StandardDefaults())
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewAdapter(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return adapter
}

func TestNewAdapter(t *testing.T) {
	t.Run("should require an api key", func(t *testing.T) {
		_, err := NewAdapter(Config{})

		require.Error(t, err)
	})
}

func TestAdapter_Complete(t *testing.T) {
	ctx := context.Background()
	messages := []domain.Message{domain.UserMessage("hello")}

	t.Run("should map a successful response", func(t *testing.T) {
		var gotReq generateRequest
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
			require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			fmt.Fprint(w, `{
				"candidates": [{
					"content": {"role": "model", "parts": [{"text": "Hi there!"}]},
					"finishReason": "STOP"
				}],
				"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10},
				"modelVersion": "gemini-2.0-flash"
			}`)
		})

		resp, err := adapter.Complete(ctx, messages, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Equal(t, "Hi there!", resp.Content)
		require.Equal(t, domain.FinishStop, resp.FinishReason)
		require.Equal(t, "gemini", resp.Provider)
		require.Equal(t, 10, resp.Usage.TotalTokens)

		require.Len(t, gotReq.Contents, 1)
		require.Equal(t, "user", gotReq.Contents[0].Role)
	})

	t.Run("should map assistant messages to the model role", func(t *testing.T) {
		var gotReq generateRequest
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "ok"}]}, "finishReason": "STOP"}]}`)
		})

		_, err := adapter.Complete(ctx, []domain.Message{
			domain.UserMessage("question"),
			domain.AssistantMessage("answer"),
			domain.UserMessage("follow-up"),
		}, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Len(t, gotReq.Contents, 3)
		require.Equal(t, "user", gotReq.Contents[0].Role)
		require.Equal(t, "model", gotReq.Contents[1].Role)
		require.Equal(t, "user", gotReq.Contents[2].Role)
	})

	t.Run("should carry the system prompt as systemInstruction", func(t *testing.T) {
		var gotReq generateRequest
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "ok"}]}, "finishReason": "STOP"}]}`)
		})

		opts := domain.Options{
			Model:        "gemini-2.0-flash",
			SystemPrompt: "be terse",
		}.Resolve(domain.StandardDefaults())

		_, err := adapter.Complete(ctx, messages, opts)

		require.NoError(t, err)
		require.NotNil(t, gotReq.SystemInstruction)
		require.Equal(t, "be terse", gotReq.SystemInstruction.Parts[0].Text)
	})

	t.Run("should map safety blocks to content filtering", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`)
		})

		resp, err := adapter.Complete(ctx, messages, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Equal(t, domain.FinishContentFilter, resp.FinishReason)
		require.False(t, resp.IsComplete())
	})

	t.Run("should map MAX_TOKENS to the length finish reason", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "trunc"}]}, "finishReason": "MAX_TOKENS"}]}`)
		})

		resp, err := adapter.Complete(ctx, messages, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Equal(t, domain.FinishLength, resp.FinishReason)
	})

	t.Run("should surface function calls as tool calls", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{
				"candidates": [{
					"content": {"parts": [{"functionCall": {"name": "lookup", "args": {"city": "Paris"}}}]},
					"finishReason": "STOP"
				}]
			}`)
		})

		resp, err := adapter.Complete(ctx, messages, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Equal(t, domain.FinishToolCalls, resp.FinishReason)
		require.Len(t, resp.ToolCalls, 1)
		require.Equal(t, "lookup", resp.ToolCalls[0].Name)
		require.JSONEq(t, `{"city": "Paris"}`, resp.ToolCalls[0].Arguments)
	})

	t.Run("should replay assistant tool calls as functionCall parts", func(t *testing.T) {
		var gotReq generateRequest
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "sunny"}]}, "finishReason": "STOP"}]}`)
		})

		assistant := domain.Message{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{
				ID:        "lookup",
				Name:      "lookup",
				Arguments: `{"city": "Paris"}`,
			}},
		}
		conversation := []domain.Message{
			domain.UserMessage("weather in Paris?"),
			assistant,
			domain.ToolResultMessage("lookup", "lookup", "18C and clear"),
		}

		_, err := adapter.Complete(ctx, conversation, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Len(t, gotReq.Contents, 3)

		turn := gotReq.Contents[1]
		require.Equal(t, "model", turn.Role)
		require.Len(t, turn.Parts, 1)
		require.NotNil(t, turn.Parts[0].FunctionCall)
		require.Equal(t, "lookup", turn.Parts[0].FunctionCall.Name)
		require.Equal(t, map[string]any{"city": "Paris"}, turn.Parts[0].FunctionCall.Args)

		result := gotReq.Contents[2]
		require.Equal(t, "user", result.Role)
		require.NotNil(t, result.Parts[0].FunctionResp)
		require.Equal(t, "lookup", result.Parts[0].FunctionResp.Name)
	})

	t.Run("should degrade a response with no candidates to empty content", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"candidates": []}`)
		})

		resp, err := adapter.Complete(ctx, messages, testOpts("gemini-2.0-flash"))

		require.NoError(t, err)
		require.Empty(t, resp.Content)
		require.Zero(t, resp.Usage.TotalTokens)
	})

	t.Run("should map vendor errors to the taxonomy", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": {"code": 403, "status": "PERMISSION_DENIED", "message": "key not valid"}}`)
		})

		_, err := adapter.Complete(ctx, messages, testOpts("gemini-2.0-flash"))

		typed := domain.AsError(err)
		require.NotNil(t, typed)
		require.Equal(t, domain.KindAuthentication, typed.Kind)
		require.Equal(t, http.StatusForbidden, typed.HTTPStatus)
		require.Contains(t, typed.Message, "key not valid")
	})
}

func TestAdapter_Embed(t *testing.T) {
	ctx := context.Background()

	t.Run("should return one vector per input in order", func(t *testing.T) {
		var gotReq embedRequest
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/models/text-embedding-004:batchEmbedContents", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			fmt.Fprint(w, `{"embeddings": [{"values": [0.1, 0.2]}, {"values": [0.3, 0.4]}]}`)
		})

		resp, err := adapter.Embed(ctx, []string{"alpha", "beta"}, testOpts("text-embedding-004"))

		require.NoError(t, err)
		require.Len(t, resp.Vectors, 2)
		require.Equal(t, []float64{0.1, 0.2}, resp.Vectors[0])
		require.Equal(t, []float64{0.3, 0.4}, resp.Vectors[1])
		require.Equal(t, 2, resp.Dimension())

		require.Len(t, gotReq.Requests, 2)
		require.Equal(t, "models/text-embedding-004", gotReq.Requests[0].Model)
		require.Equal(t, "alpha", gotReq.Requests[0].Content.Parts[0].Text)
	})

	t.Run("should report zero usage", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"embeddings": [{"values": [1]}]}`)
		})

		resp, err := adapter.Embed(ctx, []string{"alpha"}, testOpts("text-embedding-004"))

		require.NoError(t, err)
		require.Zero(t, resp.Usage.TotalTokens)
	})

	t.Run("should map rate limiting", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error": {"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "quota exceeded"}}`)
		})

		_, err := adapter.Embed(ctx, []string{"alpha"}, testOpts("text-embedding-004"))

		require.Equal(t, domain.KindRateLimited, domain.KindOf(err))
	})
}

func TestAdapter_Capabilities(t *testing.T) {
	t.Run("should not implement the streaming capability", func(t *testing.T) {
		adapter, err := NewAdapter(Config{APIKey: "k"})
		require.NoError(t, err)

		var provider domain.Provider = adapter
		_, ok := provider.(domain.Streamer)
		require.False(t, ok)

		_, ok = provider.(domain.Embedder)
		require.True(t, ok)
	})
}
