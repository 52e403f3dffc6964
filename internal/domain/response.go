package domain

import "time"

// FinishReason explains why generation stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolCalls     FinishReason = "tool_calls"
)

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON argument payload as produced by the vendor.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage tracks token consumption for a single call. Values produced through
// NewUsage always satisfy TotalTokens == PromptTokens + CompletionTokens;
// adapters are responsible for never reporting negative counts.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"` // estimated, USD
}

// NewUsage builds a Usage from prompt and completion counts, deriving the
// total. This is the only path the core uses to construct usage values.
func NewUsage(promptTokens, completionTokens int) Usage {
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// CompletionResponse represents a unified LLM response. It is a value
// object: the orchestrator annotates cost before returning it, after which
// nothing mutates it.
type CompletionResponse struct {
	ID           string            `json:"id"`
	Model        string            `json:"model"`
	Provider     string            `json:"provider"`
	Content      string            `json:"content"`
	FinishReason FinishReason      `json:"finish_reason"`
	ToolCalls    []ToolCall        `json:"tool_calls,omitempty"`
	Usage        Usage             `json:"usage"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	FinishTime   time.Time         `json:"finish_time"`
}

// IsComplete reports whether the model finished naturally. Truncation,
// filtering, and pending tool calls are all incomplete outcomes.
func (r *CompletionResponse) IsComplete() bool {
	return r.FinishReason == FinishStop
}

// StreamChunk represents a single streaming response increment. The last
// chunk of a healthy stream has Done set; a mid-stream failure is delivered
// as a chunk with Err set, after which the channel closes.
type StreamChunk struct {
	Delta        string       `json:"delta"`
	Done         bool         `json:"done"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
	Err          error        `json:"-"`
}
