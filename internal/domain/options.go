package domain

// Numeric ranges and component defaults for request options. Out-of-range
// values are clamped into range at resolution time, never rejected: a
// request is never invalid solely because of a soft numeric constraint.
const (
	TemperatureMin = 0.0
	TemperatureMax = 2.0
	TopPMin        = 0.0
	TopPMax        = 1.0
	PenaltyMin     = -2.0
	PenaltyMax     = 2.0
	MaxTokensMin   = 1

	DefaultTemperature = 1.0
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 1024
)

// ResponseFormat hints at the shape of the generated output.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// ToolDefinition describes a tool the model may call. Parameters is a JSON
// Schema object serialized as a generic map so adapters can pass it through
// to whatever schema dialect the vendor expects.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Float returns a pointer to v, for setting optional numeric options.
// An explicit Float(0) is distinct from leaving the field unset.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for setting optional integer options.
func Int(v int) *int { return &v }

// Options is the single per-call configuration object. Nil numeric fields
// take component defaults at resolution time. Provider and Model are
// optional; when empty they resolve through the registry's selection
// hierarchy and the provider's default model respectively.
type Options struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`

	SystemPrompt   string           `json:"system_prompt,omitempty"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat ResponseFormat   `json:"response_format,omitempty"`
}

// ResolvedOptions is an Options value after defaulting and clamping. All
// numeric fields hold concrete in-range values. Before-request event
// listeners may rewrite a ResolvedOptions; nothing downstream of the
// orchestrator ever sees an unresolved Options.
type ResolvedOptions struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
	MaxTokens        int     `json:"max_tokens"`

	SystemPrompt   string           `json:"system_prompt,omitempty"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat ResponseFormat   `json:"response_format,omitempty"`
}

// OptionDefaults carries the component defaults applied to unset fields.
type OptionDefaults struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// StandardDefaults returns the documented component defaults.
func StandardDefaults() OptionDefaults {
	return OptionDefaults{
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Resolve applies defaults to unset fields and clamps every numeric field
// into its documented range.
func (o Options) Resolve(defaults OptionDefaults) *ResolvedOptions {
	resolved := &ResolvedOptions{
		Provider:         o.Provider,
		Model:            o.Model,
		Temperature:      defaults.Temperature,
		TopP:             defaults.TopP,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		MaxTokens:        defaults.MaxTokens,
		SystemPrompt:     o.SystemPrompt,
		Tools:            o.Tools,
		ResponseFormat:   o.ResponseFormat,
	}

	if o.Temperature != nil {
		resolved.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		resolved.TopP = *o.TopP
	}
	if o.FrequencyPenalty != nil {
		resolved.FrequencyPenalty = *o.FrequencyPenalty
	}
	if o.PresencePenalty != nil {
		resolved.PresencePenalty = *o.PresencePenalty
	}
	if o.MaxTokens != nil {
		resolved.MaxTokens = *o.MaxTokens
	}

	resolved.Temperature = clamp(resolved.Temperature, TemperatureMin, TemperatureMax)
	resolved.TopP = clamp(resolved.TopP, TopPMin, TopPMax)
	resolved.FrequencyPenalty = clamp(resolved.FrequencyPenalty, PenaltyMin, PenaltyMax)
	resolved.PresencePenalty = clamp(resolved.PresencePenalty, PenaltyMin, PenaltyMax)
	if resolved.MaxTokens < MaxTokensMin {
		resolved.MaxTokens = MaxTokensMin
	}

	return resolved
}

// HasTools reports whether the call carries tool definitions.
func (r *ResolvedOptions) HasTools() bool {
	return len(r.Tools) > 0
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
